package models_test

import (
	"testing"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/testutils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReconciliationChecks(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	posted := testutils.CreateTransaction(t, ctx, "Invoice 1", models.DirectionCredit, decimal.NewFromInt(400))
	_, err := workflow.ConfirmRecord(ctx, posted.ID, nil)
	require.NoError(t, err)
	_, err = workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
		OriginalRecordId: posted.ID,
		AdjustmentType:   models.AdjustmentTypeReverse,
		Reason:           "void",
	})
	require.NoError(t, err)

	reports, err := models.RunReconciliationChecks(ctx)
	require.NoError(t, err)
	assert.Empty(t, reports)

	// simulate drift: a confirmed status with no posting behind it
	drifted := testutils.CreateTransaction(t, ctx, "Invoice 2", models.DirectionCredit, decimal.NewFromInt(250))
	require.NoError(t, testutils.DB(ctx).Model(&models.Record{}).Where("id = ?", drifted.ID).
		UpdateColumn("status", models.RecordStatusConfirmed).Error)

	reports, err = models.RunReconciliationChecks(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, models.CheckMissingPosting, reports[0].CheckType)
	assert.Equal(t, drifted.ID, reports[0].EntityId)
	assert.NotEmpty(t, reports[0].CorrelationId)
	assert.EqualValues(t, 1, testutils.Count(t, ctx, &models.ReconciliationReport{}))
}
