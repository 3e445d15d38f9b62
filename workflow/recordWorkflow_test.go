package workflow_test

import (
	"sync"
	"testing"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/testutils"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelRecord(t *testing.T) {
	ctx := testutils.SetupTestDB(t)

	draft := testutils.CreateTransaction(t, ctx, "Duplicate entry", models.DirectionDebit, decimal.NewFromInt(90))
	cancelled, err := workflow.CancelRecord(ctx, draft.ID, "entered twice")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusCancelled, cancelled.Status)

	again, err := workflow.CancelRecord(ctx, draft.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusCancelled, again.Status)

	logs, err := models.ListAuditLogs(ctx, models.AuditLogFilter{Action: models.AuditActionCancelRecord})
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	posted := testutils.CreateTransaction(t, ctx, "Sale", models.DirectionCredit, decimal.NewFromInt(10))
	_, err = workflow.ConfirmRecord(ctx, posted.ID, nil)
	require.NoError(t, err)
	_, err = workflow.CancelRecord(ctx, posted.ID, "too late")
	var se *utils.StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, string(models.RecordStatusConfirmed), se.From)
}

func TestUpdatePaymentStatus(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Invoice", models.DirectionCredit, decimal.NewFromInt(1000),
		testutils.WithPayment(models.PaymentStatusPending, decimal.Zero))
	_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)

	paid := decimal.NewFromInt(400)
	updated, err := workflow.UpdatePaymentStatus(ctx, record.ID, &workflow.PaymentUpdate{
		PaymentStatus: models.PaymentStatusPartial,
		PaidAmount:    &paid,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, updated.Transaction().PaymentStatus)
	assert.True(t, updated.Transaction().PaidAmount.Equal(paid))
	assert.Equal(t, int64(2), testutils.Count(t, ctx, &models.LedgerEntry{}))

	completed, err := workflow.UpdatePaymentStatus(ctx, record.ID, &workflow.PaymentUpdate{PaymentStatus: models.PaymentStatusCompleted})
	require.NoError(t, err)
	assert.True(t, completed.Transaction().PaidAmount.Equal(decimal.NewFromInt(1000)))

	over := decimal.NewFromInt(5000)
	_, err = workflow.UpdatePaymentStatus(ctx, record.ID, &workflow.PaymentUpdate{
		PaymentStatus: models.PaymentStatusPartial,
		PaidAmount:    &over,
	})
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve)

	_, err = workflow.UpdatePaymentStatus(ctx, record.ID, &workflow.PaymentUpdate{PaymentStatus: "refunded"})
	require.ErrorAs(t, err, &ve)
}

func TestUpdatePaymentStatus_RacingConfirmationKeepsPaymentDetails(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	bank := testutils.AccountByCode(t, ctx, "1010")

	for i := 0; i < 5; i++ {
		record := testutils.CreateTransaction(t, ctx, "Invoice", models.DirectionCredit, decimal.NewFromInt(1000),
			testutils.WithPayment(models.PaymentStatusPending, decimal.Zero))

		var wg sync.WaitGroup
		var confirmErr, updateErr error
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, confirmErr = workflow.ConfirmRecord(ctx, record.ID, &workflow.RecordConfirmation{
				PaymentType:       models.PaymentTypeBank,
				ExternalReference: "UTR-1",
				CounterAccountId:  &bank.ID,
			})
		}()
		go func() {
			defer wg.Done()
			<-start
			paid := decimal.NewFromInt(400)
			_, updateErr = workflow.UpdatePaymentStatus(ctx, record.ID, &workflow.PaymentUpdate{
				PaymentStatus: models.PaymentStatusPartial,
				PaidAmount:    &paid,
			})
		}()
		close(start)
		wg.Wait()
		require.NoError(t, confirmErr)
		require.NoError(t, updateErr)

		reloaded, err := models.GetRecord(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RecordStatusConfirmed, reloaded.Status)
		assert.Equal(t, models.PaymentTypeBank, reloaded.Transaction().PaymentType)
		assert.Equal(t, "UTR-1", reloaded.Transaction().ExternalReference)
	}
}
