package models_test

import (
	"testing"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/testutils"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerEntries_AppendOnly(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Invoice 3", models.DirectionCredit, decimal.NewFromInt(500))
	_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)

	entries, err := models.ListLedgerEntries(ctx, models.LedgerEntryFilter{RecordId: record.ID})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	err = testutils.DB(ctx).Model(entries[0]).Update("amount", decimal.NewFromInt(1)).Error
	assert.ErrorIs(t, err, utils.ErrImmutable)
	err = testutils.DB(ctx).Delete(entries[0]).Error
	assert.ErrorIs(t, err, utils.ErrImmutable)

	again, err := models.ListLedgerEntries(ctx, models.LedgerEntryFilter{RecordId: record.ID})
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.True(t, again[0].Amount.Equal(decimal.NewFromInt(500)))
}

func TestInsertLedgerEntries_RejectsUnbalancedSet(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	cash := testutils.AccountByCode(t, ctx, "1000")
	workbenchId, _ := utils.GetWorkbenchIdFromContext(ctx)

	sales := testutils.AccountByCode(t, ctx, "4000")
	err := models.InsertLedgerEntries(testutils.DB(ctx), []*models.LedgerEntry{
		{WorkbenchId: workbenchId, PostingId: "p-1", AccountId: cash.ID, EntryType: models.EntryTypeDebit, Amount: decimal.NewFromInt(10)},
		{WorkbenchId: workbenchId, PostingId: "p-1", AccountId: sales.ID, EntryType: models.EntryTypeCredit, Amount: decimal.NewFromInt(7)},
	})
	assert.Error(t, err)
	assert.Zero(t, testutils.Count(t, ctx, &models.LedgerEntry{}))
}

func TestLedgerEntry_SignedAndOrigin(t *testing.T) {
	recordId, originalId := 5, 2
	debit := &models.LedgerEntry{EntryType: models.EntryTypeDebit, Amount: decimal.NewFromInt(30), RecordId: &recordId}
	credit := &models.LedgerEntry{EntryType: models.EntryTypeCredit, Amount: decimal.NewFromInt(30), RecordId: &recordId, AdjustsRecordId: &originalId}

	assert.True(t, debit.Signed().Equal(decimal.NewFromInt(30)))
	assert.True(t, credit.Signed().Equal(decimal.NewFromInt(-30)))
	assert.Equal(t, 5, debit.OriginRecordId())
	assert.Equal(t, 2, credit.OriginRecordId())
}

func TestAuditLogs_AppendOnly(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	testutils.CreateTransaction(t, ctx, "Fuel", models.DirectionDebit, decimal.NewFromInt(60))

	logs, err := models.ListAuditLogs(ctx, models.AuditLogFilter{Action: models.AuditActionCreateRecord})
	require.NoError(t, err)
	require.Len(t, logs, 1)

	err = testutils.DB(ctx).Model(logs[0]).Update("actor", "someone else").Error
	assert.ErrorIs(t, err, utils.ErrImmutable)
	err = testutils.DB(ctx).Delete(logs[0]).Error
	assert.ErrorIs(t, err, utils.ErrImmutable)
}
