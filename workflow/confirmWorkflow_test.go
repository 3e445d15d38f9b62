package workflow_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/testutils"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConfirmRecord_PostsBalancedPair(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Consulting invoice", models.DirectionCredit, decimal.NewFromInt(1000), testutils.WithCategory("sales"))

	result, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RecordStatusConfirmed, result.Record.Status)
	assert.True(t, result.Record.GrossAmount.Equal(decimal.NewFromInt(1000)))
	require.Len(t, result.LedgerEntries, 2)

	cash := testutils.AccountByCode(t, ctx, "1000")
	sales := testutils.AccountByCode(t, ctx, "4000")
	entries, err := models.ListLedgerEntries(ctx, models.LedgerEntryFilter{RecordId: record.ID})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	sum := decimal.Zero
	byAccount := map[int]*models.LedgerEntry{}
	for _, e := range entries {
		sum = sum.Add(e.Signed())
		byAccount[e.AccountId] = e
		assert.Equal(t, entries[0].PostingId, e.PostingId)
		assert.False(t, e.IsAdjustment)
	}
	assert.True(t, sum.IsZero(), "debits and credits must balance")
	require.Contains(t, byAccount, cash.ID)
	require.Contains(t, byAccount, sales.ID)
	assert.Equal(t, models.EntryTypeDebit, byAccount[cash.ID].EntryType)
	assert.Equal(t, models.EntryTypeCredit, byAccount[sales.ID].EntryType)
	assert.Equal(t, sales.ID, *byAccount[cash.ID].CounterAccountId)

	logs, err := models.ListAuditLogs(ctx, models.AuditLogFilter{Action: models.AuditActionConfirmRecord})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, record.ID, logs[0].EntityId)
	assert.Equal(t, testutils.TestActorId, logs[0].ActorId)
}

func TestConfirmRecord_ExpenseUsesCategoryAccount(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "March rent", models.DirectionDebit, decimal.NewFromInt(400), testutils.WithCategory("Rent"))

	result, err := workflow.ConfirmRecord(ctx, record.ID, &workflow.RecordConfirmation{
		PaymentType:       models.PaymentTypeBank,
		ExternalReference: "NEFT-991",
	})
	require.NoError(t, err)

	rent := testutils.AccountByCode(t, ctx, "5100")
	bank := testutils.AccountByCode(t, ctx, "1010")
	require.Len(t, result.LedgerEntries, 2)
	assert.Equal(t, rent.ID, result.LedgerEntries[0].AccountId)
	assert.Equal(t, models.EntryTypeDebit, result.LedgerEntries[0].EntryType)
	assert.Equal(t, bank.ID, result.LedgerEntries[1].AccountId)
	assert.Equal(t, models.EntryTypeCredit, result.LedgerEntries[1].EntryType)
	assert.Equal(t, "NEFT-991", result.Record.Transaction().ExternalReference)
}

func TestConfirmRecord_AlreadyConfirmed(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Sale", models.DirectionCredit, decimal.NewFromInt(100))

	_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)

	_, err = workflow.ConfirmRecord(ctx, record.ID, nil)
	assert.ErrorIs(t, err, utils.ErrAlreadyConfirmed)
	assert.Equal(t, int64(2), testutils.Count(t, ctx, &models.LedgerEntry{}))
}

func TestConfirmRecord_ConcurrentConfirmationsPostOnce(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Sale", models.DirectionCredit, decimal.NewFromInt(250))

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = workflow.ConfirmRecord(ctx, record.ID, nil)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, utils.ErrAlreadyConfirmed)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(2), testutils.Count(t, ctx, &models.LedgerEntry{}))
}

func TestConfirmRecord_RollsBackWhenAuditFails(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Sale", models.DirectionCredit, decimal.NewFromInt(100))

	db := config.GetDB()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_audit", func(tx *gorm.DB) {
		if tx.Statement.Table == "audit_logs" {
			_ = tx.AddError(errors.New("audit store unavailable"))
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Create().Remove("test:fail_audit") })

	_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	var persistence *utils.PersistenceError
	require.ErrorAs(t, err, &persistence)

	reloaded, err := models.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusDraft, reloaded.Status)
	assert.Zero(t, testutils.Count(t, ctx, &models.LedgerEntry{}))
}

func TestConfirmRecord_Validation(t *testing.T) {
	ctx := testutils.SetupTestDB(t)

	t.Run("non-cash payment needs a reference", func(t *testing.T) {
		record := testutils.CreateTransaction(t, ctx, "Card sale", models.DirectionCredit, decimal.NewFromInt(100))
		_, err := workflow.ConfirmRecord(ctx, record.ID, &workflow.RecordConfirmation{PaymentType: models.PaymentTypeCard})
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "external_reference", ve.Field)
	})

	t.Run("amount must be positive", func(t *testing.T) {
		record := testutils.CreateTransaction(t, ctx, "Empty", models.DirectionDebit, decimal.Zero)
		_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "amount", ve.Field)
	})

	t.Run("partial paid amount is capped", func(t *testing.T) {
		record := testutils.CreateTransaction(t, ctx, "Invoice", models.DirectionCredit, decimal.NewFromInt(100))
		paid := decimal.NewFromInt(150)
		_, err := workflow.ConfirmRecord(ctx, record.ID, &workflow.RecordConfirmation{
			PaymentStatus: models.PaymentStatusPartial,
			PaidAmount:    &paid,
		})
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "paid_amount", ve.Field)
	})

	t.Run("only transactions are posted", func(t *testing.T) {
		record := testutils.CreateCompliance(t, ctx, "GSTR-3B", utils.GetReferenceTimeFromContext(ctx))
		_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("cancelled drafts stay cancelled", func(t *testing.T) {
		record := testutils.CreateTransaction(t, ctx, "Void", models.DirectionCredit, decimal.NewFromInt(10))
		_, err := workflow.CancelRecord(ctx, record.ID, "duplicate")
		require.NoError(t, err)
		_, err = workflow.ConfirmRecord(ctx, record.ID, nil)
		var se *utils.StateError
		require.ErrorAs(t, err, &se)
	})

	assert.Zero(t, testutils.Count(t, ctx, &models.LedgerEntry{}))
}

func TestConfirmRecord_AbsorbsDraftAdjustments(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Sale", models.DirectionCredit, decimal.NewFromInt(1000), testutils.WithCategory("sales"))

	delta := decimal.NewFromInt(-200)
	_, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
		OriginalRecordId: record.ID,
		AdjustmentType:   models.AdjustmentTypeReclassify,
		AdjustmentAmount: &delta,
		Reason:           "discount agreed before invoicing",
	})
	require.NoError(t, err)

	result, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)
	assert.True(t, result.Record.GrossAmount.Equal(decimal.NewFromInt(800)))
	assert.True(t, result.Record.Transaction().AdjustedDelta.IsZero())
	for _, e := range result.LedgerEntries {
		assert.True(t, e.Amount.Equal(decimal.NewFromInt(800)))
	}
}
