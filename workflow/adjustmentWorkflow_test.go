package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

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

func confirmed(t *testing.T, ctx context.Context, summary string, direction models.Direction, amount int64, opts ...testutils.TransactionOption) *models.Record {
	t.Helper()
	record := testutils.CreateTransaction(t, ctx, summary, direction, decimal.NewFromInt(amount), opts...)
	result, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)
	return result.Record
}

func balanceByAccount(t *testing.T, ctx context.Context) map[int]decimal.Decimal {
	t.Helper()
	entries, err := models.ListLedgerEntries(ctx, models.LedgerEntryFilter{})
	require.NoError(t, err)
	balances := map[int]decimal.Decimal{}
	for _, e := range entries {
		balances[e.AccountId] = balances[e.AccountId].Add(e.Signed())
	}
	return balances
}

func TestPushAdjustment_ReverseConfirmedIncome(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	original := confirmed(t, ctx, "Invoice 17", models.DirectionCredit, 1000, testutils.WithCategory("sales"))

	result, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
		OriginalRecordId: original.ID,
		AdjustmentType:   models.AdjustmentTypeReverse,
		Reason:           "customer cancelled the order",
		Metadata:         map[string]interface{}{"ticket": "SUP-12"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.RecordTypeAdjustment, result.Adjustment.RecordType)
	assert.Equal(t, models.RecordStatusConfirmed, result.Adjustment.Status)
	assert.True(t, result.Adjustment.NetAmount.Equal(decimal.NewFromInt(-1000)))
	assert.Equal(t, original.ID, result.Adjustment.Adjustment().OriginalRecordId)
	assert.Equal(t, testutils.TestActorName, result.Adjustment.Adjustment().Actor)

	assert.True(t, result.Original.NetAmount.IsZero())
	meta := result.Original.Transaction()
	assert.True(t, meta.IsReversed)
	require.NotNil(t, meta.LastAdjustmentId)
	assert.Equal(t, result.Adjustment.ID, *meta.LastAdjustmentId)

	require.Len(t, result.LedgerEntries, 2)
	for _, e := range result.LedgerEntries {
		assert.True(t, e.IsAdjustment)
		assert.Equal(t, original.ID, *e.AdjustsRecordId)
		assert.Equal(t, result.Adjustment.ID, *e.RecordId)
		assert.True(t, e.Amount.Equal(decimal.NewFromInt(1000)))
	}

	// original legs stay, compensation nets every account back to zero
	entries, err := models.ListLedgerEntries(ctx, models.LedgerEntryFilter{RecordId: original.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	for accountId, balance := range balanceByAccount(t, ctx) {
		assert.True(t, balance.IsZero(), "account %d should net to zero, got %s", accountId, balance)
	}

	logs, err := models.ListAuditLogs(ctx, models.AuditLogFilter{Action: models.AuditActionPushAdjustment})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	var newData map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].NewData, &newData))
	assert.Equal(t, "customer cancelled the order", newData["reason"])
	var oldData map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].OldData, &oldData))
	assert.EqualValues(t, original.ID, oldData["original_record_id"])
}

func TestPushAdjustment_IncreaseRepeatsPosting(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	original := confirmed(t, ctx, "Ad spend", models.DirectionDebit, 300, testutils.WithCategory("marketing"))

	delta := decimal.NewFromInt(200)
	result, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
		OriginalRecordId: original.ID,
		AdjustmentType:   models.AdjustmentTypeCorrectBudget,
		AdjustmentAmount: &delta,
		Reason:           "late invoice from agency",
	})
	require.NoError(t, err)

	marketing := testutils.AccountByCode(t, ctx, "5300")
	cash := testutils.AccountByCode(t, ctx, "1000")
	require.Len(t, result.LedgerEntries, 2)
	assert.Equal(t, marketing.ID, result.LedgerEntries[0].AccountId)
	assert.Equal(t, models.EntryTypeDebit, result.LedgerEntries[0].EntryType)
	assert.Equal(t, cash.ID, result.LedgerEntries[1].AccountId)
	assert.Equal(t, models.EntryTypeCredit, result.LedgerEntries[1].EntryType)

	balances := balanceByAccount(t, ctx)
	assert.True(t, balances[marketing.ID].Equal(decimal.NewFromInt(500)))
	assert.True(t, balances[cash.ID].Equal(decimal.NewFromInt(-500)))
	assert.True(t, result.Original.NetAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, result.Original.Transaction().AdjustedDelta.Equal(delta))
	assert.False(t, result.Original.Transaction().IsReversed)
}

func TestPushAdjustment_DraftDoesNotPost(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	draft := testutils.CreateTransaction(t, ctx, "Quote", models.DirectionCredit, decimal.NewFromInt(500))

	result, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
		OriginalRecordId:  draft.ID,
		AdjustmentType:    models.AdjustmentTypeReclassify,
		CorrectedCategory: "services",
		Reason:            "wrong category",
	})
	require.NoError(t, err)
	assert.Empty(t, result.LedgerEntries)
	assert.Equal(t, "services", result.Original.Transaction().Category)
	assert.Equal(t, models.RecordStatusDraft, result.Original.Status)
	assert.Zero(t, testutils.Count(t, ctx, &models.LedgerEntry{}))
}

func TestPushAdjustment_PartyCorrection(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	party, err := models.CreateParty(ctx, &models.NewParty{Name: "Acme Traders", PartyType: models.PartyTypeCustomer})
	require.NoError(t, err)
	original := confirmed(t, ctx, "Invoice", models.DirectionCredit, 100)

	result, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
		OriginalRecordId: original.ID,
		AdjustmentType:   models.AdjustmentTypePartyCorrection,
		CorrectedPartyId: &party.ID,
		Reason:           "billed to the wrong customer",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Original.PartyId)
	assert.Equal(t, party.ID, *result.Original.PartyId)
	assert.Empty(t, result.LedgerEntries)
	assert.True(t, result.Original.NetAmount.Equal(decimal.NewFromInt(100)))
}

func TestPushAdjustment_StatusCorrection(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	filing := testutils.CreateCompliance(t, ctx, "TDS", time.Now().AddDate(0, 0, -2))

	result, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
		OriginalRecordId: filing.ID,
		AdjustmentType:   models.AdjustmentTypeStatusCorrection,
		NewStatus:        models.ComplianceStatusFiled,
		Reason:           "filed offline",
	})
	require.NoError(t, err)
	meta := result.Original.Compliance()
	require.NotNil(t, meta)
	assert.Equal(t, models.ComplianceStatusFiled, meta.Status)
	assert.NotNil(t, meta.FiledDate)
	assert.Equal(t, result.Adjustment.ID, *meta.LastAdjustmentId)
}

func TestPushAdjustment_Rejections(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	original := confirmed(t, ctx, "Invoice", models.DirectionCredit, 100)

	t.Run("reason is required", func(t *testing.T) {
		_, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
			OriginalRecordId: original.ID,
			AdjustmentType:   models.AdjustmentTypeReverse,
			Reason:           "   ",
		})
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("unknown original", func(t *testing.T) {
		_, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
			OriginalRecordId: 9999,
			AdjustmentType:   models.AdjustmentTypeReverse,
			Reason:           "typo",
		})
		assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
	})

	t.Run("status correction needs a compliance record", func(t *testing.T) {
		_, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
			OriginalRecordId: original.ID,
			AdjustmentType:   models.AdjustmentTypeStatusCorrection,
			NewStatus:        models.ComplianceStatusFiled,
			Reason:           "filed",
		})
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("adjustments cannot be adjusted", func(t *testing.T) {
		result, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
			OriginalRecordId: original.ID,
			AdjustmentType:   models.AdjustmentTypeReverse,
			Reason:           "refund",
		})
		require.NoError(t, err)
		_, err = workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
			OriginalRecordId: result.Adjustment.ID,
			AdjustmentType:   models.AdjustmentTypeReverse,
			Reason:           "undo refund",
		})
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("nothing left to reverse", func(t *testing.T) {
		_, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
			OriginalRecordId: original.ID,
			AdjustmentType:   models.AdjustmentTypeReverse,
			Reason:           "again",
		})
		var ve *utils.ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("cancelled originals", func(t *testing.T) {
		draft := testutils.CreateTransaction(t, ctx, "Void", models.DirectionDebit, decimal.NewFromInt(5))
		_, err := workflow.CancelRecord(ctx, draft.ID, "")
		require.NoError(t, err)
		_, err = workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
			OriginalRecordId: draft.ID,
			AdjustmentType:   models.AdjustmentTypeReverse,
			Reason:           "void",
		})
		var se *utils.StateError
		require.ErrorAs(t, err, &se)
	})
}

func TestPushAdjustment_RollsBackWhenAuditFails(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	original := confirmed(t, ctx, "Invoice 21", models.DirectionCredit, 600, testutils.WithCategory("sales"))
	records := testutils.Count(t, ctx, &models.Record{})
	entries := testutils.Count(t, ctx, &models.LedgerEntry{})
	audits := testutils.Count(t, ctx, &models.AuditLog{})

	db := config.GetDB()
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_adjustment_audit", func(tx *gorm.DB) {
		if tx.Statement.Table == "audit_logs" {
			_ = tx.AddError(errors.New("audit store unavailable"))
		}
	}))
	t.Cleanup(func() { _ = db.Callback().Create().Remove("test:fail_adjustment_audit") })

	_, err := workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
		OriginalRecordId: original.ID,
		AdjustmentType:   models.AdjustmentTypeReverse,
		Reason:           "issued in error",
	})
	var persistence *utils.PersistenceError
	require.ErrorAs(t, err, &persistence)

	assert.Equal(t, records, testutils.Count(t, ctx, &models.Record{}))
	assert.Equal(t, entries, testutils.Count(t, ctx, &models.LedgerEntry{}))
	assert.Equal(t, audits, testutils.Count(t, ctx, &models.AuditLog{}))
	reloaded, err := models.GetRecord(ctx, original.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.NetAmount.Equal(decimal.NewFromInt(600)))
	assert.False(t, reloaded.Transaction().IsReversed)
}

func TestPushAdjustment_ConcurrentAdjustmentsKeepEveryDelta(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	original := confirmed(t, ctx, "Retainer", models.DirectionCredit, 1000, testutils.WithCategory("services"))

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := decimal.NewFromInt(-100)
			_, errs[i] = workflow.PushAdjustment(ctx, &workflow.NewAdjustment{
				OriginalRecordId: original.ID,
				AdjustmentType:   models.AdjustmentTypeReclassify,
				AdjustmentAmount: &amount,
				Reason:           "volume discount",
			})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	reloaded, err := models.GetRecord(ctx, original.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.NetAmount.Equal(decimal.NewFromInt(600)), "net amount %s", reloaded.NetAmount)
	assert.Equal(t, int64(2+2*workers), testutils.Count(t, ctx, &models.LedgerEntry{}))
}
