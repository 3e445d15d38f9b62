package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/testutils"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateRecord_DraftWithAuditAndOutbox(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	before, err := models.GetWorkbenchRevision(ctx, mustWorkbenchId(t, ctx))
	require.NoError(t, err)

	record := testutils.CreateTransaction(t, ctx, "  Consulting  ", models.DirectionCredit, decimal.NewFromInt(1200),
		testutils.WithTags("Retainer", " retainer "))

	assert.Equal(t, models.RecordStatusDraft, record.Status)
	assert.Equal(t, "Consulting", record.Summary)
	assert.True(t, record.NetAmount.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, testutils.TestActorId, record.CreatedBy)
	assert.Equal(t, []string{"retainer"}, record.Transaction().Tags)

	logs, err := models.ListAuditLogs(ctx, models.AuditLogFilter{EntityType: models.EntityTypeRecord, EntityId: record.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionCreateRecord, logs[0].Action)
	assert.Equal(t, testutils.TestActorName, logs[0].Actor)

	after, err := models.GetWorkbenchRevision(ctx, record.WorkbenchId)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)

	var events []models.OutboxEvent
	require.NoError(t, testutils.DB(ctx).Where("entity_type = ? AND entity_id = ?", models.EntityTypeRecord, record.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, after, events[0].Revision)
}

func TestCreateRecord_Validation(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	missingParty := 9999

	tests := []struct {
		name  string
		input models.NewRecord
		field string
	}{
		{
			name:  "unknown record type",
			input: models.NewRecord{RecordType: "invoice", Summary: "x"},
			field: "record_type",
		},
		{
			name:  "missing summary",
			input: models.NewRecord{RecordType: models.RecordTypeTransaction, Metadata: models.RecordMetadata{Transaction: &models.TransactionMetadata{Direction: models.DirectionDebit}}},
			field: "summary",
		},
		{
			name:  "negative gross",
			input: models.NewRecord{RecordType: models.RecordTypeTransaction, Summary: "x", GrossAmount: decimal.NewFromInt(-1), Metadata: models.RecordMetadata{Transaction: &models.TransactionMetadata{Direction: models.DirectionDebit}}},
			field: "gross_amount",
		},
		{
			name:  "missing variant",
			input: models.NewRecord{RecordType: models.RecordTypeTransaction, Summary: "x"},
			field: "metadata.transaction",
		},
		{
			name: "two variants",
			input: models.NewRecord{RecordType: models.RecordTypeTransaction, Summary: "x", Metadata: models.RecordMetadata{
				Transaction: &models.TransactionMetadata{Direction: models.DirectionDebit},
				Compliance:  &models.ComplianceMetadata{FilingType: "GST"},
			}},
			field: "metadata",
		},
		{
			name:  "bad direction",
			input: models.NewRecord{RecordType: models.RecordTypeTransaction, Summary: "x", Metadata: models.RecordMetadata{Transaction: &models.TransactionMetadata{Direction: "sideways"}}},
			field: "metadata.transaction.direction",
		},
		{
			name: "partial paid above gross",
			input: models.NewRecord{RecordType: models.RecordTypeTransaction, Summary: "x", GrossAmount: decimal.NewFromInt(100), Metadata: models.RecordMetadata{Transaction: &models.TransactionMetadata{
				Direction: models.DirectionCredit, PaymentStatus: models.PaymentStatusPartial, PaidAmount: decimal.NewFromInt(150),
			}}},
			field: "metadata.transaction.paid_amount",
		},
		{
			name:  "compliance without filing type",
			input: models.NewRecord{RecordType: models.RecordTypeCompliance, Summary: "x", Metadata: models.RecordMetadata{Compliance: &models.ComplianceMetadata{}}},
			field: "metadata.compliance.filing_type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			_, err := models.CreateRecord(ctx, &input)
			var ve *utils.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	t.Run("unknown party", func(t *testing.T) {
		_, err := models.CreateRecord(ctx, &models.NewRecord{
			RecordType: models.RecordTypeTransaction,
			Summary:    "x",
			PartyId:    &missingParty,
			Metadata:   models.RecordMetadata{Transaction: &models.TransactionMetadata{Direction: models.DirectionDebit}},
		})
		assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
	})

	assert.Zero(t, testutils.Count(t, ctx, &models.Record{}))
}

func TestCreateRecord_IdempotencyKey(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	input := func() *models.NewRecord {
		return &models.NewRecord{
			RecordType:     models.RecordTypeTransaction,
			Summary:        "Bank import line 42",
			GrossAmount:    decimal.NewFromInt(300),
			IdempotencyKey: "stmt-2026-03:42",
			Metadata:       models.RecordMetadata{Transaction: &models.TransactionMetadata{Direction: models.DirectionDebit}},
		}
	}
	first, err := models.CreateRecord(ctx, input())
	require.NoError(t, err)
	second, err := models.CreateRecord(ctx, input())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, testutils.Count(t, ctx, &models.Record{}))
	assert.Equal(t, models.PaymentStatusPending, first.Transaction().PaymentStatus)
}

func TestCreateRecord_IdempotencyLookupFailure(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	db := config.GetDB()
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:fail_record_lookup", func(tx *gorm.DB) {
		if tx.Statement.Table == "records" {
			_ = tx.AddError(errors.New("connection reset"))
		}
	}))

	_, err := models.CreateRecord(ctx, &models.NewRecord{
		RecordType:     models.RecordTypeTransaction,
		Summary:        "Bank import line 43",
		GrossAmount:    decimal.NewFromInt(300),
		IdempotencyKey: "stmt-2026-03:43",
		Metadata:       models.RecordMetadata{Transaction: &models.TransactionMetadata{Direction: models.DirectionDebit}},
	})
	require.NoError(t, db.Callback().Query().Remove("test:fail_record_lookup"))

	var persistence *utils.PersistenceError
	require.ErrorAs(t, err, &persistence)
	assert.Zero(t, testutils.Count(t, ctx, &models.Record{}))
}

func TestRecord_CannotBeDeleted(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Stationery", models.DirectionDebit, decimal.NewFromInt(40))

	err := testutils.DB(ctx).Delete(record).Error
	assert.ErrorIs(t, err, utils.ErrImmutable)
	assert.EqualValues(t, 1, testutils.Count(t, ctx, &models.Record{}))
}

func TestRecords_ScopedToWorkbench(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	testutils.CreateTransaction(t, ctx, "Mine", models.DirectionDebit, decimal.NewFromInt(10))

	other, err := models.CreateWorkbench(ctx, &models.NewWorkbench{Name: "Other", Currency: "USD", SkipDefaults: true})
	require.NoError(t, err)
	otherCtx := utils.SetWorkbenchIdInContext(ctx, other.ID)

	records, err := models.ListRecordsByWorkbench(otherCtx)
	require.NoError(t, err)
	assert.Empty(t, records)

	mine, err := models.ListRecordsByWorkbench(ctx)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func mustWorkbenchId(t *testing.T, ctx context.Context) string {
	t.Helper()
	id, ok := utils.GetWorkbenchIdFromContext(ctx)
	require.True(t, ok)
	return id
}
