// Package testutils wires a throwaway sqlite database into config for package tests.
package testutils

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TestActorId   = "actor-1"
	TestActorName = "Test Accountant"
)

// SetupTestDB opens a fresh sqlite file, migrates it and creates a workbench
// seeded with the default chart of accounts. The returned context carries the
// workbench, an actor and a correlation id.
func SetupTestDB(t *testing.T) context.Context {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger_test.db")
	db, err := config.OpenDatabase(sqlite.Open(config.SQLiteDSN(path)))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	previous := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(previous)
		_ = sqlDB.Close()
	})

	require.NoError(t, models.MigrateTable())

	ctx := ActorContext(context.Background())
	workbench, err := models.CreateWorkbench(ctx, &models.NewWorkbench{Name: "Test Workbench", Currency: "INR"})
	require.NoError(t, err)
	return utils.SetWorkbenchIdInContext(ctx, workbench.ID)
}

// ActorContext stamps the test actor and a fresh correlation id.
func ActorContext(ctx context.Context) context.Context {
	ctx = utils.SetActorIdInContext(ctx, TestActorId)
	ctx = utils.SetActorNameInContext(ctx, TestActorName)
	return utils.SetCorrelationIdInContext(ctx, uuid.NewString())
}

// DB returns the handle installed by SetupTestDB bound to ctx.
func DB(ctx context.Context) *gorm.DB {
	return config.GetDB().WithContext(ctx)
}

// AccountByCode looks up a seeded account, e.g. "1000" for Cash.
func AccountByCode(t *testing.T, ctx context.Context, code string) *models.Account {
	t.Helper()
	var account models.Account
	require.NoError(t, DB(ctx).Where("code = ?", code).First(&account).Error)
	return &account
}

type TransactionOption func(*models.NewRecord)

func WithPayment(status models.PaymentStatus, paid decimal.Decimal) TransactionOption {
	return func(r *models.NewRecord) {
		r.Metadata.Transaction.PaymentStatus = status
		r.Metadata.Transaction.PaidAmount = paid
	}
}

func WithCategory(category string) TransactionOption {
	return func(r *models.NewRecord) { r.Metadata.Transaction.Category = category }
}

func WithTags(tags ...string) TransactionOption {
	return func(r *models.NewRecord) { r.Metadata.Transaction.Tags = tags }
}

func WithParty(partyId int) TransactionOption {
	return func(r *models.NewRecord) { r.PartyId = &partyId }
}

func WithIssueDate(d time.Time) TransactionOption {
	return func(r *models.NewRecord) { r.IssueDate = &d }
}

// CreateTransaction stores a draft transaction record.
func CreateTransaction(t *testing.T, ctx context.Context, summary string, direction models.Direction, amount decimal.Decimal, opts ...TransactionOption) *models.Record {
	t.Helper()
	input := &models.NewRecord{
		RecordType:  models.RecordTypeTransaction,
		Summary:     summary,
		GrossAmount: amount,
		Metadata: models.RecordMetadata{
			Transaction: &models.TransactionMetadata{
				Direction:     direction,
				PaymentStatus: models.PaymentStatusCompleted,
			},
		},
	}
	for _, opt := range opts {
		opt(input)
	}
	record, err := models.CreateRecord(ctx, input)
	require.NoError(t, err)
	return record
}

// CreateCompliance stores a pending compliance item with the given deadline.
func CreateCompliance(t *testing.T, ctx context.Context, filingType string, deadline time.Time) *models.Record {
	t.Helper()
	record, err := models.CreateRecord(ctx, &models.NewRecord{
		RecordType: models.RecordTypeCompliance,
		Summary:    filingType + " filing",
		Metadata: models.RecordMetadata{
			Compliance: &models.ComplianceMetadata{
				FilingType: filingType,
				Deadline:   &deadline,
				Status:     models.ComplianceStatusPending,
			},
		},
	})
	require.NoError(t, err)
	return record
}

// Count returns the row count of model's table within the context's workbench.
func Count(t *testing.T, ctx context.Context, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, DB(ctx).Model(model).Count(&n).Error)
	return n
}
