package reports

import (
	"testing"
	"time"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRealize(t *testing.T) {
	amount := decimal.NewFromInt(5000)
	tests := []struct {
		name        string
		meta        *models.TransactionMetadata
		realized    int64
		outstanding int64
	}{
		{"no metadata", nil, 5000, 0},
		{"completed", &models.TransactionMetadata{PaymentStatus: models.PaymentStatusCompleted}, 5000, 0},
		{"pending", &models.TransactionMetadata{PaymentStatus: models.PaymentStatusPending}, 0, 5000},
		{"partial", &models.TransactionMetadata{PaymentStatus: models.PaymentStatusPartial, PaidAmount: decimal.NewFromInt(2000)}, 2000, 3000},
		{"overpaid partial", &models.TransactionMetadata{PaymentStatus: models.PaymentStatusPartial, PaidAmount: decimal.NewFromInt(9000)}, 5000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := realize(amount, tt.meta)
			assert.True(t, r.Realized.Equal(decimal.NewFromInt(tt.realized)), "realized %s", r.Realized)
			assert.True(t, r.Outstanding.Equal(decimal.NewFromInt(tt.outstanding)), "outstanding %s", r.Outstanding)
		})
	}
}

func TestUtilization(t *testing.T) {
	tests := []struct {
		budgeted, actual int64
		utilization      string
		status           string
	}{
		{10000, 7999, "79.99", BudgetStatusOk},
		{10000, 8000, "80", BudgetStatusWarning},
		{10000, 10000, "100", BudgetStatusWarning},
		{10000, 11000, "110", BudgetStatusOverrun},
		{0, 0, "0", BudgetStatusOk},
		{0, 10, "0", BudgetStatusOverrun},
	}
	for _, tt := range tests {
		u, variance, status := utilization(decimal.NewFromInt(tt.budgeted), decimal.NewFromInt(tt.actual))
		assert.True(t, u.Equal(decimal.RequireFromString(tt.utilization)), "%d/%d: %s", tt.actual, tt.budgeted, u)
		assert.True(t, variance.Equal(decimal.NewFromInt(tt.budgeted-tt.actual)))
		assert.Equal(t, tt.status, status)
	}
}

func TestComplianceState(t *testing.T) {
	today := time.Date(2026, time.March, 10, 18, 30, 0, 0, time.UTC)
	at := func(days int) *time.Time {
		d := today.AddDate(0, 0, days)
		return &d
	}
	tests := []struct {
		name  string
		meta  models.ComplianceMetadata
		state string
	}{
		{"filed past deadline", models.ComplianceMetadata{Status: models.ComplianceStatusFiled, Deadline: at(-10)}, ComplianceFiled},
		{"no deadline", models.ComplianceMetadata{Status: models.ComplianceStatusPending}, CompliancePending},
		{"yesterday", models.ComplianceMetadata{Status: models.ComplianceStatusPending, Deadline: at(-1)}, ComplianceOverdue},
		{"today", models.ComplianceMetadata{Status: models.ComplianceStatusPending, Deadline: at(0)}, ComplianceAtRisk},
		{"five days", models.ComplianceMetadata{Status: models.ComplianceStatusPending, Deadline: at(5)}, ComplianceAtRisk},
		{"six days", models.ComplianceMetadata{Status: models.ComplianceStatusPending, Deadline: at(6)}, CompliancePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, _ := complianceState(&tt.meta, today)
			assert.Equal(t, tt.state, state)
		})
	}
}

func TestScaled(t *testing.T) {
	target := decimal.NewFromInt(12)
	assert.True(t, scaled(decimal.NewFromInt(-3), target).IsZero())
	assert.True(t, scaled(decimal.NewFromInt(6), target).Equal(decimal.RequireFromString("12.5")))
	assert.True(t, scaled(decimal.NewFromInt(24), target).Equal(quarter))
}

func TestReportCacheKey(t *testing.T) {
	asOf := time.Date(2026, time.January, 2, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "ledger:report:snapshot:wb-1:r7:2026-01-02", reportCacheKey("snapshot", "wb-1", 7, asOf))
	assert.NotEqual(t, reportCacheKey("snapshot", "wb-1", 7, asOf), reportCacheKey("snapshot", "wb-1", 8, asOf))
}

func TestIsFinancingCounterparty(t *testing.T) {
	lender := 1
	snap := &ledgerSnapshot{Parties: map[int]*models.Party{lender: {ID: lender, Name: "SIDBI Term Loan"}}}
	assert.True(t, isFinancingCounterparty(snap, &fact{PartyId: &lender}))
	assert.True(t, isFinancingCounterparty(snap, &fact{CounterName: "Loans Payable"}))
	assert.False(t, isFinancingCounterparty(snap, &fact{CounterName: "Sales"}))
}
