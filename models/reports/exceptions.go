package reports

import (
	"context"
	"fmt"
	"sort"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
)

type ExceptionType string

const (
	ExceptionUnknownParty          ExceptionType = "unknown_party"
	ExceptionComplianceDeadline    ExceptionType = "compliance_deadline"
	ExceptionComplianceOverdue     ExceptionType = "compliance_overdue"
	ExceptionBudgetWarning         ExceptionType = "budget_warning"
	ExceptionBudgetOverrun         ExceptionType = "budget_overrun"
	ExceptionBalanceSheetDivergent ExceptionType = WarningBalanceSheetDivergence
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

type Exception struct {
	Type     ExceptionType    `json:"type"`
	Severity Severity         `json:"severity"`
	Message  string           `json:"message"`
	RecordId *int             `json:"record_id,omitempty"`
	BudgetId *int             `json:"budget_id,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
}

func GetExceptions(ctx context.Context) ([]Exception, error) {
	return cachedReport(ctx, "exceptions", func(snap *ledgerSnapshot) ([]Exception, error) {
		return detectExceptions(snap), nil
	})
}

// detectExceptions runs every rule over one snapshot. Output is ordered by
// severity, most severe first, then by record.
func detectExceptions(snap *ledgerSnapshot) []Exception {
	currency := snap.currency()
	out := []Exception{}

	for _, r := range snap.Records {
		meta := r.Transaction()
		if r.RecordType != models.RecordTypeTransaction || meta == nil || r.Status == models.RecordStatusCancelled || meta.IsReversed {
			continue
		}
		if r.PartyId != nil {
			if _, ok := snap.Parties[*r.PartyId]; ok {
				continue
			}
		}
		id := r.ID
		amount := r.NetAmount
		if r.Status == models.RecordStatusDraft {
			amount = unpostedAmount(r)
		}
		out = append(out, Exception{
			Type:     ExceptionUnknownParty,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("%s of %s has no party", r.Summary, utils.FormatAmount(amount, currency)),
			RecordId: &id,
			Amount:   &amount,
		})
	}

	compliance := buildComplianceMetrics(snap)
	for _, item := range compliance.Items {
		id := item.RecordId
		switch item.State {
		case ComplianceAtRisk:
			out = append(out, Exception{
				Type:     ExceptionComplianceDeadline,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("%s due in %d days", item.FilingType, utils.DereferencePtr(item.DaysUntil)),
				RecordId: &id,
			})
		case ComplianceOverdue:
			out = append(out, Exception{
				Type:     ExceptionComplianceOverdue,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("%s overdue by %d days", item.FilingType, -utils.DereferencePtr(item.DaysUntil)),
				RecordId: &id,
			})
		}
	}

	budgets := buildBudgetMetrics(snap)
	for _, b := range budgets.Budgets {
		actual := b.Actual
		e := Exception{BudgetId: b.BudgetId, RecordId: b.RecordId, Amount: &actual}
		switch b.Status {
		case BudgetStatusWarning:
			e.Type, e.Severity = ExceptionBudgetWarning, SeverityMedium
			e.Message = fmt.Sprintf("%s at %s%% of budget (%s of %s)", b.Name, b.Utilization.StringFixed(2),
				utils.FormatAmount(b.Actual, currency), utils.FormatAmount(b.Budgeted, currency))
		case BudgetStatusOverrun:
			over := b.Variance.Neg()
			e.Type, e.Severity = ExceptionBudgetOverrun, SeverityCritical
			e.Message = fmt.Sprintf("%s over budget by %s", b.Name, utils.FormatAmount(over, currency))
		default:
			continue
		}
		out = append(out, e)
	}

	fin := buildFinancialSnapshot(snap, snap.derive())
	if !fin.BalanceSheet.Balanced {
		diff := fin.BalanceSheet.Difference
		out = append(out, Exception{
			Type:     ExceptionBalanceSheetDivergent,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("balance sheet off by %s", utils.FormatAmount(diff, currency)),
			Amount:   &diff,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return severityRank[out[i].Severity] < severityRank[out[j].Severity]
	})
	return out
}
