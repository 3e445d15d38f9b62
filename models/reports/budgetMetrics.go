package reports

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
)

const (
	BudgetStatusOk      = "ok"
	BudgetStatusWarning = "warning"
	BudgetStatusOverrun = "overrun"
)

var (
	budgetWarningThreshold = decimal.NewFromInt(80)
	budgetOverrunThreshold = decimal.NewFromInt(100)
	hundred                = decimal.NewFromInt(100)
)

type BudgetItemMetric struct {
	Category    string          `json:"category"`
	Budgeted    decimal.Decimal `json:"budgeted"`
	Actual      decimal.Decimal `json:"actual"`
	Utilization decimal.Decimal `json:"utilization"`
	Variance    decimal.Decimal `json:"variance"`
	Status      string          `json:"status"`
}

type BudgetMetric struct {
	BudgetId    *int               `json:"budget_id"`
	RecordId    *int               `json:"record_id,omitempty"`
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Budgeted    decimal.Decimal    `json:"budgeted"`
	Actual      decimal.Decimal    `json:"actual"`
	Utilization decimal.Decimal    `json:"utilization"`
	Variance    decimal.Decimal    `json:"variance"`
	Status      string             `json:"status"`
	Items       []BudgetItemMetric `json:"items"`
}

type BudgetMetrics struct {
	TotalBudgeted decimal.Decimal `json:"total_budgeted"`
	TotalActual   decimal.Decimal `json:"total_actual"`
	Budgets       []BudgetMetric  `json:"budgets"`
}

// spendLine is the spend attributable to one record.
type spendLine struct {
	RecordId int
	Category string
	Summary  string
	Date     time.Time
	Amount   decimal.Decimal
	Posted   bool
}

type budgetTarget struct {
	BudgetId    *int
	RecordId    *int
	Name        string
	Category    string
	Planned     decimal.Decimal
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Items       []models.BudgetItem
}

func GetBudgetMetrics(ctx context.Context) (*BudgetMetrics, error) {
	return cachedReport(ctx, "budget", func(snap *ledgerSnapshot) (*BudgetMetrics, error) {
		return buildBudgetMetrics(snap), nil
	})
}

func buildBudgetMetrics(snap *ledgerSnapshot) *BudgetMetrics {
	spend := snap.spendLines()
	out := &BudgetMetrics{Budgets: []BudgetMetric{}}
	for _, target := range snap.budgetTargets() {
		m := BudgetMetric{
			BudgetId: target.BudgetId,
			RecordId: target.RecordId,
			Name:     target.Name,
			Category: target.Category,
			Budgeted: target.Planned,
			Items:    []BudgetItemMetric{},
		}
		keys := []string{target.Name, target.Category}
		for _, item := range target.Items {
			keys = append(keys, item.Category)
		}
		m.Actual = matchedSpend(spend, target, keys...)
		m.Utilization, m.Variance, m.Status = utilization(m.Budgeted, m.Actual)
		for _, item := range target.Items {
			im := BudgetItemMetric{Category: item.Category, Budgeted: item.Amount}
			im.Actual = matchedSpend(spend, target, item.Category)
			im.Utilization, im.Variance, im.Status = utilization(im.Budgeted, im.Actual)
			m.Items = append(m.Items, im)
		}
		out.TotalBudgeted = out.TotalBudgeted.Add(m.Budgeted)
		out.TotalActual = out.TotalActual.Add(m.Actual)
		out.Budgets = append(out.Budgets, m)
	}
	return out
}

// budgetTargets merges stored budgets with budget-type records that do not
// point at one of them.
func (s *ledgerSnapshot) budgetTargets() []budgetTarget {
	known := map[int]bool{}
	var targets []budgetTarget
	for _, b := range s.Budgets {
		id := b.ID
		known[id] = true
		targets = append(targets, budgetTarget{
			BudgetId:    &id,
			Name:        b.Name,
			Category:    b.Category,
			Planned:     b.Planned(),
			PeriodStart: b.PeriodStart,
			PeriodEnd:   b.PeriodEnd,
			Items:       b.Items,
		})
	}
	for _, r := range s.Records {
		meta := r.Meta().Budget
		if r.RecordType != models.RecordTypeBudget || meta == nil || r.Status == models.RecordStatusCancelled {
			continue
		}
		if meta.BudgetId != nil && known[*meta.BudgetId] {
			continue
		}
		id := r.ID
		targets = append(targets, budgetTarget{
			RecordId:    &id,
			Name:        r.Summary,
			Category:    meta.Category,
			Planned:     meta.Amount,
			PeriodStart: meta.PeriodStart,
			PeriodEnd:   meta.PeriodEnd,
		})
	}
	return targets
}

// spendLines groups ledger legs by originating record. A group with expense
// legs spends debit minus credit on them; otherwise it spends what left its
// settlement and cash-impacting accounts, credit minus debit, when that is
// positive. Unposted debit drafts spend their own amount.
func (s *ledgerSnapshot) spendLines() []spendLine {
	type group struct {
		line       spendLine
		expense    decimal.Decimal
		paid       decimal.Decimal
		hasExpense bool
	}
	settlements := s.settlementAccounts()
	groups := map[int]*group{}
	var order []int
	for _, e := range s.Entries {
		account := s.Accounts[e.AccountId]
		if account == nil {
			continue
		}
		origin := e.OriginRecordId()
		g := groups[origin]
		if g == nil {
			g = &group{line: spendLine{RecordId: origin, Category: e.Category, Date: e.TransactionDate, Posted: true}}
			if r := s.record(origin); r != nil {
				g.line.Summary = r.Summary
				g.line.Date = r.EffectiveDate()
				if r.Transaction() != nil {
					g.line.Category = r.Category()
				}
			}
			groups[origin] = g
			order = append(order, origin)
		}
		if account.AccountType == models.AccountTypeExpense {
			g.hasExpense = true
			g.expense = g.expense.Add(e.Signed())
			continue
		}
		if settlementId, ok := settlements[origin]; account.CashImpact || ok && settlementId == account.ID {
			g.paid = g.paid.Sub(e.Signed())
		}
	}

	var lines []spendLine
	for _, id := range order {
		g := groups[id]
		switch {
		case g.hasExpense:
			g.line.Amount = g.expense
		case g.paid.IsPositive():
			g.line.Amount = g.paid
		default:
			continue
		}
		if !g.line.Amount.IsZero() {
			lines = append(lines, g.line)
		}
	}
	for _, r := range s.Records {
		if !s.isUnposted(r) || r.Status != models.RecordStatusDraft || r.Transaction().Direction != models.DirectionDebit {
			continue
		}
		meta := r.Transaction()
		lines = append(lines, spendLine{
			RecordId: r.ID,
			Category: meta.Category,
			Summary:  r.Summary,
			Date:     r.EffectiveDate(),
			Amount:   unpostedAmount(r),
		})
	}
	return lines
}

// matchedSpend sums the spend lines matching any key. Posted spend matches on
// category in either direction; unposted drafts match when their summary or
// category contains the key. Each line counts once.
func matchedSpend(lines []spendLine, target budgetTarget, keys ...string) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		if !inPeriod(l.Date, target.PeriodStart, target.PeriodEnd) {
			continue
		}
		for _, key := range keys {
			if strings.TrimSpace(key) == "" {
				continue
			}
			var hit bool
			if l.Posted {
				hit = utils.ContainsFold(l.Category, key) || utils.ContainsFold(key, l.Category)
			} else {
				hit = utils.ContainsFold(l.Summary, key) || utils.ContainsFold(l.Category, key)
			}
			if hit {
				total = total.Add(l.Amount)
				break
			}
		}
	}
	return total
}

func inPeriod(date time.Time, start, end *time.Time) bool {
	if start != nil && date.Before(utils.StartOfDay(*start)) {
		return false
	}
	if end != nil && date.After(utils.StartOfDay(*end).AddDate(0, 0, 1).Add(-time.Nanosecond)) {
		return false
	}
	return true
}

// utilization is actual/budgeted*100 rounded to two places. Warning starts at
// 80 inclusive, overrun above 100.
func utilization(budgeted, actual decimal.Decimal) (decimal.Decimal, decimal.Decimal, string) {
	variance := budgeted.Sub(actual)
	if !budgeted.IsPositive() {
		if actual.IsPositive() {
			return decimal.Zero, variance, BudgetStatusOverrun
		}
		return decimal.Zero, variance, BudgetStatusOk
	}
	u := actual.Div(budgeted).Mul(hundred).Round(2)
	switch {
	case u.GreaterThan(budgetOverrunThreshold):
		return u, variance, BudgetStatusOverrun
	case u.GreaterThanOrEqual(budgetWarningThreshold):
		return u, variance, BudgetStatusWarning
	}
	return u, variance, BudgetStatusOk
}
