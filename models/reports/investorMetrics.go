package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
)

const burnWindowMonths = 3

type MonthlyAmount struct {
	Month    string          `json:"month"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
}

// HealthScore is four components of 0..25 each:
//   - profit: net margin, 0% scores 0 and 20% or more scores 25
//   - runway: months of cash at the current burn, 12 or more scores 25
//   - stability: 25 * (1 - dependency risk / 100)
//   - growth: month over month revenue growth, 10% or more scores 25
type HealthScore struct {
	Profit    decimal.Decimal `json:"profit"`
	Runway    decimal.Decimal `json:"runway"`
	Stability decimal.Decimal `json:"stability"`
	Growth    decimal.Decimal `json:"growth"`
	Total     decimal.Decimal `json:"total"`
}

type InvestorMetrics struct {
	Cash           decimal.Decimal  `json:"cash"`
	Revenue        decimal.Decimal  `json:"revenue"`
	Expenses       decimal.Decimal  `json:"expenses"`
	NetIncome      decimal.Decimal  `json:"net_income"`
	ProfitMargin   decimal.Decimal  `json:"profit_margin"`
	MonthlyBurn    decimal.Decimal  `json:"monthly_burn"`
	RunwayMonths   *decimal.Decimal `json:"runway_months"`
	RevenueGrowth  decimal.Decimal  `json:"revenue_growth"`
	DependencyRisk decimal.Decimal  `json:"dependency_risk"`
	Monthly        []MonthlyAmount  `json:"monthly"`
	Health         HealthScore      `json:"health"`
}

func GetInvestorMetrics(ctx context.Context) (*InvestorMetrics, error) {
	return cachedReport(ctx, "investor", func(snap *ledgerSnapshot) (*InvestorMetrics, error) {
		return buildInvestorMetrics(snap), nil
	})
}

func buildInvestorMetrics(snap *ledgerSnapshot) *InvestorMetrics {
	d := snap.derive()
	fin := buildFinancialSnapshot(snap, d)
	parties := buildPartyMetrics(snap, d)

	out := &InvestorMetrics{
		Cash:           fin.Cash,
		Revenue:        fin.Revenue,
		Expenses:       fin.Expenses,
		NetIncome:      fin.ProfitAndLoss.NetIncome,
		DependencyRisk: parties.DependencyRisk,
	}
	if fin.Revenue.IsPositive() {
		out.ProfitMargin = fin.ProfitAndLoss.NetIncome.Div(fin.Revenue).Mul(hundred).Round(2)
	}

	// last burnWindowMonths full months plus the current one, oldest first
	current := utils.StartOfMonth(snap.AsOf)
	months := make([]time.Time, burnWindowMonths+1)
	for i := range months {
		months[i] = current.AddDate(0, i-burnWindowMonths, 0)
	}
	monthly := make([]MonthlyAmount, len(months))
	for i, m := range months {
		monthly[i].Month = m.Format("2006-01")
	}
	for _, l := range d.PLLines {
		month := utils.StartOfMonth(l.Date.In(current.Location()))
		for i, m := range months {
			if !month.Equal(m) {
				continue
			}
			if l.AccountType == models.AccountTypeRevenue {
				monthly[i].Revenue = monthly[i].Revenue.Add(l.Amount)
			} else {
				monthly[i].Expenses = monthly[i].Expenses.Add(l.Amount)
			}
		}
	}
	out.Monthly = monthly

	burn := decimal.Zero
	for _, m := range monthly[:burnWindowMonths] {
		burn = burn.Add(m.Expenses)
	}
	out.MonthlyBurn = burn.Div(decimal.NewFromInt(burnWindowMonths)).Round(2)
	if out.MonthlyBurn.IsPositive() {
		runway := out.Cash.Div(out.MonthlyBurn).Round(1)
		out.RunwayMonths = &runway
	}

	previous, latest := monthly[burnWindowMonths-1].Revenue, monthly[burnWindowMonths].Revenue
	if previous.IsPositive() {
		out.RevenueGrowth = latest.Sub(previous).Div(previous).Mul(hundred).Round(2)
	}

	out.Health = healthScore(out)
	return out
}

var (
	quarter      = decimal.NewFromInt(25)
	marginTarget = decimal.NewFromInt(20)
	runwayTarget = decimal.NewFromInt(12)
	growthTarget = decimal.NewFromInt(10)
)

func healthScore(m *InvestorMetrics) HealthScore {
	var h HealthScore
	h.Profit = scaled(m.ProfitMargin, marginTarget)
	switch {
	case m.RunwayMonths != nil:
		h.Runway = scaled(*m.RunwayMonths, runwayTarget)
	case m.Cash.IsPositive():
		// no burn
		h.Runway = quarter
	}
	h.Stability = quarter.Mul(decimal.NewFromInt(1).Sub(m.DependencyRisk.Div(hundred))).Round(2)
	h.Growth = scaled(m.RevenueGrowth, growthTarget)
	h.Total = h.Profit.Add(h.Runway).Add(h.Stability).Add(h.Growth).Round(2)
	return h
}

// scaled maps value in [0, target] linearly onto [0, 25].
func scaled(value, target decimal.Decimal) decimal.Decimal {
	if !value.IsPositive() {
		return decimal.Zero
	}
	if value.GreaterThanOrEqual(target) {
		return quarter
	}
	return value.Div(target).Mul(quarter).Round(2)
}
