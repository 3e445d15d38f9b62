package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
)

const WarningBalanceSheetDivergence = "balance_sheet_divergence"

type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

type ProfitAndLoss struct {
	Revenue            decimal.Decimal  `json:"revenue"`
	Expenses           decimal.Decimal  `json:"expenses"`
	NetIncome          decimal.Decimal  `json:"net_income"`
	RevenueByCategory  []CategoryAmount `json:"revenue_by_category"`
	ExpensesByCategory []CategoryAmount `json:"expenses_by_category"`
}

type BalanceSheet struct {
	Cash             decimal.Decimal `json:"cash"`
	Receivables      decimal.Decimal `json:"receivables"`
	OtherAssets      decimal.Decimal `json:"other_assets"`
	TotalAssets      decimal.Decimal `json:"total_assets"`
	Payables         decimal.Decimal `json:"payables"`
	OtherLiabilities decimal.Decimal `json:"other_liabilities"`
	TotalLiabilities decimal.Decimal `json:"total_liabilities"`
	Equity           decimal.Decimal `json:"equity"`
	RetainedEarnings decimal.Decimal `json:"retained_earnings"`
	TotalEquity      decimal.Decimal `json:"total_equity"`
	Difference       decimal.Decimal `json:"difference"`
	Balanced         bool            `json:"balanced"`
}

type FinancialSnapshot struct {
	WorkbenchId   string                     `json:"workbench_id"`
	Currency      string                     `json:"currency"`
	Revision      int64                      `json:"revision"`
	AsOf          time.Time                  `json:"as_of"`
	Cash          decimal.Decimal            `json:"cash"`
	Receivables   decimal.Decimal            `json:"receivables"`
	Payables      decimal.Decimal            `json:"payables"`
	Revenue       decimal.Decimal            `json:"revenue"`
	Expenses      decimal.Decimal            `json:"expenses"`
	ProfitAndLoss ProfitAndLoss              `json:"profit_and_loss"`
	BalanceSheet  BalanceSheet               `json:"balance_sheet"`
	CashFlow      CashFlow                   `json:"cash_flow"`
	Warnings      []utils.ConsistencyWarning `json:"warnings"`
}

// GetFinancialSnapshot derives cash, receivables, payables, P&L, balance sheet
// and cash flow for the workbench in ctx.
func GetFinancialSnapshot(ctx context.Context) (*FinancialSnapshot, error) {
	return cachedReport(ctx, "snapshot", func(snap *ledgerSnapshot) (*FinancialSnapshot, error) {
		return buildFinancialSnapshot(snap, snap.derive()), nil
	})
}

func buildFinancialSnapshot(snap *ledgerSnapshot, d *derivation) *FinancialSnapshot {
	out := &FinancialSnapshot{
		WorkbenchId: snap.Workbench.ID,
		Currency:    snap.currency(),
		Revision:    snap.Workbench.Revision,
		AsOf:        snap.AsOf,
		Warnings:    []utils.ConsistencyWarning{},
	}

	for _, f := range d.Facts {
		out.Cash = out.Cash.Add(f.CashEffect())
		if f.Direction == models.DirectionCredit {
			out.Receivables = out.Receivables.Add(f.Outstanding)
		} else {
			out.Payables = out.Payables.Add(f.Outstanding)
		}
	}

	out.ProfitAndLoss = profitAndLoss(d.PLLines)
	out.Revenue = out.ProfitAndLoss.Revenue
	out.Expenses = out.ProfitAndLoss.Expenses
	out.BalanceSheet = balanceSheet(out, d.Totals)
	out.CashFlow = classifyCashFlow(snap, d.Facts)

	if !out.BalanceSheet.Balanced {
		out.Warnings = append(out.Warnings, utils.ConsistencyWarning{
			Code: WarningBalanceSheetDivergence,
			Message: fmt.Sprintf("assets %s differ from liabilities and equity by %s",
				utils.FormatAmount(out.BalanceSheet.TotalAssets, out.Currency),
				utils.FormatAmount(out.BalanceSheet.Difference, out.Currency)),
		})
	}
	return out
}

func profitAndLoss(lines []plLine) ProfitAndLoss {
	var pl ProfitAndLoss
	revenue := map[string]decimal.Decimal{}
	expenses := map[string]decimal.Decimal{}
	for _, l := range lines {
		switch l.AccountType {
		case models.AccountTypeRevenue:
			pl.Revenue = pl.Revenue.Add(l.Amount)
			revenue[l.Category] = revenue[l.Category].Add(l.Amount)
		case models.AccountTypeExpense:
			pl.Expenses = pl.Expenses.Add(l.Amount)
			expenses[l.Category] = expenses[l.Category].Add(l.Amount)
		}
	}
	pl.NetIncome = pl.Revenue.Sub(pl.Expenses)
	pl.RevenueByCategory = sortedCategories(revenue)
	pl.ExpensesByCategory = sortedCategories(expenses)
	return pl
}

func sortedCategories(m map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for category, amount := range m {
		out = append(out, CategoryAmount{Category: category, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// balanceSheet checks Assets = Liabilities + Equity after the fact. A
// divergence is reported, never corrected.
func balanceSheet(s *FinancialSnapshot, totals accountTotals) BalanceSheet {
	bs := BalanceSheet{
		Cash:             s.Cash,
		Receivables:      s.Receivables,
		OtherAssets:      totals[models.AccountTypeAsset],
		Payables:         s.Payables,
		OtherLiabilities: totals[models.AccountTypeLiability].Neg(),
		Equity:           totals[models.AccountTypeEquity].Neg(),
		RetainedEarnings: s.ProfitAndLoss.NetIncome,
	}
	bs.TotalAssets = bs.Cash.Add(bs.Receivables).Add(bs.OtherAssets)
	bs.TotalLiabilities = bs.Payables.Add(bs.OtherLiabilities)
	bs.TotalEquity = bs.Equity.Add(bs.RetainedEarnings)
	bs.Difference = bs.TotalAssets.Sub(bs.TotalLiabilities).Sub(bs.TotalEquity).Round(4)
	bs.Balanced = bs.Difference.IsZero()
	return bs
}
