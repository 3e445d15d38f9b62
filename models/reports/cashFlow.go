package reports

import (
	"regexp"

	"github.com/shopspring/decimal"
)

const (
	ActivityOperating = "operating"
	ActivityInvesting = "investing"
	ActivityFinancing = "financing"
)

// financingCounterparty is the loan/debt name heuristic for inflows.
var financingCounterparty = regexp.MustCompile(`(?i)loan|debt|lender|borrow|credit line|financ`)

type CashFlowItem struct {
	RecordId int             `json:"record_id"`
	Activity string          `json:"activity"`
	Amount   decimal.Decimal `json:"amount"`
}

type CashFlow struct {
	Operating decimal.Decimal `json:"operating"`
	Investing decimal.Decimal `json:"investing"`
	Financing decimal.Decimal `json:"financing"`
	NetChange decimal.Decimal `json:"net_change"`
	Items     []CashFlowItem  `json:"items"`
}

// classifyCashFlow buckets each realized cash movement:
//   - investing: outflow tagged "investing"
//   - financing: inflow whose party (or counter account) name looks like a loan or debt
//   - operating: everything else
func classifyCashFlow(snap *ledgerSnapshot, facts []*fact) CashFlow {
	cf := CashFlow{Items: []CashFlowItem{}}
	for _, f := range facts {
		amount := f.CashEffect()
		if amount.IsZero() {
			continue
		}
		activity := ActivityOperating
		switch {
		case amount.IsNegative() && f.hasTag(ActivityInvesting):
			activity = ActivityInvesting
		case amount.IsPositive() && isFinancingCounterparty(snap, f):
			activity = ActivityFinancing
		}
		switch activity {
		case ActivityInvesting:
			cf.Investing = cf.Investing.Add(amount)
		case ActivityFinancing:
			cf.Financing = cf.Financing.Add(amount)
		default:
			cf.Operating = cf.Operating.Add(amount)
		}
		cf.NetChange = cf.NetChange.Add(amount)
		cf.Items = append(cf.Items, CashFlowItem{RecordId: f.RecordId, Activity: activity, Amount: amount})
	}
	return cf
}

func isFinancingCounterparty(snap *ledgerSnapshot, f *fact) bool {
	if f.PartyId != nil {
		if p, ok := snap.Parties[*f.PartyId]; ok && financingCounterparty.MatchString(p.Name) {
			return true
		}
	}
	return f.CounterName != "" && financingCounterparty.MatchString(f.CounterName)
}
