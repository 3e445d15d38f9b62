package reports

import (
	"context"
	"sort"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/shopspring/decimal"
)

type PartyMetric struct {
	PartyId      *int            `json:"party_id"`
	Name         string          `json:"name"`
	Revenue      decimal.Decimal `json:"revenue"`
	Spend        decimal.Decimal `json:"spend"`
	Receivable   decimal.Decimal `json:"receivable"`
	Payable      decimal.Decimal `json:"payable"`
	RevenueShare decimal.Decimal `json:"revenue_share"`
}

type PartyMetrics struct {
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	DependencyRisk decimal.Decimal `json:"dependency_risk"`
	TopParty       string          `json:"top_party"`
	Parties        []PartyMetric   `json:"parties"`
}

func GetPartyMetrics(ctx context.Context) (*PartyMetrics, error) {
	return cachedReport(ctx, "party", func(snap *ledgerSnapshot) (*PartyMetrics, error) {
		return buildPartyMetrics(snap, snap.derive()), nil
	})
}

// buildPartyMetrics groups facts by party. Dependency risk is the largest
// party's share of revenue, in percent. Facts without a party group under "Unknown".
func buildPartyMetrics(snap *ledgerSnapshot, d *derivation) *PartyMetrics {
	byParty := map[int]*PartyMetric{}
	unknown := &PartyMetric{Name: unknownParty}
	var order []int

	metric := func(id *int) *PartyMetric {
		if id == nil {
			return unknown
		}
		if _, ok := snap.Parties[*id]; !ok {
			return unknown
		}
		m, ok := byParty[*id]
		if !ok {
			pid := *id
			m = &PartyMetric{PartyId: &pid, Name: snap.partyName(id)}
			byParty[pid] = m
			order = append(order, pid)
		}
		return m
	}

	out := &PartyMetrics{Parties: []PartyMetric{}}
	for _, f := range d.Facts {
		if f.Record == nil {
			continue
		}
		m := metric(f.PartyId)
		if f.Direction == models.DirectionCredit {
			m.Revenue = m.Revenue.Add(f.Amount)
			m.Receivable = m.Receivable.Add(f.Outstanding)
			out.TotalRevenue = out.TotalRevenue.Add(f.Amount)
		} else {
			m.Spend = m.Spend.Add(f.Amount)
			m.Payable = m.Payable.Add(f.Outstanding)
		}
	}

	all := make([]*PartyMetric, 0, len(order)+1)
	for _, id := range order {
		all = append(all, byParty[id])
	}
	if !unknown.Revenue.IsZero() || !unknown.Spend.IsZero() {
		all = append(all, unknown)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Revenue.GreaterThan(all[j].Revenue) })

	for _, m := range all {
		if out.TotalRevenue.IsPositive() {
			m.RevenueShare = m.Revenue.Div(out.TotalRevenue).Mul(hundred).Round(2)
		}
		out.Parties = append(out.Parties, *m)
	}
	if len(all) > 0 && out.TotalRevenue.IsPositive() {
		out.DependencyRisk = all[0].RevenueShare
		out.TopParty = all[0].Name
	}
	return out
}
