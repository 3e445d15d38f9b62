package reports

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
)

// complianceHorizonDays is how far ahead a pending deadline counts as at risk.
const complianceHorizonDays = 5

const (
	ComplianceFiled   = "filed"
	CompliancePending = "pending"
	ComplianceAtRisk  = "at_risk"
	ComplianceOverdue = "overdue"
)

type ComplianceItem struct {
	RecordId   int        `json:"record_id"`
	FilingType string     `json:"filing_type"`
	Authority  string     `json:"authority,omitempty"`
	Period     string     `json:"period,omitempty"`
	Deadline   *time.Time `json:"deadline"`
	DaysUntil  *int       `json:"days_until"`
	State      string     `json:"state"`
}

type ComplianceMetrics struct {
	Total      int              `json:"total"`
	Filed      int              `json:"filed"`
	Pending    int              `json:"pending"`
	AtRisk     int              `json:"at_risk"`
	Overdue    int              `json:"overdue"`
	Completion decimal.Decimal  `json:"completion"`
	Items      []ComplianceItem `json:"items"`
}

func GetComplianceMetrics(ctx context.Context) (*ComplianceMetrics, error) {
	return cachedReport(ctx, "compliance", func(snap *ledgerSnapshot) (*ComplianceMetrics, error) {
		return buildComplianceMetrics(snap), nil
	})
}

// complianceState is derived at query time; only filed/pending is stored.
func complianceState(meta *models.ComplianceMetadata, today time.Time) (string, *int) {
	if meta.Status == models.ComplianceStatusFiled {
		return ComplianceFiled, nil
	}
	if meta.Deadline == nil {
		return CompliancePending, nil
	}
	days := utils.DaysUntil(today, *meta.Deadline)
	switch {
	case days < 0:
		return ComplianceOverdue, &days
	case days <= complianceHorizonDays:
		return ComplianceAtRisk, &days
	}
	return CompliancePending, &days
}

func buildComplianceMetrics(snap *ledgerSnapshot) *ComplianceMetrics {
	out := &ComplianceMetrics{Items: []ComplianceItem{}}
	for _, r := range snap.Records {
		meta := r.Compliance()
		if r.RecordType != models.RecordTypeCompliance || meta == nil || r.Status == models.RecordStatusCancelled {
			continue
		}
		state, days := complianceState(meta, snap.AsOf)
		out.Total++
		switch state {
		case ComplianceFiled:
			out.Filed++
		case ComplianceOverdue:
			out.Overdue++
		case ComplianceAtRisk:
			out.AtRisk++
			out.Pending++
		default:
			out.Pending++
		}
		out.Items = append(out.Items, ComplianceItem{
			RecordId:   r.ID,
			FilingType: meta.FilingType,
			Authority:  meta.Authority,
			Period:     meta.Period,
			Deadline:   meta.Deadline,
			DaysUntil:  days,
			State:      state,
		})
	}
	// completion = filed / (filed + pending + overdue)
	if out.Total > 0 {
		out.Completion = decimal.NewFromInt(int64(out.Filed)).
			Div(decimal.NewFromInt(int64(out.Filed + out.Pending + out.Overdue))).
			Mul(hundred).Round(2)
	}
	sort.SliceStable(out.Items, func(i, j int) bool {
		a, b := out.Items[i].Deadline, out.Items[j].Deadline
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return out
}
