package models

import (
	"time"

	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
)

// RecordMetadata is a tagged union: exactly one variant is set and it must
// match the record type. Extra carries fields only the UI cares about.
type RecordMetadata struct {
	Transaction *TransactionMetadata `json:"transaction,omitempty"`
	Compliance  *ComplianceMetadata  `json:"compliance,omitempty"`
	Budget      *BudgetMetadata      `json:"budget,omitempty"`
	Party       *PartyMetadata       `json:"party,omitempty"`
	Adjustment  *AdjustmentMetadata  `json:"adjustment,omitempty"`
	Extra       map[string]any       `json:"extra,omitempty"`
}

type TransactionMetadata struct {
	Direction         Direction       `json:"direction"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Category          string          `json:"category,omitempty"`
	Tags              []string        `json:"tags,omitempty"`
	PaymentType       PaymentType     `json:"payment_type,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	// AccountId hints the primary account before confirmation.
	AccountId        *int            `json:"account_id,omitempty"`
	IsReversed       bool            `json:"is_reversed,omitempty"`
	LastAdjustmentId *int            `json:"last_adjustment_id,omitempty"`
	AdjustedDelta    decimal.Decimal `json:"adjusted_delta"`
}

type ComplianceMetadata struct {
	FilingType       string           `json:"filing_type"`
	Authority        string           `json:"authority,omitempty"`
	Period           string           `json:"period,omitempty"`
	Deadline         *time.Time       `json:"deadline,omitempty"`
	Status           ComplianceStatus `json:"status"`
	FiledDate        *time.Time       `json:"filed_date,omitempty"`
	LastAdjustmentId *int             `json:"last_adjustment_id,omitempty"`
}

type BudgetMetadata struct {
	BudgetId         *int            `json:"budget_id,omitempty"`
	Category         string          `json:"category,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	PeriodStart      *time.Time      `json:"period_start,omitempty"`
	PeriodEnd        *time.Time      `json:"period_end,omitempty"`
	LastAdjustmentId *int            `json:"last_adjustment_id,omitempty"`
}

type PartyMetadata struct {
	PartyId          *int      `json:"party_id,omitempty"`
	PartyType        PartyType `json:"party_type,omitempty"`
	TaxId            string    `json:"tax_id,omitempty"`
	Action           string    `json:"action,omitempty"`
	LastAdjustmentId *int      `json:"last_adjustment_id,omitempty"`
}

type AdjustmentMetadata struct {
	OriginalRecordId  int              `json:"original_record_id"`
	AdjustmentType    AdjustmentType   `json:"adjustment_type"`
	AdjustmentAmount  decimal.Decimal  `json:"adjustment_amount"`
	Reason            string           `json:"reason"`
	CorrectedPartyId  *int             `json:"corrected_party_id,omitempty"`
	CorrectedCategory string           `json:"corrected_category,omitempty"`
	NewStatus         ComplianceStatus `json:"new_status,omitempty"`
	FiledDate         *time.Time       `json:"filed_date,omitempty"`
	Actor             string           `json:"actor"`
}

func (m RecordMetadata) variants() int {
	n := 0
	if m.Transaction != nil {
		n++
	}
	if m.Compliance != nil {
		n++
	}
	if m.Budget != nil {
		n++
	}
	if m.Party != nil {
		n++
	}
	if m.Adjustment != nil {
		n++
	}
	return n
}

// Validate checks the union against the record type and normalizes defaults in place.
func (m *RecordMetadata) Validate(recordType RecordType) error {
	if m.variants() > 1 {
		return utils.NewValidationError("metadata", "exactly one metadata variant may be set")
	}
	switch recordType {
	case RecordTypeTransaction:
		if m.Transaction == nil {
			return utils.NewValidationError("metadata.transaction", "is required for transaction records")
		}
		return m.Transaction.validate()
	case RecordTypeCompliance:
		if m.Compliance == nil {
			return utils.NewValidationError("metadata.compliance", "is required for compliance records")
		}
		if m.Compliance.FilingType == "" {
			return utils.NewValidationError("metadata.compliance.filing_type", "is required")
		}
		if m.Compliance.Status == "" {
			m.Compliance.Status = ComplianceStatusPending
		}
		if !m.Compliance.Status.IsValid() {
			return utils.NewValidationError("metadata.compliance.status", "must be pending or filed")
		}
	case RecordTypeBudget:
		if m.Budget == nil {
			return utils.NewValidationError("metadata.budget", "is required for budget records")
		}
		if m.Budget.Amount.IsNegative() {
			return utils.NewValidationError("metadata.budget.amount", "must not be negative")
		}
	case RecordTypeParty:
		if m.Party == nil {
			return utils.NewValidationError("metadata.party", "is required for party records")
		}
		if m.Party.PartyType != "" && !m.Party.PartyType.IsValid() {
			return utils.NewValidationError("metadata.party.party_type", "must be customer, vendor or both")
		}
	case RecordTypeAdjustment:
		if m.Adjustment == nil {
			return utils.NewValidationError("metadata.adjustment", "is required for adjustment records")
		}
	default:
		return utils.NewValidationError("record_type", "is not supported")
	}
	return nil
}

func (m *TransactionMetadata) validate() error {
	if !m.Direction.IsValid() {
		return utils.NewValidationError("metadata.transaction.direction", "must be debit or credit")
	}
	if m.PaymentStatus == "" {
		m.PaymentStatus = PaymentStatusPending
	}
	if !m.PaymentStatus.IsValid() {
		return utils.NewValidationError("metadata.transaction.payment_status", "must be pending, partial or completed")
	}
	if m.PaidAmount.IsNegative() {
		return utils.NewValidationError("metadata.transaction.paid_amount", "must not be negative")
	}
	if m.PaymentType != "" && !m.PaymentType.IsValid() {
		return utils.NewValidationError("metadata.transaction.payment_type", "must be cash, bank, upi, card or cheque")
	}
	m.Tags = utils.NormalizeTags(m.Tags)
	return nil
}
