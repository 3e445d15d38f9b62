package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntry is one leg of a posting. Legs of the same posting share PostingId.
// Rows are append-only: corrections are new compensating postings.
type LedgerEntry struct {
	ID               int             `gorm:"primary_key" json:"id"`
	WorkbenchId      string          `gorm:"size:64;not null;index:idx_ledger_workbench_date,priority:1" json:"workbench_id"`
	PostingId        string          `gorm:"size:64;not null;index" json:"posting_id"`
	RecordId         *int            `gorm:"index" json:"record_id"`
	AccountId        int             `gorm:"not null;index" json:"account_id"`
	CounterAccountId *int            `gorm:"index" json:"counter_account_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	EntryType        EntryType       `gorm:"size:10;not null" json:"entry_type"`
	TransactionDate  time.Time       `gorm:"not null;index:idx_ledger_workbench_date,priority:2" json:"transaction_date"`
	Category         string          `gorm:"size:100" json:"category"`
	Description      string          `gorm:"type:text" json:"description"`
	IsAdjustment     bool            `gorm:"not null;default:false" json:"is_adjustment"`
	AdjustsRecordId  *int            `gorm:"index" json:"adjusts_record_id"`
	CreatedBy        string          `gorm:"size:100" json:"created_by"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.Amount.IsNegative() {
		return fmt.Errorf("ledger entry amount must not be negative: %s", e.Amount)
	}
	if e.EntryType != EntryTypeDebit && e.EntryType != EntryTypeCredit {
		return fmt.Errorf("invalid entry type %q", e.EntryType)
	}
	return nil
}

func (e *LedgerEntry) BeforeUpdate(tx *gorm.DB) error {
	return fmt.Errorf("%w: ledger_entries cannot be updated", utils.ErrImmutable)
}

func (e *LedgerEntry) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("%w: ledger_entries cannot be deleted", utils.ErrImmutable)
}

// Signed is +amount for debits and -amount for credits.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.EntryType == EntryTypeDebit {
		return e.Amount
	}
	return e.Amount.Neg()
}

// OriginRecordId is the business record the leg belongs to: the adjusted
// original for compensating legs, the record itself otherwise.
func (e *LedgerEntry) OriginRecordId() int {
	if e.AdjustsRecordId != nil {
		return *e.AdjustsRecordId
	}
	return utils.DereferencePtr(e.RecordId)
}

// InsertLedgerEntries appends a posting set on tx. Debits and credits must balance.
func InsertLedgerEntries(tx *gorm.DB, entries []*LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Signed())
	}
	// single-leg compensations are allowed when no settlement account exists
	if len(entries) > 1 && !sum.IsZero() {
		return fmt.Errorf("unbalanced posting %s: debit-credit=%s", entries[0].PostingId, sum)
	}
	return tx.Create(&entries).Error
}

type LedgerEntryFilter struct {
	RecordId  int
	AccountId int
	PostingId string
}

func ListLedgerEntries(ctx context.Context, filter LedgerEntryFilter) ([]*LedgerEntry, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&LedgerEntry{})
	if filter.RecordId > 0 {
		q = q.Where("record_id = ? OR adjusts_record_id = ?", filter.RecordId, filter.RecordId)
	}
	if filter.AccountId > 0 {
		q = q.Where("account_id = ?", filter.AccountId)
	}
	if filter.PostingId != "" {
		q = q.Where("posting_id = ?", filter.PostingId)
	}
	var entries []*LedgerEntry
	if err := q.Order("id").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
