package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	CheckMissingPosting    = "MISSING_POSTING"
	CheckUnbalancedPosting = "UNBALANCED_POSTING"
	CheckDuplicatePosting  = "DUPLICATE_POSTING"
	CheckPostedUnconfirmed = "POSTED_UNCONFIRMED"
)

// ReconciliationReport is drift detection output (admin-triggered or cli).
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	WorkbenchId   string    `gorm:"size:64;index;not null" json:"workbench_id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"`
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// RunReconciliationChecks compares the record store with the ledger and writes one row per mismatch:
//   - confirmed transaction without an original posting
//   - posting whose debits and credits differ
//   - record with more than one original posting
//   - posting for a record that is not confirmed
func RunReconciliationChecks(ctx context.Context) ([]ReconciliationReport, error) {
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, errors.New("workbench id is required")
	}
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}

	var records []*Record
	var entries []*LedgerEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_type = ?", RecordTypeTransaction).Find(&records).Error; err != nil {
			return err
		}
		return tx.Find(&entries).Error
	})
	if err != nil {
		return nil, err
	}

	postingsByRecord := map[int]map[string]bool{}
	balance := map[string]decimal.Decimal{}
	postingRecord := map[string]int{}
	for _, e := range entries {
		balance[e.PostingId] = balance[e.PostingId].Add(e.Signed())
		if e.IsAdjustment || e.RecordId == nil {
			continue
		}
		rid := *e.RecordId
		if postingsByRecord[rid] == nil {
			postingsByRecord[rid] = map[string]bool{}
		}
		postingsByRecord[rid][e.PostingId] = true
		postingRecord[e.PostingId] = rid
	}

	var reports []ReconciliationReport
	add := func(checkType, entityType string, entityId int, details string) {
		reports = append(reports, ReconciliationReport{
			WorkbenchId:   workbenchId,
			CheckType:     checkType,
			EntityType:    entityType,
			EntityId:      entityId,
			Details:       details,
			CorrelationId: cid,
		})
	}

	for _, r := range records {
		postings := len(postingsByRecord[r.ID])
		switch {
		case r.Status == RecordStatusConfirmed && postings == 0:
			add(CheckMissingPosting, EntityTypeRecord, r.ID, "confirmed transaction has no ledger posting")
		case postings > 1:
			add(CheckDuplicatePosting, EntityTypeRecord, r.ID, fmt.Sprintf("record has %d original postings", postings))
		case r.Status != RecordStatusConfirmed && postings > 0:
			add(CheckPostedUnconfirmed, EntityTypeRecord, r.ID, fmt.Sprintf("record in status %s has a ledger posting", r.Status))
		}
	}
	postingIds := make([]string, 0, len(balance))
	for postingId := range balance {
		postingIds = append(postingIds, postingId)
	}
	sort.Strings(postingIds)
	for _, postingId := range postingIds {
		sum := balance[postingId]
		if sum.IsZero() {
			continue
		}
		// single-leg compensations are flagged too: they leave the books unbalanced
		add(CheckUnbalancedPosting, "posting", postingRecord[postingId], fmt.Sprintf("posting %s debit-credit=%s", postingId, sum.StringFixed(4)))
	}

	if len(reports) > 0 {
		if err := db.WithContext(ctx).Create(&reports).Error; err != nil {
			return nil, err
		}
	}
	config.GetLogger().WithFields(logrus.Fields{
		"field":          "RunReconciliationChecks",
		"workbench_id":   workbenchId,
		"correlation_id": cid,
		"mismatches":     len(reports),
	}).Info("reconciliation checks finished")
	return reports, nil
}
