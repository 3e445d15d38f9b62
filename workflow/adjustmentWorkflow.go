package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type NewAdjustment struct {
	OriginalRecordId  int                     `json:"original_record_id" binding:"required,gt=0"`
	AdjustmentType    models.AdjustmentType   `json:"adjustment_type" binding:"required,oneof=reverse reclassify correct_budget party_correction status_correction"`
	AdjustmentAmount  *decimal.Decimal        `json:"adjustment_amount"`
	Reason            string                  `json:"reason" binding:"required"`
	CorrectedPartyId  *int                    `json:"corrected_party_id"`
	CorrectedCategory string                  `json:"corrected_category"`
	NewStatus         models.ComplianceStatus `json:"new_status"`
	FiledDate         *time.Time              `json:"filed_date"`
	Metadata          map[string]interface{}  `json:"metadata"`
}

type AdjustmentResult struct {
	Adjustment    *models.Record        `json:"adjustment"`
	Original      *models.Record        `json:"original"`
	LedgerEntries []*models.LedgerEntry `json:"ledger_entries"`
}

func (input *NewAdjustment) validate(ctx context.Context, original *models.Record) (decimal.Decimal, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	input.CorrectedCategory = strings.TrimSpace(input.CorrectedCategory)
	if err := utils.ValidateStruct(input); err != nil {
		return decimal.Zero, err
	}
	if original.RecordType == models.RecordTypeAdjustment {
		return decimal.Zero, utils.NewValidationError("original_record_id", "adjustments cannot be adjusted")
	}
	if original.Status == models.RecordStatusCancelled {
		return decimal.Zero, &utils.StateError{Entity: "record", From: string(original.Status), To: "adjusted"}
	}

	delta := utils.DereferencePtr(input.AdjustmentAmount)
	switch input.AdjustmentType {
	case models.AdjustmentTypeReverse:
		if input.AdjustmentAmount == nil {
			delta = original.NetAmount.Neg()
		}
		if delta.IsZero() {
			return decimal.Zero, utils.NewValidationError("adjustment_amount", "nothing left to reverse")
		}
	case models.AdjustmentTypeCorrectBudget:
		if delta.IsZero() {
			return decimal.Zero, utils.NewValidationError("adjustment_amount", "is required for budget corrections")
		}
	case models.AdjustmentTypeReclassify:
		if delta.IsZero() && input.CorrectedCategory == "" {
			return decimal.Zero, utils.NewValidationError("corrected_category", "is required when no amount is given")
		}
		if input.CorrectedCategory != "" && original.Transaction() == nil {
			return decimal.Zero, utils.NewValidationError("corrected_category", "only transaction records carry a category")
		}
	case models.AdjustmentTypePartyCorrection:
		if input.CorrectedPartyId == nil {
			return decimal.Zero, utils.NewValidationError("corrected_party_id", "is required for party corrections")
		}
		if _, err := models.GetParty(ctx, *input.CorrectedPartyId); err != nil {
			return decimal.Zero, err
		}
	case models.AdjustmentTypeStatusCorrection:
		if original.Compliance() == nil {
			return decimal.Zero, utils.NewValidationError("adjustment_type", "status corrections apply to compliance records")
		}
		if !input.NewStatus.IsValid() {
			return decimal.Zero, utils.NewValidationError("new_status", "must be pending or filed")
		}
		if input.NewStatus == models.ComplianceStatusFiled && input.FiledDate == nil {
			filed := utils.GetReferenceTimeFromContext(ctx)
			input.FiledDate = &filed
		}
	}
	return delta, nil
}

// PushAdjustment corrects an existing record without touching its history.
// It stores an adjustment record, patches the original's mutable fields and,
// for confirmed transactions, appends a compensating posting.
func PushAdjustment(ctx context.Context, input *NewAdjustment) (*AdjustmentResult, error) {
	logger := config.GetLogger()
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, errors.New("workbench id is required")
	}
	actorId, actorName, err := utils.Actor(ctx)
	if err != nil {
		return nil, err
	}
	original, err := models.GetRecord(ctx, input.OriginalRecordId)
	if err != nil {
		return nil, err
	}
	delta, err := input.validate(ctx, original)
	if err != nil {
		return nil, err
	}

	release, err := obtainRecordLock(ctx, workbenchId, original.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	var adjustment *models.Record
	var entries []*models.LedgerEntry
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := models.GetRecordForUpdate(tx, original.ID)
		if err != nil {
			return err
		}
		if current.Status == models.RecordStatusCancelled {
			return &utils.StateError{Entity: "record", From: string(current.Status), To: "adjusted"}
		}

		partyId := current.PartyId
		if input.CorrectedPartyId != nil {
			partyId = input.CorrectedPartyId
		}
		adjustment, err = models.CreateAdjustmentRecord(tx,
			fmt.Sprintf("%s adjustment of record #%d: %s", input.AdjustmentType, current.ID, input.Reason),
			delta, partyId, models.AdjustmentMetadata{
				OriginalRecordId:  current.ID,
				AdjustmentType:    input.AdjustmentType,
				AdjustmentAmount:  delta,
				Reason:            input.Reason,
				CorrectedPartyId:  input.CorrectedPartyId,
				CorrectedCategory: input.CorrectedCategory,
				NewStatus:         input.NewStatus,
				FiledDate:         input.FiledDate,
				Actor:             utils.DereferencePtr(utils.NilIfEmpty(actorName), actorId),
			})
		if err != nil {
			return err
		}

		patch := adjustmentPatch(current, input, delta, adjustment.ID)
		if err := models.UpdateRecord(tx, current.ID, patch); err != nil {
			return err
		}

		if current.Status == models.RecordStatusConfirmed && current.Transaction() != nil && !delta.IsZero() {
			entries, err = compensatingEntries(tx, current, adjustment, delta, actorId)
			if err != nil {
				return err
			}
			if err := models.InsertLedgerEntries(tx, entries); err != nil {
				return err
			}
		}

		return models.LogChange(tx, models.Change{
			Action:     models.AuditActionPushAdjustment,
			EntityType: models.EntityTypeRecord,
			EntityId:   current.ID,
			OldData:    map[string]interface{}{"original_record_id": current.ID},
			NewData: map[string]interface{}{
				"adjustment_record_id": adjustment.ID,
				"adjustment_type":      input.AdjustmentType,
				"adjustment_amount":    delta,
				"reason":               input.Reason,
				"metadata":             input.Metadata,
			},
		})
	})
	if err != nil {
		if !utils.IsDomainError(err) {
			config.LogError(logger, "AdjustmentWorkflow", "PushAdjustment", "adjust", input, err)
		}
		return nil, utils.WrapPersistence("push adjustment", err)
	}

	updated, err := models.GetRecord(ctx, original.ID)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"field":           "AdjustmentWorkflow",
		"workbench_id":    workbenchId,
		"record_id":       original.ID,
		"adjustment_id":   adjustment.ID,
		"adjustment_type": input.AdjustmentType,
	}).Info("adjustment pushed")
	return &AdjustmentResult{Adjustment: adjustment, Original: updated, LedgerEntries: entries}, nil
}

func adjustmentPatch(original *models.Record, input *NewAdjustment, delta decimal.Decimal, adjustmentId int) models.RecordPatch {
	var patch models.RecordPatch
	meta := original.Meta()

	if input.AdjustmentType == models.AdjustmentTypePartyCorrection {
		patch.PartyId = input.CorrectedPartyId
	}
	net := original.NetAmount.Add(delta)
	if !delta.IsZero() {
		patch.NetAmount = &net
	}

	switch {
	case meta.Transaction != nil:
		t := *meta.Transaction
		t.LastAdjustmentId = &adjustmentId
		t.AdjustedDelta = t.AdjustedDelta.Add(delta)
		if input.AdjustmentType == models.AdjustmentTypeReclassify && input.CorrectedCategory != "" {
			t.Category = input.CorrectedCategory
		}
		if input.AdjustmentType == models.AdjustmentTypeReverse && net.IsZero() {
			t.IsReversed = true
		}
		meta.Transaction = &t
	case meta.Compliance != nil:
		c := *meta.Compliance
		c.LastAdjustmentId = &adjustmentId
		if input.AdjustmentType == models.AdjustmentTypeStatusCorrection {
			c.Status = input.NewStatus
			c.FiledDate = input.FiledDate
			if input.NewStatus == models.ComplianceStatusPending {
				c.FiledDate = nil
			}
		}
		meta.Compliance = &c
	case meta.Budget != nil:
		b := *meta.Budget
		b.LastAdjustmentId = &adjustmentId
		b.Amount = b.Amount.Add(delta)
		meta.Budget = &b
	case meta.Party != nil:
		p := *meta.Party
		p.LastAdjustmentId = &adjustmentId
		meta.Party = &p
	}
	patch.Metadata = &meta
	return patch
}

// compensatingEntries mirrors or repeats the original posting for delta.
// Without a settlement leg on the original, only the primary leg is posted.
func compensatingEntries(tx *gorm.DB, original *models.Record, adjustment *models.Record, delta decimal.Decimal, actorId string) ([]*models.LedgerEntry, error) {
	var posted []*models.LedgerEntry
	if err := tx.Where("record_id = ? AND is_adjustment = ?", original.ID, false).Order("id").Find(&posted).Error; err != nil {
		return nil, err
	}
	meta := original.Transaction()
	legs := postingLegs[meta.Direction]
	var primaryLeg, settlementLeg *models.LedgerEntry
	for _, e := range posted {
		switch {
		case e.EntryType == legs.Primary && primaryLeg == nil:
			primaryLeg = e
		case e.EntryType == legs.Settlement && settlementLeg == nil:
			settlementLeg = e
		}
	}
	if primaryLeg == nil {
		return nil, fmt.Errorf("confirmed record %d has no posting", original.ID)
	}

	primaryType, settlementType := compensatingLegs(meta.Direction, delta)
	postingId := uuid.NewString()
	adjustmentId := adjustment.ID
	originalId := original.ID
	amount := delta.Abs()
	date := utils.GetReferenceTimeFromContext(tx.Statement.Context)
	category := meta.Category
	if category == "" {
		category = primaryLeg.Category
	}
	description := adjustment.Summary

	primary := &models.LedgerEntry{
		WorkbenchId:     original.WorkbenchId,
		PostingId:       postingId,
		RecordId:        &adjustmentId,
		AccountId:       primaryLeg.AccountId,
		Amount:          amount,
		EntryType:       primaryType,
		TransactionDate: date,
		Category:        category,
		Description:     description,
		IsAdjustment:    true,
		AdjustsRecordId: &originalId,
		CreatedBy:       actorId,
	}
	if settlementLeg == nil {
		return []*models.LedgerEntry{primary}, nil
	}
	primary.CounterAccountId = &settlementLeg.AccountId
	settlement := &models.LedgerEntry{
		WorkbenchId:      original.WorkbenchId,
		PostingId:        postingId,
		RecordId:         &adjustmentId,
		AccountId:        settlementLeg.AccountId,
		CounterAccountId: &primaryLeg.AccountId,
		Amount:           amount,
		EntryType:        settlementType,
		TransactionDate:  date,
		Category:         category,
		Description:      description,
		IsAdjustment:     true,
		AdjustsRecordId:  &originalId,
		CreatedBy:        actorId,
	}
	return []*models.LedgerEntry{primary, settlement}, nil
}
