package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CancelRecord withdraws a draft. Confirmed records are corrected with adjustments instead.
func CancelRecord(ctx context.Context, recordId int, reason string) (*models.Record, error) {
	if _, _, err := utils.Actor(ctx); err != nil {
		return nil, err
	}
	record, err := models.GetRecord(ctx, recordId)
	if err != nil {
		return nil, err
	}
	if record.Status == models.RecordStatusCancelled {
		return record, nil
	}
	if record.Status != models.RecordStatusDraft {
		return nil, &utils.StateError{Entity: "record", From: string(record.Status), To: string(models.RecordStatusCancelled)}
	}

	cancelled := models.RecordStatusCancelled
	draft := models.RecordStatusDraft
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.UpdateRecord(tx, recordId, models.RecordPatch{Status: &cancelled, ExpectStatus: &draft}); err != nil {
			if errors.Is(err, models.ErrStatusMismatch) {
				current, err := models.GetRecordTx(tx, recordId)
				if err != nil {
					return err
				}
				return &utils.StateError{Entity: "record", From: string(current.Status), To: string(cancelled)}
			}
			return err
		}
		return models.LogChange(tx, models.Change{
			Action:     models.AuditActionCancelRecord,
			EntityType: models.EntityTypeRecord,
			EntityId:   recordId,
			OldData:    map[string]interface{}{"status": draft},
			NewData:    map[string]interface{}{"status": cancelled, "reason": strings.TrimSpace(reason)},
		})
	})
	if err != nil {
		if !utils.IsDomainError(err) {
			config.LogError(config.GetLogger(), "RecordWorkflow", "CancelRecord", "cancel", map[string]interface{}{"record_id": recordId}, err)
		}
		return nil, utils.WrapPersistence("cancel record", err)
	}
	return models.GetRecord(ctx, recordId)
}

type PaymentUpdate struct {
	PaymentStatus models.PaymentStatus `json:"payment_status" binding:"required,oneof=pending partial completed"`
	PaidAmount    *decimal.Decimal     `json:"paid_amount"`
}

// UpdatePaymentStatus records how much of a transaction has been settled.
// The ledger is untouched; realization is derived from these fields. The
// record is read under a row lock and patched only while its status holds.
func UpdatePaymentStatus(ctx context.Context, recordId int, input *PaymentUpdate) (*models.Record, error) {
	if _, _, err := utils.Actor(ctx); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := models.GetRecordForUpdate(tx, recordId)
		if err != nil {
			return err
		}
		txMeta := record.Transaction()
		if txMeta == nil {
			return utils.NewValidationError("record_type", "only transaction records carry a payment status")
		}
		if record.Status == models.RecordStatusCancelled {
			return &utils.StateError{Entity: "record", From: string(record.Status), To: string(record.Status)}
		}

		meta := record.Meta()
		updated := *txMeta
		updated.PaymentStatus = input.PaymentStatus
		if input.PaidAmount != nil {
			updated.PaidAmount = *input.PaidAmount
		}
		amount := record.GrossAmount
		if record.Status == models.RecordStatusDraft {
			amount = amount.Add(updated.AdjustedDelta)
		} else {
			amount = record.NetAmount
		}
		if err := validatePayment(&updated, utils.MaxDecimal(amount, decimal.Zero)); err != nil {
			return err
		}
		meta.Transaction = &updated

		status := record.Status
		if err := models.UpdateRecord(tx, recordId, models.RecordPatch{Metadata: &meta, ExpectStatus: &status}); err != nil {
			if errors.Is(err, models.ErrStatusMismatch) {
				return &utils.StateError{Entity: "record", From: string(status), To: string(status)}
			}
			return err
		}
		return models.LogChange(tx, models.Change{
			Action:     models.AuditActionUpdatePayment,
			EntityType: models.EntityTypeRecord,
			EntityId:   recordId,
			OldData:    map[string]interface{}{"payment_status": txMeta.PaymentStatus, "paid_amount": txMeta.PaidAmount},
			NewData:    map[string]interface{}{"payment_status": updated.PaymentStatus, "paid_amount": updated.PaidAmount},
		})
	})
	if err != nil {
		if !utils.IsDomainError(err) {
			config.LogError(config.GetLogger(), "RecordWorkflow", "UpdatePaymentStatus", "update", input, err)
		}
		return nil, utils.WrapPersistence("update payment status", err)
	}
	return models.GetRecord(ctx, recordId)
}
