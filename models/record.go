package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStatusMismatch is returned by conditional updates that found the record in another status.
var ErrStatusMismatch = errors.New("record status changed")

// Record is a business document. Records are never deleted; corrections go through adjustments.
type Record struct {
	ID             int                                `gorm:"primary_key" json:"id"`
	WorkbenchId    string                             `gorm:"size:64;not null;index:idx_record_type,priority:1;uniqueIndex:idx_record_idempotency,priority:1" json:"workbench_id"`
	RecordType     RecordType                         `gorm:"size:20;not null;index:idx_record_type,priority:2" json:"record_type"`
	Status         RecordStatus                       `gorm:"size:20;not null;index" json:"status"`
	Summary        string                             `gorm:"type:text;not null" json:"summary"`
	GrossAmount    decimal.Decimal                    `gorm:"type:decimal(20,4);default:0" json:"gross_amount"`
	NetAmount      decimal.Decimal                    `gorm:"type:decimal(20,4);default:0" json:"net_amount"`
	TaxAmount      decimal.Decimal                    `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	PartyId        *int                               `gorm:"index" json:"party_id"`
	IssueDate      *time.Time                         `gorm:"index" json:"issue_date"`
	DueDate        *time.Time                         `json:"due_date"`
	IdempotencyKey *string                            `gorm:"size:128;uniqueIndex:idx_record_idempotency,priority:2" json:"idempotency_key,omitempty"`
	CreatedBy      string                             `gorm:"size:100" json:"created_by"`
	Metadata       datatypes.JSONType[RecordMetadata] `json:"metadata"`
	CreatedAt      time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r *Record) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("%w: records cannot be deleted", utils.ErrImmutable)
}

func (r *Record) Meta() RecordMetadata {
	return r.Metadata.Data()
}

// Transaction returns the transaction variant or nil.
func (r *Record) Transaction() *TransactionMetadata {
	return r.Metadata.Data().Transaction
}

// Compliance returns the compliance variant or nil.
func (r *Record) Compliance() *ComplianceMetadata {
	return r.Metadata.Data().Compliance
}

// Adjustment returns the adjustment variant or nil.
func (r *Record) Adjustment() *AdjustmentMetadata {
	return r.Metadata.Data().Adjustment
}

func (r *Record) Category() string {
	if t := r.Transaction(); t != nil && strings.TrimSpace(t.Category) != "" {
		return t.Category
	}
	return "Uncategorized"
}

// EffectiveDate is the business date of the record, falling back to creation time.
func (r *Record) EffectiveDate() time.Time {
	if r.IssueDate != nil {
		return *r.IssueDate
	}
	return r.CreatedAt
}

type NewRecord struct {
	RecordType     RecordType       `json:"record_type" binding:"required,oneof=transaction compliance budget party"`
	Summary        string           `json:"summary" binding:"required"`
	GrossAmount    decimal.Decimal  `json:"gross_amount"`
	NetAmount      *decimal.Decimal `json:"net_amount"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	PartyId        *int             `json:"party_id"`
	IssueDate      *time.Time       `json:"issue_date"`
	DueDate        *time.Time       `json:"due_date"`
	IdempotencyKey string           `json:"idempotency_key"`
	Metadata       RecordMetadata   `json:"metadata"`
}

func (input *NewRecord) validate(ctx context.Context) error {
	input.Summary = strings.TrimSpace(input.Summary)
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.GrossAmount.IsNegative() {
		return utils.NewValidationError("gross_amount", "must not be negative")
	}
	if input.TaxAmount.IsNegative() {
		return utils.NewValidationError("tax_amount", "must not be negative")
	}
	if err := input.Metadata.Validate(input.RecordType); err != nil {
		return err
	}
	if t := input.Metadata.Transaction; t != nil && t.PaymentStatus == PaymentStatusPartial && t.PaidAmount.GreaterThan(input.GrossAmount) {
		return utils.NewValidationError("metadata.transaction.paid_amount", "must not exceed gross_amount")
	}
	if input.PartyId != nil {
		if _, err := GetParty(ctx, *input.PartyId); err != nil {
			return err
		}
	}
	if t := input.Metadata.Transaction; t != nil && t.AccountId != nil {
		if _, err := GetAccount(ctx, *t.AccountId); err != nil {
			return err
		}
	}
	return nil
}

// CreateRecord stores a draft record. A repeated idempotency key returns the existing record.
func CreateRecord(ctx context.Context, input *NewRecord) (*Record, error) {
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, errors.New("workbench id is required")
	}
	actorId, _, err := utils.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	if input.IdempotencyKey != "" {
		existing, err := getRecordByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, utils.WrapPersistence("lookup idempotency key", err)
		}
	}

	net := input.GrossAmount
	if input.NetAmount != nil {
		net = *input.NetAmount
	}
	record := Record{
		WorkbenchId:    workbenchId,
		RecordType:     input.RecordType,
		Status:         RecordStatusDraft,
		Summary:        input.Summary,
		GrossAmount:    input.GrossAmount,
		NetAmount:      net,
		TaxAmount:      input.TaxAmount,
		PartyId:        input.PartyId,
		IssueDate:      input.IssueDate,
		DueDate:        input.DueDate,
		IdempotencyKey: utils.NilIfEmpty(strings.TrimSpace(input.IdempotencyKey)),
		CreatedBy:      actorId,
		Metadata:       datatypes.NewJSONType(input.Metadata),
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return LogChange(tx, Change{
			Action:     AuditActionCreateRecord,
			EntityType: EntityTypeRecord,
			EntityId:   record.ID,
			NewData:    record,
		})
	})
	if err != nil {
		if input.IdempotencyKey != "" && isDuplicateKeyErr(err) {
			return getRecordByIdempotencyKey(ctx, input.IdempotencyKey)
		}
		config.LogError(config.GetLogger(), "Record", "CreateRecord", "create", input, err)
		return nil, utils.WrapPersistence("create record", err)
	}
	return &record, nil
}

func getRecordByIdempotencyKey(ctx context.Context, key string) (*Record, error) {
	db := config.GetDB()
	var record Record
	if err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("record", key)
		}
		return nil, err
	}
	return &record, nil
}

func GetRecord(ctx context.Context, id int) (*Record, error) {
	return GetRecordTx(config.GetDB().WithContext(ctx), id)
}

// GetRecordTx reads through tx so callers inside a transaction see their own writes.
func GetRecordTx(tx *gorm.DB, id int) (*Record, error) {
	var record Record
	if err := tx.Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("record", id)
		}
		return nil, err
	}
	return &record, nil
}

// GetRecordForUpdate reads id on tx holding a row lock until tx ends.
func GetRecordForUpdate(tx *gorm.DB, id int) (*Record, error) {
	return GetRecordTx(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func ListRecordsByWorkbench(ctx context.Context) ([]*Record, error) {
	db := config.GetDB()
	var records []*Record
	if err := db.WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func ListRecordsByType(ctx context.Context, recordType RecordType) ([]*Record, error) {
	if !recordType.IsValid() {
		return nil, utils.NewValidationError("record_type", "is not supported")
	}
	db := config.GetDB()
	var records []*Record
	if err := db.WithContext(ctx).Where("record_type = ?", recordType).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// RecordPatch lists the only fields that may change after creation.
type RecordPatch struct {
	PartyId   *int
	NetAmount *decimal.Decimal
	Status    *RecordStatus
	Metadata  *RecordMetadata
	// ExpectStatus makes the update conditional (compare-and-swap on status).
	ExpectStatus *RecordStatus
}

// UpdateRecord applies patch on tx. With ExpectStatus set and no row in that
// status, it returns ErrStatusMismatch.
func UpdateRecord(tx *gorm.DB, id int, patch RecordPatch) error {
	updates := map[string]interface{}{}
	if patch.PartyId != nil {
		updates["party_id"] = *patch.PartyId
	}
	if patch.NetAmount != nil {
		updates["net_amount"] = *patch.NetAmount
	}
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			return utils.NewValidationError("status", "is not supported")
		}
		updates["status"] = *patch.Status
	}
	if patch.Metadata != nil {
		updates["metadata"] = datatypes.NewJSONType(*patch.Metadata)
	}
	if len(updates) == 0 {
		return nil
	}
	q := tx.Model(&Record{}).Where("id = ?", id)
	if patch.ExpectStatus != nil {
		q = q.Where("status = ?", *patch.ExpectStatus)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if patch.ExpectStatus != nil {
			return ErrStatusMismatch
		}
		return utils.NewNotFoundError("record", id)
	}
	return nil
}

// ConfirmDraftRecord moves a draft to confirmed with the normalized confirmation values.
func ConfirmDraftRecord(tx *gorm.DB, id int, gross decimal.Decimal, net decimal.Decimal, issueDate time.Time, partyId *int, meta RecordMetadata) error {
	updates := map[string]interface{}{
		"status":       RecordStatusConfirmed,
		"gross_amount": gross,
		"net_amount":   net,
		"issue_date":   issueDate,
		"metadata":     datatypes.NewJSONType(meta),
	}
	if partyId != nil {
		updates["party_id"] = *partyId
	}
	res := tx.Model(&Record{}).
		Where("id = ? AND status = ?", id, RecordStatusDraft).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusMismatch
	}
	return nil
}

// CreateAdjustmentRecord inserts the confirmed adjustment record on tx.
func CreateAdjustmentRecord(tx *gorm.DB, summary string, amount decimal.Decimal, partyId *int, meta AdjustmentMetadata) (*Record, error) {
	ctx := tx.Statement.Context
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, errors.New("workbench id is required")
	}
	actorId, _, err := utils.Actor(ctx)
	if err != nil {
		return nil, err
	}
	now := utils.GetReferenceTimeFromContext(ctx)
	record := Record{
		WorkbenchId: workbenchId,
		RecordType:  RecordTypeAdjustment,
		Status:      RecordStatusConfirmed,
		Summary:     summary,
		GrossAmount: amount.Abs(),
		NetAmount:   amount,
		PartyId:     partyId,
		IssueDate:   &now,
		CreatedBy:   actorId,
		Metadata:    datatypes.NewJSONType(RecordMetadata{Adjustment: &meta}),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
