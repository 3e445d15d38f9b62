package workflow

import (
	"context"
	"errors"
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

// RecordConfirmation carries the values supplied at confirmation time.
// Anything left empty falls back to what the draft already holds.
type RecordConfirmation struct {
	Amount            *decimal.Decimal     `json:"amount"`
	TransactionDate   *time.Time           `json:"transaction_date"`
	PaymentType       models.PaymentType   `json:"payment_type"`
	ExternalReference string               `json:"external_reference"`
	PartyId           *int                 `json:"party_id"`
	AccountId         *int                 `json:"account_id"`
	CounterAccountId  *int                 `json:"counter_account_id"`
	PaymentStatus     models.PaymentStatus `json:"payment_status"`
	PaidAmount        *decimal.Decimal     `json:"paid_amount"`
	Description       string               `json:"description"`
}

type ConfirmResult struct {
	Record        *models.Record        `json:"record"`
	LedgerEntries []*models.LedgerEntry `json:"ledger_entries"`
}

type normalizedConfirmation struct {
	amount      decimal.Decimal
	date        time.Time
	partyId     *int
	meta        models.TransactionMetadata
	description string
}

func normalizeConfirmation(ctx context.Context, record *models.Record, input *RecordConfirmation) (*normalizedConfirmation, error) {
	txMeta := record.Transaction()
	if txMeta == nil {
		return nil, utils.NewValidationError("metadata.transaction", "is missing")
	}
	meta := *txMeta

	amount := record.GrossAmount.Add(meta.AdjustedDelta)
	if input.Amount != nil {
		amount = *input.Amount
	}
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount", "must be greater than zero")
	}

	if input.PaymentType != "" {
		meta.PaymentType = input.PaymentType
	}
	if meta.PaymentType == "" {
		meta.PaymentType = models.PaymentTypeCash
	}
	if !meta.PaymentType.IsValid() {
		return nil, utils.NewValidationError("payment_type", "must be cash, bank, upi, card or cheque")
	}
	if ref := strings.TrimSpace(input.ExternalReference); ref != "" {
		meta.ExternalReference = ref
	}
	if meta.PaymentType != models.PaymentTypeCash && meta.ExternalReference == "" {
		return nil, utils.NewValidationError("external_reference", "is required for non-cash payments")
	}

	if input.PaymentStatus != "" {
		meta.PaymentStatus = input.PaymentStatus
	}
	if input.PaidAmount != nil {
		meta.PaidAmount = *input.PaidAmount
	}
	if err := validatePayment(&meta, amount); err != nil {
		return nil, err
	}

	partyId := record.PartyId
	if input.PartyId != nil {
		if _, err := models.GetParty(ctx, *input.PartyId); err != nil {
			return nil, err
		}
		partyId = input.PartyId
	}

	date := utils.GetReferenceTimeFromContext(ctx)
	if record.IssueDate != nil {
		date = *record.IssueDate
	}
	if input.TransactionDate != nil {
		date = *input.TransactionDate
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = record.Summary
	}
	// the adjusted delta is absorbed into the confirmed amount
	meta.AdjustedDelta = decimal.Zero

	return &normalizedConfirmation{
		amount:      amount,
		date:        date,
		partyId:     partyId,
		meta:        meta,
		description: description,
	}, nil
}

func validatePayment(meta *models.TransactionMetadata, amount decimal.Decimal) error {
	if meta.PaymentStatus == "" {
		meta.PaymentStatus = models.PaymentStatusPending
	}
	if !meta.PaymentStatus.IsValid() {
		return utils.NewValidationError("payment_status", "must be pending, partial or completed")
	}
	if meta.PaidAmount.IsNegative() {
		return utils.NewValidationError("paid_amount", "must not be negative")
	}
	switch meta.PaymentStatus {
	case models.PaymentStatusCompleted:
		meta.PaidAmount = amount
	case models.PaymentStatusPending:
		meta.PaidAmount = decimal.Zero
	case models.PaymentStatusPartial:
		if meta.PaidAmount.GreaterThan(amount) {
			return utils.NewValidationError("paid_amount", "must not exceed the amount")
		}
	}
	return nil
}

// ConfirmRecord posts a draft transaction to the ledger and marks it confirmed.
// The status change and the balanced entry pair commit together or not at all.
func ConfirmRecord(ctx context.Context, recordId int, input *RecordConfirmation) (*ConfirmResult, error) {
	logger := config.GetLogger()
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, errors.New("workbench id is required")
	}
	actorId, _, err := utils.Actor(ctx)
	if err != nil {
		return nil, err
	}
	if input == nil {
		input = &RecordConfirmation{}
	}

	record, err := models.GetRecord(ctx, recordId)
	if err != nil {
		return nil, err
	}
	if err := confirmable(record); err != nil {
		return nil, err
	}
	normalized, err := normalizeConfirmation(ctx, record, input)
	if err != nil {
		return nil, err
	}
	resolver, err := newAccountResolver(ctx)
	if err != nil {
		return nil, utils.WrapPersistence("list accounts", err)
	}
	accounts, err := resolver.resolve(input.AccountId, input.CounterAccountId, &normalized.meta, normalized.meta.PaymentType)
	if err != nil {
		return nil, err
	}

	release, err := obtainRecordLock(ctx, workbenchId, recordId)
	if err != nil {
		return nil, err
	}
	defer release()

	postingId := uuid.NewString()
	entries := confirmationEntries(workbenchId, actorId, postingId, record, normalized, accounts)

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		meta := record.Meta()
		meta.Transaction = &normalized.meta
		if err := models.ConfirmDraftRecord(tx, recordId, normalized.amount, normalized.amount, normalized.date, normalized.partyId, meta); err != nil {
			if errors.Is(err, models.ErrStatusMismatch) {
				return statusConflict(tx, recordId)
			}
			return err
		}
		if err := models.InsertLedgerEntries(tx, entries); err != nil {
			return err
		}
		return models.LogChange(tx, models.Change{
			Action:     models.AuditActionConfirmRecord,
			EntityType: models.EntityTypeRecord,
			EntityId:   recordId,
			OldData:    map[string]interface{}{"status": record.Status, "gross_amount": record.GrossAmount},
			NewData: map[string]interface{}{
				"status":         models.RecordStatusConfirmed,
				"amount":         normalized.amount,
				"posting_id":     postingId,
				"payment_status": normalized.meta.PaymentStatus,
				"ledger_entries": entries,
			},
		})
	})
	if err != nil {
		if utils.IsDomainError(err) {
			return nil, err
		}
		config.LogError(logger, "ConfirmWorkflow", "ConfirmRecord", "posting", map[string]interface{}{"record_id": recordId}, err)
		return nil, utils.WrapPersistence("confirm record", err)
	}

	confirmed, err := models.GetRecord(ctx, recordId)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"field":        "ConfirmWorkflow",
		"workbench_id": workbenchId,
		"record_id":    recordId,
		"posting_id":   postingId,
	}).Info("record confirmed")
	return &ConfirmResult{Record: confirmed, LedgerEntries: entries}, nil
}

func confirmable(record *models.Record) error {
	if record.RecordType != models.RecordTypeTransaction {
		return utils.NewValidationError("record_type", "only transaction records can be confirmed")
	}
	switch record.Status {
	case models.RecordStatusDraft:
		return nil
	case models.RecordStatusConfirmed:
		return utils.ErrAlreadyConfirmed
	default:
		return &utils.StateError{Entity: "record", From: string(record.Status), To: string(models.RecordStatusConfirmed)}
	}
}

// statusConflict explains a lost compare-and-swap by re-reading the record inside tx.
func statusConflict(tx *gorm.DB, recordId int) error {
	current, err := models.GetRecordTx(tx, recordId)
	if err != nil {
		return err
	}
	if err := confirmable(current); err != nil {
		return err
	}
	return &utils.StateError{Entity: "record", From: string(current.Status), To: string(models.RecordStatusConfirmed)}
}

func confirmationEntries(workbenchId, actorId, postingId string, record *models.Record, n *normalizedConfirmation, accounts *postingAccounts) []*models.LedgerEntry {
	legs := postingLegs[n.meta.Direction]
	recordId := record.ID
	primaryId := accounts.Primary.ID
	settlementId := accounts.Settlement.ID
	category := n.meta.Category
	if category == "" {
		category = accounts.Primary.Category
	}
	return []*models.LedgerEntry{
		{
			WorkbenchId:      workbenchId,
			PostingId:        postingId,
			RecordId:         &recordId,
			AccountId:        primaryId,
			CounterAccountId: &settlementId,
			Amount:           n.amount,
			EntryType:        legs.Primary,
			TransactionDate:  n.date,
			Category:         category,
			Description:      n.description,
			CreatedBy:        actorId,
		},
		{
			WorkbenchId:      workbenchId,
			PostingId:        postingId,
			RecordId:         &recordId,
			AccountId:        settlementId,
			CounterAccountId: &primaryId,
			Amount:           n.amount,
			EntryType:        legs.Settlement,
			TransactionDate:  n.date,
			Category:         category,
			Description:      n.description,
			CreatedBy:        actorId,
		},
	}
}
