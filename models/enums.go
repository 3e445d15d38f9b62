package models

// Enum values are stored as strings; IsValid guards service inputs.

type AccountType string

const (
	AccountTypeAsset     AccountType = "Asset"
	AccountTypeLiability AccountType = "Liability"
	AccountTypeEquity    AccountType = "Equity"
	AccountTypeRevenue   AccountType = "Revenue"
	AccountTypeExpense   AccountType = "Expense"
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

type RecordType string

const (
	RecordTypeTransaction RecordType = "transaction"
	RecordTypeCompliance  RecordType = "compliance"
	RecordTypeBudget      RecordType = "budget"
	RecordTypeParty       RecordType = "party"
	RecordTypeAdjustment  RecordType = "adjustment"
)

func (t RecordType) IsValid() bool {
	switch t {
	case RecordTypeTransaction, RecordTypeCompliance, RecordTypeBudget, RecordTypeParty, RecordTypeAdjustment:
		return true
	}
	return false
}

type RecordStatus string

const (
	RecordStatusDraft     RecordStatus = "draft"
	RecordStatusConfirmed RecordStatus = "confirmed"
	RecordStatusCancelled RecordStatus = "cancelled"
)

func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusDraft, RecordStatusConfirmed, RecordStatusCancelled:
		return true
	}
	return false
}

// Direction is the business sense of a transaction: credit is money in, debit is money out.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

func (d Direction) IsValid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

type EntryType string

const (
	EntryTypeDebit  EntryType = "debit"
	EntryTypeCredit EntryType = "credit"
)

func (e EntryType) Opposite() EntryType {
	if e == EntryTypeDebit {
		return EntryTypeCredit
	}
	return EntryTypeDebit
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusCompleted PaymentStatus = "completed"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusCompleted:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentTypeCash   PaymentType = "cash"
	PaymentTypeBank   PaymentType = "bank"
	PaymentTypeUPI    PaymentType = "upi"
	PaymentTypeCard   PaymentType = "card"
	PaymentTypeCheque PaymentType = "cheque"
)

func (t PaymentType) IsValid() bool {
	switch t {
	case PaymentTypeCash, PaymentTypeBank, PaymentTypeUPI, PaymentTypeCard, PaymentTypeCheque:
		return true
	}
	return false
}

type AdjustmentType string

const (
	AdjustmentTypeReverse          AdjustmentType = "reverse"
	AdjustmentTypeReclassify       AdjustmentType = "reclassify"
	AdjustmentTypeCorrectBudget    AdjustmentType = "correct_budget"
	AdjustmentTypePartyCorrection  AdjustmentType = "party_correction"
	AdjustmentTypeStatusCorrection AdjustmentType = "status_correction"
)

func (t AdjustmentType) IsValid() bool {
	switch t {
	case AdjustmentTypeReverse, AdjustmentTypeReclassify, AdjustmentTypeCorrectBudget,
		AdjustmentTypePartyCorrection, AdjustmentTypeStatusCorrection:
		return true
	}
	return false
}

type PartyType string

const (
	PartyTypeCustomer PartyType = "customer"
	PartyTypeVendor   PartyType = "vendor"
	PartyTypeBoth     PartyType = "both"
)

func (t PartyType) IsValid() bool {
	return t == PartyTypeCustomer || t == PartyTypeVendor || t == PartyTypeBoth
}

type ComplianceStatus string

const (
	ComplianceStatusPending ComplianceStatus = "pending"
	ComplianceStatusFiled   ComplianceStatus = "filed"
)

func (s ComplianceStatus) IsValid() bool {
	return s == ComplianceStatusPending || s == ComplianceStatusFiled
}

type AuditAction string

const (
	AuditActionCreateWorkbench AuditAction = "CREATE_WORKBENCH"
	AuditActionCreateAccount   AuditAction = "CREATE_ACCOUNT"
	AuditActionUpdateAccount   AuditAction = "UPDATE_ACCOUNT"
	AuditActionCreateRecord    AuditAction = "CREATE_RECORD"
	AuditActionConfirmRecord   AuditAction = "CONFIRM_RECORD"
	AuditActionCancelRecord    AuditAction = "CANCEL_RECORD"
	AuditActionUpdatePayment   AuditAction = "UPDATE_PAYMENT"
	AuditActionPushAdjustment  AuditAction = "PUSH_ADJUSTMENT"
	AuditActionCreateParty     AuditAction = "CREATE_PARTY"
	AuditActionDeactivateParty AuditAction = "DEACTIVATE_PARTY"
	AuditActionDeleteParty     AuditAction = "DELETE_PARTY"
	AuditActionCreateBudget    AuditAction = "CREATE_BUDGET"
)

const (
	EntityTypeWorkbench = "workbench"
	EntityTypeAccount   = "account"
	EntityTypeRecord    = "record"
	EntityTypeParty     = "party"
	EntityTypeBudget    = "budget"
)
