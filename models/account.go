package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"gorm.io/gorm"
)

type Account struct {
	ID          int         `gorm:"primary_key" json:"id"`
	WorkbenchId string      `gorm:"size:64;index;not null;uniqueIndex:idx_account_code,priority:1" json:"workbench_id"`
	Code        string      `gorm:"size:32;not null;uniqueIndex:idx_account_code,priority:2" json:"code"`
	Name        string      `gorm:"size:100;not null" json:"name"`
	AccountType AccountType `gorm:"size:20;not null;index" json:"account_type"`
	Category    string      `gorm:"size:100;index" json:"category"`
	CashImpact  bool        `gorm:"not null;default:false" json:"cash_impact"`
	IsActive    *bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Code        string      `json:"code" yaml:"code" binding:"required"`
	Name        string      `json:"name" yaml:"name" binding:"required"`
	AccountType AccountType `json:"account_type" yaml:"type" binding:"required,oneof=Asset Liability Equity Revenue Expense"`
	Category    string      `json:"category" yaml:"category"`
	CashImpact  bool        `json:"cash_impact" yaml:"cash_impact"`
}

func (input *NewAccount) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.CashImpact && input.AccountType != AccountTypeAsset {
		return utils.NewValidationError("cash_impact", "only Asset accounts can be cash-impacting")
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, errors.New("workbench id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var account *Account
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if account, err = createAccountTx(tx, workbenchId, input); err != nil {
			return err
		}
		return LogChange(tx, Change{
			Action:     AuditActionCreateAccount,
			EntityType: EntityTypeAccount,
			EntityId:   account.ID,
			NewData:    account,
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyErr(err) {
			return nil, utils.NewValidationError("code", "duplicate account code")
		}
		return nil, utils.WrapPersistence("create account", err)
	}
	return account, nil
}

func createAccountTx(tx *gorm.DB, workbenchId string, input *NewAccount) (*Account, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	account := Account{
		WorkbenchId: workbenchId,
		Code:        strings.TrimSpace(input.Code),
		Name:        strings.TrimSpace(input.Name),
		AccountType: input.AccountType,
		Category:    strings.ToLower(strings.TrimSpace(input.Category)),
		CashImpact:  input.CashImpact,
		IsActive:    utils.NewTrue(),
	}
	if err := tx.Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateAccount renames or reclassifies an account that no ledger entry references yet.
func UpdateAccount(ctx context.Context, id int, input *NewAccount) (*Account, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	account, err := GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&LedgerEntry{}).
			Where("account_id = ? OR counter_account_id = ?", id, id).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.ErrAccountInUse
		}
		before := *account
		if err := tx.Model(account).Updates(map[string]interface{}{
			"code":         strings.TrimSpace(input.Code),
			"name":         strings.TrimSpace(input.Name),
			"account_type": input.AccountType,
			"category":     strings.ToLower(strings.TrimSpace(input.Category)),
			"cash_impact":  input.CashImpact,
		}).Error; err != nil {
			return err
		}
		return LogChange(tx, Change{
			Action:     AuditActionUpdateAccount,
			EntityType: EntityTypeAccount,
			EntityId:   id,
			OldData:    before,
			NewData:    account,
		})
	})
	if err != nil {
		return nil, utils.WrapPersistence("update account", err)
	}
	return GetAccount(ctx, id)
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	db := config.GetDB()
	var account Account
	if err := db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("account", id)
		}
		return nil, err
	}
	return &account, nil
}

func ListAccounts(ctx context.Context) ([]*Account, error) {
	db := config.GetDB()
	var accounts []*Account
	if err := db.WithContext(ctx).Order("code").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
