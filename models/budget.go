package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Budget is a planning target. Actual spend is always derived, never stored.
type Budget struct {
	ID          int             `gorm:"primary_key" json:"id"`
	WorkbenchId string          `gorm:"size:64;index;not null" json:"workbench_id"`
	Name        string          `gorm:"size:150;not null" json:"name"`
	Category    string          `gorm:"size:100" json:"category"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PeriodStart *time.Time      `json:"period_start"`
	PeriodEnd   *time.Time      `json:"period_end"`
	Items       []BudgetItem    `gorm:"foreignKey:BudgetId" json:"items"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type BudgetItem struct {
	ID       int             `gorm:"primary_key" json:"id"`
	BudgetId int             `gorm:"index;not null" json:"budget_id"`
	Category string          `gorm:"size:100;not null" json:"category"`
	Amount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
}

// Planned is the total, or the sum of items when no total was given.
func (b *Budget) Planned() decimal.Decimal {
	if b.TotalAmount.IsPositive() {
		return b.TotalAmount
	}
	sum := decimal.Zero
	for _, item := range b.Items {
		sum = sum.Add(item.Amount)
	}
	return sum
}

type NewBudget struct {
	Name        string          `json:"name" binding:"required"`
	Category    string          `json:"category"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	PeriodStart *time.Time      `json:"period_start"`
	PeriodEnd   *time.Time      `json:"period_end"`
	Items       []NewBudgetItem `json:"items"`
}

type NewBudgetItem struct {
	Category string          `json:"category" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

func (input *NewBudget) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.TotalAmount.IsNegative() {
		return utils.NewValidationError("total_amount", "must not be negative")
	}
	if input.PeriodStart != nil && input.PeriodEnd != nil && input.PeriodEnd.Before(*input.PeriodStart) {
		return utils.NewValidationError("period_end", "must not be before period_start")
	}
	total := input.TotalAmount
	for _, item := range input.Items {
		if strings.TrimSpace(item.Category) == "" {
			return utils.NewValidationError("items.category", "is required")
		}
		if !item.Amount.IsPositive() {
			return utils.NewValidationError("items.amount", "must be greater than 0")
		}
		total = total.Add(item.Amount)
	}
	if !total.IsPositive() {
		return utils.NewValidationError("total_amount", "budget needs a total or items")
	}
	return nil
}

func CreateBudget(ctx context.Context, input *NewBudget) (*Budget, error) {
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, errors.New("workbench id is required")
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	budget := Budget{
		WorkbenchId: workbenchId,
		Name:        strings.TrimSpace(input.Name),
		Category:    strings.TrimSpace(input.Category),
		TotalAmount: input.TotalAmount,
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
	}
	for _, item := range input.Items {
		budget.Items = append(budget.Items, BudgetItem{
			Category: strings.TrimSpace(item.Category),
			Amount:   item.Amount,
		})
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&budget).Error; err != nil {
			return err
		}
		return LogChange(tx, Change{
			Action:     AuditActionCreateBudget,
			EntityType: EntityTypeBudget,
			EntityId:   budget.ID,
			NewData:    budget,
		})
	})
	if err != nil {
		return nil, utils.WrapPersistence("create budget", err)
	}
	return &budget, nil
}

func ListBudgets(ctx context.Context) ([]*Budget, error) {
	db := config.GetDB()
	var budgets []*Budget
	if err := db.WithContext(ctx).Preload("Items").Order("id").Find(&budgets).Error; err != nil {
		return nil, err
	}
	return budgets, nil
}
