package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"gorm.io/gorm"
)

// Workbench is the scoping unit for every other entity. Revision increases
// inside each mutating transaction and serves as the report cache watermark.
type Workbench struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Currency  string    `gorm:"size:3;not null" json:"currency"`
	Revision  int64     `gorm:"not null;default:0" json:"revision"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewWorkbench struct {
	Name         string `json:"name" binding:"required"`
	Currency     string `json:"currency"`
	SkipDefaults bool   `json:"skip_defaults"`
}

func CreateWorkbench(ctx context.Context, input *NewWorkbench) (*Workbench, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = config.DefaultCurrency()
	}
	if len(currency) != 3 {
		return nil, utils.NewValidationError("currency", "must be an ISO 4217 code")
	}

	workbench := Workbench{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(input.Name),
		Currency: currency,
	}
	ctx = utils.SetWorkbenchIdInContext(ctx, workbench.ID)

	var chart []NewAccount
	if !input.SkipDefaults {
		var err error
		if chart, err = DefaultChartOfAccounts(); err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&workbench).Error; err != nil {
			return err
		}
		for i := range chart {
			if _, err := createAccountTx(tx, workbench.ID, &chart[i]); err != nil {
				return err
			}
		}
		return LogChange(tx, Change{
			Action:     AuditActionCreateWorkbench,
			EntityType: EntityTypeWorkbench,
			NewData:    workbench,
		})
	})
	if err != nil {
		return nil, utils.WrapPersistence("create workbench", err)
	}
	return GetWorkbench(ctx, workbench.ID)
}

func GetWorkbench(ctx context.Context, id string) (*Workbench, error) {
	db := config.GetDB()
	var workbench Workbench
	if err := db.WithContext(ctx).Where("id = ?", id).First(&workbench).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrWorkbenchNotFound
		}
		return nil, err
	}
	return &workbench, nil
}

func ListWorkbenches(ctx context.Context) ([]*Workbench, error) {
	db := config.GetDB()
	var workbenches []*Workbench
	if err := db.WithContext(ctx).Order("created_at").Find(&workbenches).Error; err != nil {
		return nil, err
	}
	return workbenches, nil
}

// GetWorkbenchRevision is a cheap read used to key cached aggregations.
func GetWorkbenchRevision(ctx context.Context, id string) (int64, error) {
	db := config.GetDB()
	var revs []int64
	if err := db.WithContext(ctx).Model(&Workbench{}).Where("id = ?", id).Pluck("revision", &revs).Error; err != nil {
		return 0, err
	}
	if len(revs) == 0 {
		return 0, utils.ErrWorkbenchNotFound
	}
	return revs[0], nil
}

// bumpWorkbenchRevision increments the revision inside tx and returns the new value.
func bumpWorkbenchRevision(tx *gorm.DB, id string) (int64, error) {
	res := tx.Model(&Workbench{}).Where("id = ?", id).UpdateColumn("revision", gorm.Expr("revision + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, utils.ErrWorkbenchNotFound
	}
	var revs []int64
	if err := tx.Model(&Workbench{}).Where("id = ?", id).Pluck("revision", &revs).Error; err != nil {
		return 0, err
	}
	if len(revs) == 0 {
		return 0, utils.ErrWorkbenchNotFound
	}
	return revs[0], nil
}
