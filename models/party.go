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

type Party struct {
	ID          int       `gorm:"primary_key" json:"id"`
	WorkbenchId string    `gorm:"size:64;index;not null" json:"workbench_id"`
	Name        string    `gorm:"size:150;not null;index" json:"name"`
	PartyType   PartyType `gorm:"size:20;not null" json:"party_type"`
	TaxId       string    `gorm:"size:32" json:"tax_id"`
	TaxIdType   string    `gorm:"size:16" json:"tax_id_type"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Email       string    `gorm:"size:150" json:"email"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewParty struct {
	Name      string    `json:"name" binding:"required"`
	PartyType PartyType `json:"party_type" binding:"required,oneof=customer vendor both"`
	TaxId     string    `json:"tax_id"`
	TaxIdType string    `json:"tax_id_type"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
}

func (input *NewParty) normalize() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	input.Name = strings.TrimSpace(input.Name)
	input.TaxId = strings.ToUpper(strings.TrimSpace(input.TaxId))
	if input.Phone != "" {
		phone, err := utils.NormalizePhoneNumber(input.Phone, config.DefaultPhoneRegion())
		if err != nil {
			return utils.NewValidationError("phone", err.Error())
		}
		input.Phone = phone
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return utils.NewValidationError("email", "must be a valid email")
	}
	return nil
}

func CreateParty(ctx context.Context, input *NewParty) (*Party, error) {
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, errors.New("workbench id is required")
	}
	if err := input.normalize(); err != nil {
		return nil, err
	}
	party := Party{
		WorkbenchId: workbenchId,
		Name:        input.Name,
		PartyType:   input.PartyType,
		TaxId:       input.TaxId,
		TaxIdType:   input.TaxIdType,
		Phone:       input.Phone,
		Email:       input.Email,
		IsActive:    utils.NewTrue(),
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&party).Error; err != nil {
			return err
		}
		return LogChange(tx, Change{
			Action:     AuditActionCreateParty,
			EntityType: EntityTypeParty,
			EntityId:   party.ID,
			NewData:    party,
		})
	})
	if err != nil {
		return nil, utils.WrapPersistence("create party", err)
	}
	return &party, nil
}

func GetParty(ctx context.Context, id int) (*Party, error) {
	db := config.GetDB()
	var party Party
	if err := db.WithContext(ctx).Where("id = ?", id).First(&party).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("party", id)
		}
		return nil, err
	}
	return &party, nil
}

func ListParties(ctx context.Context, includeInactive bool) ([]*Party, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&Party{})
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var parties []*Party
	if err := q.Order("name").Find(&parties).Error; err != nil {
		return nil, err
	}
	return parties, nil
}

// DeactivateParty is the only way to retire a referenced party.
func DeactivateParty(ctx context.Context, id int) (*Party, error) {
	party, err := GetParty(ctx, id)
	if err != nil {
		return nil, err
	}
	if !utils.DereferencePtr(party.IsActive, true) {
		return party, nil
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Party{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		return LogChange(tx, Change{
			Action:     AuditActionDeactivateParty,
			EntityType: EntityTypeParty,
			EntityId:   id,
			OldData:    map[string]any{"is_active": true},
			NewData:    map[string]any{"is_active": false},
		})
	})
	if err != nil {
		return nil, utils.WrapPersistence("deactivate party", err)
	}
	party.IsActive = utils.NewFalse()
	return party, nil
}

// DeleteParty fails with ErrPartyInUse while any record points at the party.
func DeleteParty(ctx context.Context, id int) error {
	party, err := GetParty(ctx, id)
	if err != nil {
		return err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Record{}).Where("party_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.ErrPartyInUse
		}
		if err := tx.Delete(&Party{}, id).Error; err != nil {
			return err
		}
		return LogChange(tx, Change{
			Action:     AuditActionDeleteParty,
			EntityType: EntityTypeParty,
			EntityId:   id,
			OldData:    party,
		})
	})
	return utils.WrapPersistence("delete party", err)
}
