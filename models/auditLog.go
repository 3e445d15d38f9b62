package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog is append-only. Rows are written in the same transaction as the change they describe.
type AuditLog struct {
	ID            int            `gorm:"primary_key" json:"id"`
	WorkbenchId   string         `gorm:"size:64;index;not null" json:"workbench_id"`
	Action        AuditAction    `gorm:"size:40;index;not null" json:"action"`
	EntityType    string         `gorm:"size:40;not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityId      int            `gorm:"not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	ActorId       string         `gorm:"size:100;not null" json:"actor_id"`
	Actor         string         `gorm:"size:150" json:"actor"`
	OldData       datatypes.JSON `json:"old_data"`
	NewData       datatypes.JSON `json:"new_data"`
	CorrelationId string         `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return fmt.Errorf("%w: audit_logs cannot be updated", utils.ErrImmutable)
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return fmt.Errorf("%w: audit_logs cannot be deleted", utils.ErrImmutable)
}

func createAuditLog(tx *gorm.DB, action AuditAction, entityType string, entityId int, oldData any, newData any) error {
	ctx := tx.Statement.Context
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return errors.New("workbench id is required")
	}
	actorId, actorName, err := utils.Actor(ctx)
	if err != nil {
		return err
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)

	log := AuditLog{
		WorkbenchId:   workbenchId,
		Action:        action,
		EntityType:    entityType,
		EntityId:      entityId,
		ActorId:       actorId,
		Actor:         actorName,
		OldData:       marshalAuditData(oldData),
		NewData:       marshalAuditData(newData),
		CorrelationId: cid,
	}
	return tx.Create(&log).Error
}

func marshalAuditData(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

type AuditLogFilter struct {
	EntityType string
	EntityId   int
	Action     AuditAction
	Limit      int
}

func ListAuditLogs(ctx context.Context, filter AuditLogFilter) ([]*AuditLog, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&AuditLog{})
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityId > 0 {
		q = q.Where("entity_id = ?", filter.EntityId)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", filter.Action)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []*AuditLog
	if err := q.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
