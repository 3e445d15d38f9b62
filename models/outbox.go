package models

import (
	"encoding/json"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// OutboxEvent is written in the same transaction as the change; the dispatcher publishes it after commit.
type OutboxEvent struct {
	ID               int            `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	WorkbenchId      string         `gorm:"size:64;not null;index" json:"workbench_id"`
	EventType        string         `gorm:"size:40;not null" json:"event_type"`
	EntityType       string         `gorm:"size:40;not null" json:"entity_type"`
	EntityId         int            `gorm:"not null" json:"entity_id"`
	Revision         int64          `gorm:"not null" json:"revision"`
	Payload          datatypes.JSON `json:"payload"`
	PublishStatus    string         `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time     `json:"published_at"`
	PubSubMessageId  *string        `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int            `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time     `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time     `gorm:"index" json:"locked_at"`
	LockedBy         *string        `gorm:"size:100" json:"locked_by"`
	LastPublishError *string        `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string         `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e OutboxEvent) ToPubSubMessage() config.PubSubMessage {
	return config.PubSubMessage{
		ID:            e.ID,
		WorkbenchId:   e.WorkbenchId,
		EventType:     e.EventType,
		EntityType:    e.EntityType,
		EntityId:      e.EntityId,
		Revision:      e.Revision,
		Payload:       e.Payload,
		CorrelationId: e.CorrelationId,
		OccurredAt:    e.CreatedAt,
	}
}

func enqueueOutboxEvent(tx *gorm.DB, workbenchId string, eventType string, entityType string, entityId int, revision int64, payload any, correlationId string) error {
	var data datatypes.JSON
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		data = datatypes.JSON(b)
	}
	return tx.Create(&OutboxEvent{
		WorkbenchId:   workbenchId,
		EventType:     eventType,
		EntityType:    entityType,
		EntityId:      entityId,
		Revision:      revision,
		Payload:       data,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}).Error
}
