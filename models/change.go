package models

import (
	"errors"

	"github.com/mmdatafocus/ledger_engine/utils"
	"gorm.io/gorm"
)

// Change describes one mutation. LogChange writes its audit row, bumps the
// workbench revision and enqueues the outbox event, all on tx.
type Change struct {
	Action     AuditAction
	EntityType string
	EntityId   int
	OldData    any
	NewData    any
}

func LogChange(tx *gorm.DB, c Change) error {
	ctx := tx.Statement.Context
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return errors.New("workbench id is required")
	}
	if err := createAuditLog(tx, c.Action, c.EntityType, c.EntityId, c.OldData, c.NewData); err != nil {
		return err
	}
	revision, err := bumpWorkbenchRevision(tx, workbenchId)
	if err != nil {
		return err
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	return enqueueOutboxEvent(tx, workbenchId, string(c.Action), c.EntityType, c.EntityId, revision, c.NewData, cid)
}
