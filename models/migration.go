package models

import (
	"errors"

	"github.com/mmdatafocus/ledger_engine/config"
)

func MigrateTable() error {
	db := config.GetDB()
	if db == nil {
		return errors.New("db is nil")
	}
	return db.AutoMigrate(
		&Workbench{},
		&Account{},
		&Party{},
		&Budget{}, &BudgetItem{},
		&Record{},
		&LedgerEntry{},
		&AuditLog{},
		&OutboxEvent{},
		&ReconciliationReport{},
	)
}
