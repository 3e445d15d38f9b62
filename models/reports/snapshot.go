package reports

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("ledger_engine/reports")

// ledgerSnapshot is everything one aggregation pass reads, loaded from a
// single read transaction so a concurrent write is seen entirely or not at all.
type ledgerSnapshot struct {
	Workbench *models.Workbench
	AsOf      time.Time

	Accounts map[int]*models.Account
	Parties  map[int]*models.Party
	Records  []*models.Record
	Entries  []*models.LedgerEntry
	Budgets  []*models.Budget

	recordsById map[int]*models.Record
	processed   map[int]bool
}

func snapshotTxOptions(db *gorm.DB) *sql.TxOptions {
	switch db.Dialector.Name() {
	case config.DriverMySQL, config.DriverPostgres:
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	// sqlite transactions are already serializable
	return nil
}

func loadSnapshot(ctx context.Context) (*ledgerSnapshot, error) {
	workbenchId, ok := utils.GetWorkbenchIdFromContext(ctx)
	if !ok || workbenchId == "" {
		return nil, utils.ErrWorkbenchNotFound
	}
	ctx, span := tracer.Start(ctx, "reports.loadSnapshot", trace.WithAttributes(attribute.String("workbench_id", workbenchId)))
	defer span.End()

	db := config.GetDB()
	snap := &ledgerSnapshot{AsOf: utils.GetReferenceTimeFromContext(ctx)}
	var accounts []*models.Account
	var parties []*models.Party

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var workbench models.Workbench
		if err := tx.Where("id = ?", workbenchId).First(&workbench).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrWorkbenchNotFound
			}
			return err
		}
		snap.Workbench = &workbench
		if err := tx.Order("code").Find(&accounts).Error; err != nil {
			return err
		}
		if err := tx.Find(&parties).Error; err != nil {
			return err
		}
		if err := tx.Order("id").Find(&snap.Records).Error; err != nil {
			return err
		}
		if err := tx.Order("id").Find(&snap.Entries).Error; err != nil {
			return err
		}
		return tx.Preload("Items").Order("id").Find(&snap.Budgets).Error
	}, snapshotTxOptions(db))
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, utils.ErrWorkbenchNotFound) {
			return nil, err
		}
		config.LogError(config.GetLogger(), "Reports", "loadSnapshot", "read", workbenchId, err)
		return nil, utils.WrapPersistence("load snapshot", err)
	}

	snap.Accounts = make(map[int]*models.Account, len(accounts))
	for _, a := range accounts {
		snap.Accounts[a.ID] = a
	}
	snap.Parties = make(map[int]*models.Party, len(parties))
	for _, p := range parties {
		snap.Parties[p.ID] = p
	}
	snap.recordsById = make(map[int]*models.Record, len(snap.Records))
	for _, r := range snap.Records {
		snap.recordsById[r.ID] = r
	}
	snap.processed = map[int]bool{}
	for _, e := range snap.Entries {
		if e.RecordId != nil {
			snap.processed[*e.RecordId] = true
		}
		if e.AdjustsRecordId != nil {
			snap.processed[*e.AdjustsRecordId] = true
		}
	}
	span.SetAttributes(
		attribute.Int("records", len(snap.Records)),
		attribute.Int("ledger_entries", len(snap.Entries)),
		attribute.Int64("revision", snap.Workbench.Revision),
	)
	return snap, nil
}

func (s *ledgerSnapshot) record(id int) *models.Record {
	return s.recordsById[id]
}

// isUnposted reports a live transaction with no ledger representation.
func (s *ledgerSnapshot) isUnposted(r *models.Record) bool {
	if r.RecordType != models.RecordTypeTransaction || r.Status == models.RecordStatusCancelled {
		return false
	}
	if t := r.Transaction(); t == nil || t.IsReversed {
		return false
	}
	return !s.processed[r.ID]
}

func (s *ledgerSnapshot) partyName(id *int) string {
	if id == nil {
		return unknownParty
	}
	if p, ok := s.Parties[*id]; ok {
		return p.Name
	}
	return unknownParty
}

func (s *ledgerSnapshot) currency() string {
	if s.Workbench != nil && s.Workbench.Currency != "" {
		return s.Workbench.Currency
	}
	return config.DefaultCurrency()
}
