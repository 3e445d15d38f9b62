package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/ledger_engine/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const workbenchColumn = "workbench_id"

// WorkbenchGuardPlugin scopes queries, updates and deletes to the request's
// workbench_id whenever the model carries that column.
//
// NOTE:
// - Raw SQL is not scoped. Raw queries must filter workbench_id themselves.
// - Bypass is explicit via context flags (cli, outbox dispatcher).
type WorkbenchGuardPlugin struct{}

func NewWorkbenchGuardPlugin() *WorkbenchGuardPlugin { return &WorkbenchGuardPlugin{} }

func (p *WorkbenchGuardPlugin) Name() string { return "workbench_guard" }

func (p *WorkbenchGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("workbench_guard:query", workbenchGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("workbench_guard:row", workbenchGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("workbench_guard:update", workbenchGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("workbench_guard:delete", workbenchGuardCallback); err != nil {
		return err
	}
	return nil
}

func workbenchGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil {
		return
	}
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if shouldBypassWorkbenchScope(ctx) {
		return
	}
	workbenchId := workbenchIdFromContext(ctx)
	if workbenchId == "" {
		return
	}
	if db.Statement.Schema == nil {
		return
	}
	if _, ok := db.Statement.Schema.FieldsByDBName[workbenchColumn]; !ok {
		return
	}
	if whereHasWorkbenchId(db.Statement.Clauses["WHERE"]) {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: workbenchColumn},
				Value:  workbenchId,
			},
		},
	})
}

func workbenchIdFromContext(ctx context.Context) string {
	if v, ok := appctx.GetString(ctx, appctx.ContextKeyWorkbenchId); ok {
		return v
	}
	return ""
}

func shouldBypassWorkbenchScope(ctx context.Context) bool {
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeySkipWorkbenchScope); ok && v {
		return true
	}
	if v, ok := appctx.GetBool(ctx, appctx.ContextKeyIsAdmin); ok && v {
		return true
	}
	return false
}

func whereHasWorkbenchId(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasWorkbenchId(e) {
			return true
		}
	}
	return false
}

func exprHasWorkbenchId(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsWorkbenchId(v.Column)
	case clause.Neq:
		return colIsWorkbenchId(v.Column)
	case clause.IN:
		return colIsWorkbenchId(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasWorkbenchId(x) {
				return true
			}
		}
		return false
	case clause.OrConditions:
		for _, x := range v.Exprs {
			if exprHasWorkbenchId(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		return strings.Contains(strings.ToLower(v.SQL), workbenchColumn)
	default:
		return false
	}
}

func colIsWorkbenchId(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, workbenchColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, workbenchColumn)
	default:
		return false
	}
}
