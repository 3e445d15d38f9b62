package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/utils"
)

const (
	cliActorId   = "ledgerctl"
	cliActorName = "ledgerctl"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// connect reuses an installed handle, otherwise dials with the DB_* env.
func connect() error {
	if config.GetDB() == nil {
		config.ConnectDatabaseWithRetry()
	}
	if config.GetDB() == nil {
		return fmt.Errorf("database not initialized; set DB_* env vars")
	}
	return nil
}

// cliContext stamps the cli actor and a correlation id.
func cliContext(ctx context.Context) context.Context {
	ctx = utils.SetActorIdInContext(ctx, cliActorId)
	ctx = utils.SetActorNameInContext(ctx, cliActorName)
	return utils.SetCorrelationIdInContext(ctx, uuid.NewString())
}

// workbenchContext resolves the workbench and pins the reference day when asOf is set.
func workbenchContext(ctx context.Context, workbenchId string, asOf string) (context.Context, error) {
	workbenchId = strings.TrimSpace(workbenchId)
	if workbenchId == "" {
		return nil, fmt.Errorf("-w <workbench id> is required")
	}
	ctx = cliContext(ctx)
	if _, err := models.GetWorkbench(ctx, workbenchId); err != nil {
		return nil, fmt.Errorf("workbench %s: %w", workbenchId, err)
	}
	ctx = utils.SetWorkbenchIdInContext(ctx, workbenchId)
	if asOf != "" {
		t, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return nil, fmt.Errorf("-as-of must be YYYY-MM-DD: %w", err)
		}
		ctx = utils.SetReferenceTimeInContext(ctx, t)
	}
	return ctx, nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
