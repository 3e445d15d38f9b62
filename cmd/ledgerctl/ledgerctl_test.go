package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/models/reports"
	"github.com/mmdatafocus/ledger_engine/testutils"
	"github.com/mmdatafocus/ledger_engine/utils"
	"github.com/mmdatafocus/ledger_engine/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	t.Cleanup(func() { stdout, stderr = prevOut, prevErr })
	return out, errOut
}

func execute(c subcommands.Command) subcommands.ExitStatus {
	return c.Execute(context.Background(), flag.NewFlagSet(c.Name(), flag.ContinueOnError))
}

func workbenchOf(t *testing.T, ctx context.Context) string {
	t.Helper()
	id, ok := utils.GetWorkbenchIdFromContext(ctx)
	require.True(t, ok)
	return id
}

func TestCreateWorkbenchCmd(t *testing.T) {
	testutils.SetupTestDB(t)
	out, _ := capture(t)

	status := execute(&createWorkbenchCmd{name: "Ops", currency: "usd", skipDefaults: true})
	require.Equal(t, subcommands.ExitSuccess, status)

	var workbench models.Workbench
	require.NoError(t, json.Unmarshal(out.Bytes(), &workbench))
	assert.Equal(t, "Ops", workbench.Name)
	assert.Equal(t, "USD", workbench.Currency)

	_, errOut := capture(t)
	status = execute(&createWorkbenchCmd{})
	assert.Equal(t, subcommands.ExitFailure, status)
	assert.Contains(t, errOut.String(), "name")
}

func TestSeedAccountsCmd(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	workbenchId := workbenchOf(t, ctx)
	out, _ := capture(t)

	require.Equal(t, subcommands.ExitSuccess, execute(&seedAccountsCmd{workbench: workbenchId}))
	assert.Equal(t, "0 of 16 accounts created\n", out.String())

	chart := filepath.Join(t.TempDir(), "chart.yaml")
	require.NoError(t, os.WriteFile(chart, []byte(`accounts:
  - code: "1020"
    name: Petty Cash
    type: Asset
    cash_impact: true
`), 0o600))
	out.Reset()
	require.Equal(t, subcommands.ExitSuccess, execute(&seedAccountsCmd{workbench: workbenchId, file: chart}))
	assert.Equal(t, "1 of 1 accounts created\n", out.String())
	testutils.AccountByCode(t, ctx, "1020")

	assert.Equal(t, subcommands.ExitUsageError, execute(&seedAccountsCmd{}))
	assert.Equal(t, subcommands.ExitUsageError, execute(&seedAccountsCmd{workbench: "missing"}))
}

func TestSnapshotCmd(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Sale", models.DirectionCredit, decimal.NewFromInt(1000))
	_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)
	out, _ := capture(t)

	require.Equal(t, subcommands.ExitSuccess, execute(&snapshotCmd{workbench: workbenchOf(t, ctx), asOf: "2026-06-15"}))
	var snapshot reports.FinancialSnapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snapshot))
	assert.True(t, snapshot.Cash.Equal(decimal.NewFromInt(1000)), snapshot.Cash.String())
	assert.Equal(t, 2026, snapshot.AsOf.Year())

	assert.Equal(t, subcommands.ExitUsageError, execute(&snapshotCmd{workbench: workbenchOf(t, ctx), asOf: "15/06/2026"}))
}

func TestExceptionsCmd(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	workbenchId := workbenchOf(t, ctx)
	out, _ := capture(t)

	require.Equal(t, subcommands.ExitSuccess, execute(&exceptionsCmd{workbench: workbenchId, asOf: "2026-06-15"}))
	assert.Equal(t, "no exceptions\n", out.String())

	testutils.CreateCompliance(t, ctx, "GSTR-3B", time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC))
	out.Reset()
	assert.Equal(t, subcommands.ExitFailure, execute(&exceptionsCmd{workbench: workbenchId, asOf: "2026-06-15"}))
	assert.Contains(t, out.String(), string(reports.ExceptionComplianceOverdue))
}

func TestReconcileCmd(t *testing.T) {
	ctx := testutils.SetupTestDB(t)
	record := testutils.CreateTransaction(t, ctx, "Sale", models.DirectionCredit, decimal.NewFromInt(100))
	_, err := workflow.ConfirmRecord(ctx, record.ID, nil)
	require.NoError(t, err)
	out, _ := capture(t)

	require.Equal(t, subcommands.ExitSuccess, execute(&reconcileCmd{workbench: workbenchOf(t, ctx)}))
	assert.Equal(t, "clean\n", out.String())

	orphan := testutils.CreateTransaction(t, ctx, "Forced", models.DirectionCredit, decimal.NewFromInt(50))
	require.NoError(t, testutils.DB(ctx).Model(&models.Record{}).Where("id = ?", orphan.ID).
		UpdateColumn("status", models.RecordStatusConfirmed).Error)
	out.Reset()
	assert.Equal(t, subcommands.ExitFailure, execute(&reconcileCmd{workbench: workbenchOf(t, ctx)}))
	assert.Contains(t, out.String(), "MISSING_POSTING")
}

func TestDispatchOutboxCmd_RequiresPubSub(t *testing.T) {
	testutils.SetupTestDB(t)
	t.Setenv("PUBSUB_PROJECT_ID", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")
	t.Setenv("PUBSUB_TOPIC", "")
	_, errOut := capture(t)

	assert.Equal(t, subcommands.ExitFailure, execute(&dispatchOutboxCmd{once: true}))
	assert.Contains(t, errOut.String(), "pubsub is not configured")
}
