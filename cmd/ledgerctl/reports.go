package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/mmdatafocus/ledger_engine/models/reports"
)

type snapshotCmd struct {
	workbench string
	asOf      string
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "print the derived financial snapshot of a workbench." }
func (*snapshotCmd) Usage() string {
	return `snapshot -w <workbench id> [-as-of YYYY-MM-DD]
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.workbench, "w", "", "workbench id")
	f.StringVar(&c.asOf, "as-of", "", "reference day (defaults to today)")
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := connect(); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	ctx, err := workbenchContext(ctx, c.workbench, c.asOf)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitUsageError
	}
	snapshot, err := reports.GetFinancialSnapshot(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "snapshot: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := writeJSON(snapshot); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type exceptionsCmd struct {
	workbench string
	asOf      string
}

func (*exceptionsCmd) Name() string     { return "exceptions" }
func (*exceptionsCmd) Synopsis() string { return "list detected exceptions, most severe first." }
func (*exceptionsCmd) Usage() string {
	return `exceptions -w <workbench id> [-as-of YYYY-MM-DD]

  Exits with status 1 when any critical exception is present.
`
}

func (c *exceptionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.workbench, "w", "", "workbench id")
	f.StringVar(&c.asOf, "as-of", "", "reference day (defaults to today)")
}

func (c *exceptionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := connect(); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	ctx, err := workbenchContext(ctx, c.workbench, c.asOf)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitUsageError
	}
	list, err := reports.GetExceptions(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "exceptions: %v\n", err)
		return subcommands.ExitFailure
	}
	critical := false
	for _, e := range list {
		fmt.Fprintf(stdout, "%-8s  %-22s  %s\n", e.Severity, e.Type, e.Message)
		critical = critical || e.Severity == reports.SeverityCritical
	}
	if len(list) == 0 {
		fmt.Fprintln(stdout, "no exceptions")
	}
	if critical {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type reconcileCmd struct {
	workbench string
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "compare records with ledger postings." }
func (*reconcileCmd) Usage() string {
	return `reconcile -w <workbench id>

  Stores and prints one row per mismatch. Exits with status 1 when any is found.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.workbench, "w", "", "workbench id")
}

func (c *reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := connect(); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	ctx, err := workbenchContext(ctx, c.workbench, "")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitUsageError
	}
	rows, err := models.RunReconciliationChecks(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "reconcile: %v\n", err)
		return subcommands.ExitFailure
	}
	for _, r := range rows {
		fmt.Fprintf(stdout, "%s  %s #%d  %s\n", r.CheckType, r.EntityType, r.EntityId, r.Details)
	}
	if len(rows) > 0 {
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, "clean")
	return subcommands.ExitSuccess
}
