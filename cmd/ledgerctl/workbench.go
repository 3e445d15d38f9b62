package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/mmdatafocus/ledger_engine/models"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or update the ledger tables." }
func (*migrateCmd) Usage() string {
	return `migrate

  Runs AutoMigrate for every table. Use it when the server starts with SKIP_MIGRATIONS=true.
`
}
func (*migrateCmd) SetFlags(f *flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := connect(); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(stdout, "migrated")
	return subcommands.ExitSuccess
}

type createWorkbenchCmd struct {
	name         string
	currency     string
	skipDefaults bool
}

func (*createWorkbenchCmd) Name() string     { return "create-workbench" }
func (*createWorkbenchCmd) Synopsis() string { return "create a workbench with the default chart of accounts." }
func (*createWorkbenchCmd) Usage() string {
	return `create-workbench -name <name> [-currency INR] [-skip-defaults]

  Prints the new workbench as JSON.
`
}

func (c *createWorkbenchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "workbench name")
	f.StringVar(&c.currency, "currency", "", "ISO 4217 currency (defaults to DEFAULT_CURRENCY)")
	f.BoolVar(&c.skipDefaults, "skip-defaults", false, "do not seed the default chart of accounts")
}

func (c *createWorkbenchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := connect(); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	workbench, err := models.CreateWorkbench(cliContext(ctx), &models.NewWorkbench{
		Name:         c.name,
		Currency:     c.currency,
		SkipDefaults: c.skipDefaults,
	})
	if err != nil {
		fmt.Fprintf(stderr, "create workbench: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := writeJSON(workbench); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type seedAccountsCmd struct {
	workbench string
	file      string
}

func (*seedAccountsCmd) Name() string     { return "seed-accounts" }
func (*seedAccountsCmd) Synopsis() string { return "add missing accounts from a chart of accounts file." }
func (*seedAccountsCmd) Usage() string {
	return `seed-accounts -w <workbench id> [-f chart.yaml]

  Accounts whose code already exists are skipped. Without -f the default chart is used.
`
}

func (c *seedAccountsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.workbench, "w", "", "workbench id")
	f.StringVar(&c.file, "f", "", "chart of accounts yaml")
}

func (c *seedAccountsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := connect(); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	ctx, err := workbenchContext(ctx, c.workbench, "")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitUsageError
	}

	var accounts []models.NewAccount
	if c.file == "" {
		accounts, err = models.DefaultChartOfAccounts()
	} else {
		var r *os.File
		if r, err = os.Open(c.file); err == nil {
			accounts, err = models.LoadChartOfAccounts(r)
			r.Close()
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}

	created, err := models.SeedChartOfAccounts(ctx, accounts)
	if err != nil {
		fmt.Fprintf(stderr, "seed accounts: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(stdout, "%d of %d accounts created\n", created, len(accounts))
	return subcommands.ExitSuccess
}
