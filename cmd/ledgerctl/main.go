// ledgerctl runs operator tasks against the ledger database.
//
// Usage:
//
//	DB_DRIVER=mysql DB_USER=... DB_PASSWORD=... DB_HOST=... DB_NAME=... ledgerctl <command> [flags]
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

var commands = []subcommands.Command{
	&migrateCmd{},
	&createWorkbenchCmd{},
	&seedAccountsCmd{},
	&snapshotCmd{},
	&exceptionsCmd{},
	&reconcileCmd{},
	&dispatchOutboxCmd{},
}
