package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/workflow"
)

type dispatchOutboxCmd struct {
	once bool
}

func (*dispatchOutboxCmd) Name() string     { return "dispatch-outbox" }
func (*dispatchOutboxCmd) Synopsis() string { return "publish pending outbox events to Pub/Sub." }
func (*dispatchOutboxCmd) Usage() string {
	return `dispatch-outbox [-once]

  Without -once it polls until interrupted. Needs PUBSUB_PROJECT_ID and PUBSUB_TOPIC.
`
}

func (c *dispatchOutboxCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.once, "once", false, "publish one batch and exit")
}

func (c *dispatchOutboxCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := connect(); err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitFailure
	}
	if !config.PubSubConfigured() {
		fmt.Fprintln(stderr, "pubsub is not configured; set PUBSUB_PROJECT_ID and PUBSUB_TOPIC")
		return subcommands.ExitFailure
	}
	dispatcher := workflow.NewOutboxDispatcher(config.GetDB(), config.GetLogger(), workflow.PubSubPublisher{})

	if c.once {
		n, err := dispatcher.DispatchOnce(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "dispatch: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(stdout, "%d events published\n", n)
		return subcommands.ExitSuccess
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	dispatcher.Run(ctx)
	return subcommands.ExitSuccess
}
