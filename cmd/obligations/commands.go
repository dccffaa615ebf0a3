package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/odyssey-erp/obligations/cmd/obligations/cli"
	"github.com/odyssey-erp/obligations/internal/app"
	"github.com/odyssey-erp/obligations/jobs"
)

// --- serveCmd ---

type serveCmd struct {
	cfg    *app.Config
	logger *slog.Logger
	stop   context.CancelFunc
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP server" }
func (*serveCmd) Usage() string {
	return `obligations serve

  Serves the ledger, settlement, receipt and job endpoints until interrupted.
`
}
func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := serve(ctx, c.stop, c.cfg, c.logger); err != nil {
		c.logger.Error("serve", slog.Any("error", err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- overdueCmd ---

type overdueCmd struct {
	cfg    *app.Config
	logger *slog.Logger
	opts   cli.OverdueOptions
}

func (*overdueCmd) Name() string     { return "overdue" }
func (*overdueCmd) Synopsis() string { return "print overdue obligations" }
func (*overdueCmd) Usage() string {
	return `obligations overdue [-as-of <date>] [-min-days <n>] [-json]

  Reconciles the portfolio and prints receivable lines past their deadline.
  Exits 10 when anything is overdue.
`
}

func (c *overdueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.opts.AsOf, "as-of", "", "reference date YYYY-MM-DD (default today)")
	f.IntVar(&c.opts.MinDays, "min-days", 1, "minimum days past due")
	f.BoolVar(&c.opts.JSONOutput, "json", false, "print JSON")
}

func (c *overdueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	// Reads go straight to the store; the CLI never shares the server cache.
	core, err := app.NewCore(ctx, app.CoreParams{Config: c.cfg, Logger: c.logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "overdue: %v\n", err)
		return subcommands.ExitFailure
	}
	defer core.Close()
	scanner := jobs.NewOverdueScanJob(core.Ledger, c.logger, nil)
	return subcommands.ExitStatus(cli.OverdueCommand(ctx, scanner, time.Now().UTC(), c.opts))
}

// --- triggerCmd ---

type triggerCmd struct {
	cfg     *app.Config
	asOf    string
	types   string
	minDays int
}

func (*triggerCmd) Name() string     { return "trigger" }
func (*triggerCmd) Synopsis() string { return "enqueue a background job" }
func (*triggerCmd) Usage() string {
	return `obligations trigger [-as-of <date>] [-types <list>] [-min-days <n>] <task>

  Enqueues ledger:warmup or ledger:overdue_scan on the default queue.
`
}

func (c *triggerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "reference date YYYY-MM-DD")
	f.StringVar(&c.types, "types", "", "comma separated obligation types for warmup")
	f.IntVar(&c.minDays, "min-days", 0, "minimum days past due for overdue scan")
}

func (c *triggerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "trigger: exactly one task name is required")
		return subcommands.ExitUsageError
	}
	params := cli.TriggerParams{MinDays: c.minDays}
	if c.asOf != "" {
		t, err := time.Parse("2006-01-02", c.asOf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trigger: invalid as-of %q\n", c.asOf)
			return subcommands.ExitUsageError
		}
		params.AsOf = t
	}
	if c.types != "" {
		params.Types = strings.Split(c.types, ",")
	}

	jc := cli.NewJobsCLI(c.cfg.RedisAddr)
	defer func() { _ = jc.Close() }()
	info, err := jc.Trigger(ctx, f.Arg(0), params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trigger: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return subcommands.ExitSuccess
}

// --- inspectCmd ---

type inspectCmd struct {
	cfg *app.Config
}

func (*inspectCmd) Name() string     { return "inspect" }
func (*inspectCmd) Synopsis() string { return "print default queue counters" }
func (*inspectCmd) Usage() string {
	return `obligations inspect
`
}
func (*inspectCmd) SetFlags(*flag.FlagSet) {}

func (c *inspectCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	jc := cli.NewJobsCLI(c.cfg.RedisAddr)
	defer func() { _ = jc.Close() }()
	stats, err := jc.InspectQueue()
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	return subcommands.ExitSuccess
}
