package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pocketledger/pocketledger/cmd/ledgerctl/cli"
	"github.com/pocketledger/pocketledger/internal/app"
	"github.com/pocketledger/pocketledger/internal/ledger"
	"github.com/pocketledger/pocketledger/internal/platform/db"
	"github.com/pocketledger/pocketledger/internal/shared"
	"github.com/pocketledger/pocketledger/jobs"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  migrate            apply pending database migrations
  verify [--json]    recompute every account balance and report drift
  jobs trigger       enqueue a ledger integrity run on the worker
  jobs stats         print the default queue statistics
`

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "ledgerctl: load config: %v\n", err)
		return 1
	}

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, cfg, stdout, stderr)
	case "verify":
		fs := flag.NewFlagSet("verify", flag.ContinueOnError)
		fs.SetOutput(stderr)
		jsonOut := fs.Bool("json", false, "print the report as JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		return runVerify(ctx, cfg, cli.VerifyOptions{JSONOutput: *jsonOut, Stdout: stdout, Stderr: stderr})
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}

func runMigrate(ctx context.Context, cfg *app.Config, stdout, stderr io.Writer) int {
	if !cfg.UsesPostgres() {
		_, _ = fmt.Fprintln(stderr, "migrate: STORAGE_BACKEND must be postgres")
		return 1
	}
	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	defer pool.Close()
	if err := db.Migrate(pool); err != nil {
		_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "migrations applied")
	return 0
}

func runVerify(ctx context.Context, cfg *app.Config, opts cli.VerifyOptions) int {
	if !cfg.UsesPostgres() {
		_, _ = fmt.Fprintln(opts.Stderr, "verify: STORAGE_BACKEND must be postgres")
		return 1
	}
	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
		return 1
	}
	defer pool.Close()
	svc := ledger.NewService(ledger.NewRepository(pool), shared.NewAuditLogger(pool))
	return cli.VerifyCommand(ctx, svc, opts)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		info, err := jobsCLI.Trigger(ctx, jobs.TaskLedgerIntegrity)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		if err := json.NewEncoder(stdout).Encode(stats); err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		return 0
	default:
		_, _ = fmt.Fprint(stderr, usage)
		return 2
	}
}
