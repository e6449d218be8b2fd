// ledgerctl runs one-off administrative tasks against the ledger:
//
//	ledgerctl import-legacy [--batch-size N] [--dry-run]
//	ledgerctl token --user-id N --role manager [--ttl 24h]
//
// Storage and secrets come from the same environment as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/auth"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/backend"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/cli"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/config"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/core"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/legacy"
	"github.com/coderwalt570/WaltonsCreativeStudio/internal/log"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  import-legacy   move CREATE_EXPENSE audit rows into the expenses table
  token           mint a bearer token for local testing
`

var errUsage = errors.New("invalid usage")

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	ctx = log.NewContext(ctx, logger)

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errUsage
	}
	switch args[0] {
	case "import-legacy":
		return runImport(ctx, args[1:], stdout, stderr)
	case "token":
		return runToken(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return errUsage
	}
}

func runImport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		batchSize int
		dryRun    bool
	)
	flagSet := pflag.NewFlagSet("import-legacy", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.IntVar(&batchSize, "batch-size", 100, "audit rows read per query")
	flagSet.BoolVar(&dryRun, "dry-run", false, "decode and report without writing")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if batchSize < 1 {
		return fmt.Errorf("--batch-size must be at least 1, got %d", batchSize)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	logger := log.FromContext(ctx).WithComponent(log.ComponentLegacy)
	store, err := backend.NewFactory(logger.Slog()).OpenLegacyStore(backendCfg)
	if err != nil {
		return err
	}
	defer store.Close()

	importer := legacy.NewImporter(store, store,
		legacy.WithBatchSize(batchSize),
		legacy.WithDryRun(dryRun),
		legacy.WithLogger(logger.Slog()))
	report, err := importer.Run(ctx)
	fmt.Fprintf(stdout, "scanned=%d imported=%d rejected=%d dry_run=%t\n",
		report.Scanned, report.Imported, report.Rejected, dryRun)
	return err
}

func runToken(args []string, stdout, stderr io.Writer) error {
	var (
		userID int64
		role   string
		ttl    time.Duration
	)
	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Int64Var(&userID, "user-id", 0, "user id placed in the subject claim")
	flagSet.StringVar(&role, "role", "", "one of owner, manager, accountant")
	flagSet.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	if userID <= 0 {
		return errors.New("--user-id must be positive")
	}
	parsed, ok := core.ParseRole(role)
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}
	if ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	cfg := config.Load()
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("AUTH_JWT_SECRET is not set")
	}
	token, err := auth.NewJWTGate(cfg.JWTSecret, cfg.JWTIssuer).Issue(core.Actor{ID: userID, Role: parsed}, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
