package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"signflow/internal/bootstrap"
	"signflow/internal/cli"
	"signflow/internal/config"
	"signflow/internal/database/migration"
	"signflow/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand(open).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "signctl:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}

// open builds the backend from the environment. Logs go to stderr so stdout stays parseable.
func open(ctx context.Context, opts cli.OpenOptions) (*cli.Backend, error) {
	cfg := config.Load()
	if cfg.Logger.OutputPath == "stdout" {
		cfg.Logger.OutputPath = "stderr"
	}
	if opts.Verbose {
		cfg.Logger.Level = "debug"
	}
	zl, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, err
	}

	rt, err := bootstrap.Open(ctx, cfg, zl, bootstrap.Options{Engine: opts.Engine})
	if err != nil {
		return nil, err
	}

	b := &cli.Backend{
		Migrate: func(ctx context.Context) error {
			return migration.EnsureMigrated(ctx, rt.DB, zl, cfg.Database.Host)
		},
		Migrated: func(ctx context.Context) (bool, error) {
			return migration.IsMigrated(ctx, rt.DB)
		},
		Close: rt.Close,
	}
	if rt.Engine != nil {
		b.Reconciler = rt.Engine
	}
	return b, nil
}
