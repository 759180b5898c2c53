// Package bootstrap wires the configured collaborators shared by the API server and signctl.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/database"
	"signflow/internal/provider/docusign"
	"signflow/internal/repository/postgres"
	"signflow/internal/service"
	"signflow/internal/storage"
	"signflow/internal/workflow"
)

// Options selects what Open builds besides the database pool.
type Options struct {
	// Engine builds object storage, the DocuSign client, the engine and the signature service.
	Engine bool
}

// Runtime holds the opened collaborators. Fields beyond DB and Repo are nil
// unless Options.Engine was set.
type Runtime struct {
	Config     *config.AppConfig
	Logger     *zap.Logger
	Registry   *prometheus.Registry
	DB         *sql.DB
	Repo       *postgres.SignaturePostgres
	Storage    storage.Storage
	Gateway    *docusign.Client
	Engine     *workflow.Engine
	Signatures service.SignatureService
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Open connects to PostgreSQL and, when requested, builds the reconciliation stack.
// On error everything opened so far is closed.
func Open(ctx context.Context, cfg *config.AppConfig, log *zap.Logger, opts Options) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rt := &Runtime{Config: cfg, Logger: log, Registry: NewRegistry()}

	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rt.DB = db
	rt.Repo = postgres.NewSignaturePostgres(db)

	if !opts.Engine {
		return rt, nil
	}

	if err := rt.openEngine(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) openEngine(ctx context.Context) error {
	cfg := rt.Config

	objects, err := storage.NewMinIO(ctx, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("initialize object storage: %w", err)
	}
	rt.Storage = objects

	gw, err := docusign.New(cfg.DocuSign, docusign.WithLogger(rt.Logger))
	if err != nil {
		return fmt.Errorf("initialize docusign client: %w", err)
	}
	rt.Gateway = gw

	metrics, err := workflow.NewMetrics(rt.Registry)
	if err != nil {
		return fmt.Errorf("register workflow metrics: %w", err)
	}

	rt.Engine = workflow.NewEngine(rt.Repo, gw, objects, rt.Logger,
		workflow.WithMetrics(metrics),
		workflow.WithProviderTimeout(cfg.DocuSign.Timeout),
		workflow.WithTracer(otel.Tracer("signflow/workflow")),
	)
	rt.Signatures = service.NewSignatureService(objects, rt.Repo, gw, rt.Logger, cfg.MinIO.PresignTTL)
	return nil
}

// Close releases the database pool and flushes the logger.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	_ = rt.Logger.Sync()
	return errors.Join(errs...)
}
