package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"signflow/internal/bootstrap"
	"signflow/internal/config"
	"signflow/internal/database/migration"
	handlers "signflow/internal/http/handler"
	"signflow/internal/http/middleware"
	"signflow/internal/logger"
	"signflow/internal/otel"
)

// @title Signflow API
// @version 1.0
// @description Signature requests and DocuSign status reconciliation.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	zl, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.AppConfig, zl *zap.Logger) error {
	shutdownTracing, err := otel.Init(ctx, cfg.Tracing, zl)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			zl.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	rt, err := bootstrap.Open(ctx, cfg, zl, bootstrap.Options{Engine: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.Database.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, rt.DB, zl, cfg.Database.Host); err != nil {
			return err
		}
	}

	prom, err := middleware.NewPrometheusMiddleware(rt.Registry)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
		BodyLimit:    32 << 20,
	})

	// RequestID first so every later middleware and handler sees it
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		switch c.Path() {
		case "/health", "/healthz", "/metrics":
			return true
		}
		return false
	})))
	app.Use(middleware.Logger(zl))
	app.Use(prom.Handler())

	handlers.RegisterRoutes(app, rt.DB, rt.Signatures, rt.Engine, handlers.Config{
		PublicURL:     cfg.PublicURL,
		ConnectSecret: cfg.DocuSign.ConnectSecret,
		UseCallback:   cfg.DocuSign.UseCallback,
		Gatherer:      rt.Registry,
		Logger:        zl,
	})

	errCh := make(chan error, 1)
	go func() {
		zl.Info("http server listening", zap.String("addr", ":"+cfg.Port), zap.String("public_url", cfg.PublicURL))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return app.ShutdownWithContext(sctx)
}
