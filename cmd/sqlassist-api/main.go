package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlassist/sqlassist/internal/api"
	"github.com/sqlassist/sqlassist/internal/api/uistatic"
	"github.com/sqlassist/sqlassist/internal/assist"
	auditpostgres "github.com/sqlassist/sqlassist/internal/audit/postgres"
	"github.com/sqlassist/sqlassist/internal/auth"
	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/sqlstore"
	s3store "github.com/sqlassist/sqlassist/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlassist-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	objectStoreCfg := s3store.ConfigFrom(cfg.ObjectStore)
	if cfg.Store.ObjectKey != "" && objectStoreCfg.Enabled() {
		fetchCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		objectStore, err := s3store.New(fetchCtx, objectStoreCfg)
		if err != nil {
			cancel()
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		written, err := sqlstore.Fetch(fetchCtx, objectStore, cfg.Store.ObjectKey, cfg.Store.Path)
		cancel()
		if err != nil {
			logger.Error("failed to fetch store file", slog.String("key", cfg.Store.ObjectKey), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("fetched store file",
			slog.String("key", cfg.Store.ObjectKey),
			slog.String("path", cfg.Store.Path),
			slog.Int64("bytes", written),
		)
	}

	assembly, err := assist.Assemble(cfg, logger)
	if err != nil {
		logger.Error("failed to build assistant", slog.Any("error", err))
		os.Exit(1)
	}
	if assembly.CompleterErr != nil {
		logger.Warn("completion client is not configured; questions will fail until it is",
			slog.String("provider", cfg.AI.Provider),
			slog.Any("error", assembly.CompleterErr),
		)
	}

	checks := []api.ReadinessCheck{api.CheckPing("store", assembly.Executor)}
	deps := api.Dependencies{
		Logger:            logger,
		Assistant:         assembly.Pipeline,
		Schema:            assembly.Pipeline.Schema(),
		Inspector:         assembly.Executor,
		SampleRows:        cfg.UI.SampleRows,
		UI:                uistatic.Handler(),
		DependencyTimeout: time.Second,
	}
	if cfg.Audit.Enabled() {
		auditDB, err := auditpostgres.Open(context.Background(), cfg.Audit)
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()

		auditRepo := auditpostgres.NewRepository(auditDB)
		deps.Audit = auditRepo
		checks = append(checks, api.CheckPing("audit", auditRepo))
	}
	deps.Readiness = api.CombineReadinessChecks(checks...)

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("store_driver", cfg.Store.Driver),
			slog.String("store_path", cfg.Store.Path),
			slog.Bool("audit", cfg.Audit.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
