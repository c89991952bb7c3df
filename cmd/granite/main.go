package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/granite-erp/granite-erp/internal/app"
	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/changerequest"
	"github.com/granite-erp/granite-erp/internal/observability"
	"github.com/granite-erp/granite-erp/internal/platform/cache"
	"github.com/granite-erp/granite-erp/internal/platform/db"
	"github.com/granite-erp/granite-erp/internal/projects"
	"github.com/granite-erp/granite-erp/internal/purchases"
	"github.com/granite-erp/granite-erp/internal/reconcile"
	"github.com/granite-erp/granite-erp/internal/shared"
	"github.com/granite-erp/granite-erp/internal/tracking"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The API serves reports without redis; readiness reports it.
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	boqRepo := boq.NewRepository(pool)
	projectRepo := projects.NewRepository(pool)
	crRepo := changerequest.NewRepository(pool)
	trackingRepo := tracking.NewRepository(pool)
	vatRepo := purchases.NewVATRepository(pool)
	poChildRepo := purchases.NewPOChildRepository(pool)
	auditLogger := shared.NewAuditLogger(pool)

	reconcileService := reconcile.NewService(boqRepo, crRepo, trackingRepo, projectRepo, metrics, logger)
	purchaseService := purchases.NewService(projectRepo, boqRepo, crRepo, vatRepo, poChildRepo, cfg.DefaultVATPercent, metrics, logger)
	crService := changerequest.NewService(crRepo, boqRepo, auditLogger)

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Pool:    pool,
		Redis:   redisClient,
		Handlers: []app.RouteMounter{
			reconcile.NewHandler(logger, reconcileService),
			purchases.NewHandler(logger, purchaseService),
			changerequest.NewHandler(logger, crService),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
