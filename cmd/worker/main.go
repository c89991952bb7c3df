package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/granite-erp/granite-erp/internal/app"
	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/changerequest"
	jobmetrics "github.com/granite-erp/granite-erp/internal/jobs"
	"github.com/granite-erp/granite-erp/internal/platform/db"
	"github.com/granite-erp/granite-erp/internal/projects"
	"github.com/granite-erp/granite-erp/internal/reconcile"
	"github.com/granite-erp/granite-erp/internal/tracking"
	"github.com/granite-erp/granite-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	boqRepo := boq.NewRepository(pool)
	projectRepo := projects.NewRepository(pool)
	crRepo := changerequest.NewRepository(pool)
	trackingRepo := tracking.NewRepository(pool)
	reconcileService := reconcile.NewService(boqRepo, crRepo, trackingRepo, projectRepo, nil, logger)

	scanJob := jobs.NewOverrunScanJob(boqRepo, reconcileService, jobs.NewAlertRepository(pool), logger, metrics, cfg.OverrunAlertThreshold)

	scanTask, err := jobs.NewOverrunScanTask(jobs.OverrunScanPayload{})
	if err != nil {
		logger.Error("build overrun scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskReportOverrunScan, Handler: scanJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.OverrunScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
