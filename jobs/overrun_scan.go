package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/granite-erp/granite-erp/internal/boq"
	jobmetrics "github.com/granite-erp/granite-erp/internal/jobs"
	"github.com/granite-erp/granite-erp/internal/platform/db"
	"github.com/granite-erp/granite-erp/internal/reconcile"
)

const defaultScanConcurrency = 4

// OverrunAlert is one recorded profit-buffer breach.
type OverrunAlert struct {
	ProjectID      int64
	BOQID          int64
	MasterItemID   int64
	ItemName       string
	PlannedProfit  float64
	ProfitConsumed float64
	Ratio          float64
	DetectedAt     time.Time
}

// ActiveBOQLister lists the BOQs worth scanning.
type ActiveBOQLister interface {
	ListActive(ctx context.Context) ([]boq.BOQ, error)
}

// ReportBuilder computes a reconciliation report for one BOQ.
type ReportBuilder interface {
	BuildBOQReport(ctx context.Context, boqID int64) (reconcile.Report, error)
}

// AlertStore persists overrun alerts. A scan's alerts are written as one
// atomic batch.
type AlertStore interface {
	InsertAll(ctx context.Context, alerts []OverrunAlert) error
}

// OverrunScanJob recomputes every active BOQ's reconciliation report and
// records an alert for each item whose extra costs have eaten past the
// configured share of its planned profit. Only alerts are persisted; the
// reports themselves are discarded.
type OverrunScanJob struct {
	BOQs      ActiveBOQLister
	Reports   ReportBuilder
	Alerts    AlertStore
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Threshold float64
	clock     func() time.Time
}

// NewOverrunScanJob initialises the overrun scan handler.
func NewOverrunScanJob(boqs ActiveBOQLister, reports ReportBuilder, alerts AlertStore, logger *slog.Logger, metrics *jobmetrics.Metrics, threshold float64) *OverrunScanJob {
	return &OverrunScanJob{
		BOQs:      boqs,
		Reports:   reports,
		Alerts:    alerts,
		Logger:    logger,
		Metrics:   metrics,
		Threshold: threshold,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the overrun scan.
func (j *OverrunScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil {
		return errors.New("overrun scan: handler not configured")
	}
	var payload OverrunScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Threshold <= 0 {
		payload.Threshold = j.Threshold
	}
	if payload.Concurrency <= 0 {
		payload.Concurrency = defaultScanConcurrency
	}

	tracker := j.Metrics.Track(TaskReportOverrunScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Float64("threshold", payload.Threshold))
	logger.Info("starting overrun scan")
	start := time.Now()

	scanned, alerts, errs := j.scan(ctx, payload)

	for _, alert := range alerts {
		logger.Warn("profit buffer breached",
			slog.Int64("project_id", alert.ProjectID),
			slog.Int64("boq_id", alert.BOQID),
			slog.Int64("item_id", alert.MasterItemID),
			slog.Float64("planned_profit", alert.PlannedProfit),
			slog.Float64("profit_consumed", alert.ProfitConsumed),
			slog.Float64("ratio", alert.Ratio),
		)
	}
	if len(alerts) > 0 {
		if err := j.Alerts.InsertAll(ctx, alerts); err != nil {
			errs = append(errs, fmt.Errorf("insert alerts: %w", err))
		} else {
			for _, alert := range alerts {
				j.Metrics.AddOverrunAlerts(alert.ProjectID, alert.BOQID, 1)
			}
		}
	}

	logger.Info("completed overrun scan",
		slog.Int("boqs", scanned),
		slog.Int("alerts", len(alerts)),
		slog.Int("failures", len(errs)),
		slog.Duration("duration", time.Since(start)),
	)
	if len(errs) > 0 {
		resultErr = fmt.Errorf("overrun scan: %d of %d boqs failed: %w", len(errs), scanned, errors.Join(errs...))
		return resultErr
	}
	return nil
}

// scan computes reports with bounded concurrency. A failing BOQ is recorded
// and the sweep continues; each report computation is itself sequential.
func (j *OverrunScanJob) scan(ctx context.Context, payload OverrunScanPayload) (int, []OverrunAlert, []error) {
	boqs, err := j.BOQs.ListActive(ctx)
	if err != nil {
		return 0, nil, []error{fmt.Errorf("list active boqs: %w", err)}
	}

	var (
		mu     sync.Mutex
		alerts []OverrunAlert
		errs   []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(payload.Concurrency)
	for _, header := range boqs {
		header := header
		g.Go(func() error {
			report, err := j.Reports.BuildBOQReport(gctx, header.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("boq %d: %w", header.ID, err))
				return nil
			}
			alerts = append(alerts, j.collectAlerts(report, payload.Threshold)...)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(alerts, func(i, k int) bool {
		if alerts[i].BOQID != alerts[k].BOQID {
			return alerts[i].BOQID < alerts[k].BOQID
		}
		return alerts[i].MasterItemID < alerts[k].MasterItemID
	})
	return len(boqs), alerts, errs
}

func (j *OverrunScanJob) collectAlerts(report reconcile.Report, threshold float64) []OverrunAlert {
	now := j.now()
	var alerts []OverrunAlert
	for _, item := range report.Items {
		plannedProfit := item.Planned.Profit
		if plannedProfit <= 0 {
			continue
		}
		ratio := item.ConsumptionFlow.ProfitConsumed / plannedProfit
		if ratio <= threshold {
			continue
		}
		alerts = append(alerts, OverrunAlert{
			ProjectID:      report.ProjectID,
			BOQID:          report.BOQID,
			MasterItemID:   item.MasterItemID,
			ItemName:       item.Name,
			PlannedProfit:  plannedProfit,
			ProfitConsumed: item.ConsumptionFlow.ProfitConsumed,
			Ratio:          ratio,
			DetectedAt:     now,
		})
	}
	return alerts
}

func (j *OverrunScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *OverrunScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// AlertRepository persists overrun alerts in Postgres.
type AlertRepository struct {
	pool *pgxpool.Pool
}

func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

// InsertAll records the scan's alerts in one transaction.
func (r *AlertRepository) InsertAll(ctx context.Context, alerts []OverrunAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, alert := range alerts {
			if _, err := tx.Exec(ctx,
				`INSERT INTO overrun_alerts
				   (project_id, boq_id, master_item_id, item_name, planned_profit, profit_consumed, ratio, detected_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				alert.ProjectID, alert.BOQID, alert.MasterItemID, alert.ItemName,
				alert.PlannedProfit, alert.ProfitConsumed, alert.Ratio, alert.DetectedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("jobs: insert overrun alerts: %w", err)
	}
	return nil
}
