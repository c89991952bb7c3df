package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/granite-erp/granite-erp/internal/boq"
	jobmetrics "github.com/granite-erp/granite-erp/internal/jobs"
	"github.com/granite-erp/granite-erp/internal/reconcile"
)

type memLister struct{ boqs []boq.BOQ }

func (m memLister) ListActive(_ context.Context) ([]boq.BOQ, error) {
	return m.boqs, nil
}

type memBuilder struct {
	reports map[int64]reconcile.Report
	errs    map[int64]error
}

func (m memBuilder) BuildBOQReport(_ context.Context, boqID int64) (reconcile.Report, error) {
	if err, ok := m.errs[boqID]; ok {
		return reconcile.Report{}, err
	}
	return m.reports[boqID], nil
}

type memAlerts struct {
	mu     sync.Mutex
	alerts []OverrunAlert
	err    error
}

func (m *memAlerts) InsertAll(_ context.Context, alerts []OverrunAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, alerts...)
	return nil
}

func reportWithConsumption(boqID, itemID int64, plannedProfit, consumed float64) reconcile.Report {
	return reconcile.Report{
		ProjectID: 10,
		BOQID:     boqID,
		Items: []reconcile.ItemReport{{
			MasterItemID:    itemID,
			Name:            "Substructure",
			Planned:         reconcile.CostBreakdown{Profit: plannedProfit},
			ConsumptionFlow: reconcile.ConsumptionFlow{ExtraCosts: consumed, ProfitConsumed: consumed},
		}},
	}
}

func newScanJob(lister ActiveBOQLister, builder ReportBuilder, store AlertStore) *OverrunScanJob {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewOverrunScanJob(lister, builder, store, logger, metrics, 0.8)
	job.clock = func() time.Time { return time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC) }
	return job
}

func scanTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewOverrunScanTask(OverrunScanPayload{})
	require.NoError(t, err)
	return task
}

func TestOverrunScanRecordsAlertsAboveThreshold(t *testing.T) {
	builder := memBuilder{reports: map[int64]reconcile.Report{
		1: reportWithConsumption(1, 7, 150, 130), // ratio 0.87
		2: reportWithConsumption(2, 8, 150, 80),  // ratio 0.53
	}}
	store := &memAlerts{}
	job := newScanJob(memLister{boqs: []boq.BOQ{{ID: 1, ProjectID: 10}, {ID: 2, ProjectID: 10}}}, builder, store)

	require.NoError(t, job.Handle(context.Background(), scanTask(t)))

	require.Len(t, store.alerts, 1)
	alert := store.alerts[0]
	require.Equal(t, int64(1), alert.BOQID)
	require.Equal(t, int64(7), alert.MasterItemID)
	require.Equal(t, 150.0, alert.PlannedProfit)
	require.Equal(t, 130.0, alert.ProfitConsumed)
	require.InDelta(t, 130.0/150.0, alert.Ratio, 1e-9)
	require.Equal(t, job.clock(), alert.DetectedAt)
}

func TestOverrunScanPayloadThresholdOverride(t *testing.T) {
	builder := memBuilder{reports: map[int64]reconcile.Report{
		1: reportWithConsumption(1, 7, 150, 80), // ratio 0.53
	}}
	store := &memAlerts{}
	job := newScanJob(memLister{boqs: []boq.BOQ{{ID: 1, ProjectID: 10}}}, builder, store)

	task, err := NewOverrunScanTask(OverrunScanPayload{Threshold: 0.5})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, store.alerts, 1)
}

func TestOverrunScanSkipsItemsWithoutPlannedProfit(t *testing.T) {
	builder := memBuilder{reports: map[int64]reconcile.Report{
		1: reportWithConsumption(1, 7, 0, 500),
	}}
	store := &memAlerts{}
	job := newScanJob(memLister{boqs: []boq.BOQ{{ID: 1, ProjectID: 10}}}, builder, store)

	require.NoError(t, job.Handle(context.Background(), scanTask(t)))
	require.Empty(t, store.alerts)
}

func TestOverrunScanContinuesPastFailingBOQ(t *testing.T) {
	builder := memBuilder{
		reports: map[int64]reconcile.Report{
			2: reportWithConsumption(2, 8, 150, 140),
		},
		errs: map[int64]error{1: errors.New("boom")},
	}
	store := &memAlerts{}
	job := newScanJob(memLister{boqs: []boq.BOQ{{ID: 1, ProjectID: 10}, {ID: 2, ProjectID: 10}}}, builder, store)

	err := job.Handle(context.Background(), scanTask(t))
	require.Error(t, err, "a failed BOQ still fails the run for retry")
	require.Len(t, store.alerts, 1, "the healthy BOQ is still scanned")
	require.Equal(t, int64(2), store.alerts[0].BOQID)
}

func TestOverrunScanMalformedPayloadSkipsRetry(t *testing.T) {
	store := &memAlerts{}
	job := newScanJob(memLister{}, memBuilder{}, store)

	err := job.Handle(context.Background(), asynq.NewTask(TaskReportOverrunScan, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
