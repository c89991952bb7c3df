package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/changerequest"
	"github.com/granite-erp/granite-erp/internal/projects"
	"github.com/granite-erp/granite-erp/internal/shared"
	"github.com/granite-erp/granite-erp/internal/tracking"
)

// BOQPort reads the planned side of the reconciliation.
type BOQPort interface {
	Get(ctx context.Context, id int64) (boq.BOQ, error)
	GetDetails(ctx context.Context, id int64) (boq.PlannedTree, error)
}

// ChangeRequestPort reads the approved scope changes.
type ChangeRequestPort interface {
	ListByBOQ(ctx context.Context, boqID int64, statuses []changerequest.Status) ([]changerequest.ChangeRequest, error)
}

// TrackingPort reads the actual side of the reconciliation.
type TrackingPort interface {
	LatestMaterialPurchases(ctx context.Context, boqID int64) ([]tracking.MaterialRecord, error)
	LabourTracking(ctx context.Context, boqID int64) ([]tracking.LabourRecord, error)
}

// ProjectPort reads project headers.
type ProjectPort interface {
	Get(ctx context.Context, id int64) (projects.Project, error)
}

// ReportMetrics observes report generation outcomes.
type ReportMetrics interface {
	ObserveReport(kind string, err error, elapsed time.Duration)
}

// Service assembles reconciliation reports. The computation is
// all-or-nothing: any failure while reading inputs or computing yields an
// error and no partial report.
type Service struct {
	boqs     BOQPort
	crs      ChangeRequestPort
	tracking TrackingPort
	projects ProjectPort
	metrics  ReportMetrics
	log      *slog.Logger
}

func NewService(boqs BOQPort, crs ChangeRequestPort, tracking TrackingPort, projects ProjectPort, metrics ReportMetrics, log *slog.Logger) *Service {
	return &Service{boqs: boqs, crs: crs, tracking: tracking, projects: projects, metrics: metrics, log: log}
}

// BuildBOQReport computes the full planned-vs-actual report for one BOQ.
func (s *Service) BuildBOQReport(ctx context.Context, boqID int64) (Report, error) {
	start := time.Now()
	report, err := s.buildBOQReport(ctx, boqID)
	if s.metrics != nil {
		s.metrics.ObserveReport("boq_reconciliation", err, time.Since(start))
	}
	if err != nil {
		return Report{}, err
	}
	return report, nil
}

func (s *Service) buildBOQReport(ctx context.Context, boqID int64) (_ Report, err error) {
	header, err := s.boqs.Get(ctx, boqID)
	if err != nil {
		if errors.Is(err, boq.ErrNotFound) {
			return Report{}, fmt.Errorf("reconcile: boq %d: %w", boqID, shared.ErrNotFound)
		}
		return Report{}, fmt.Errorf("reconcile: load boq %d: %w", boqID, err)
	}
	tree, err := s.boqs.GetDetails(ctx, boqID)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: load boq %d details: %w", boqID, err)
	}
	crs, err := s.crs.ListByBOQ(ctx, boqID, changerequest.PurchaseStatuses)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: load change requests: %w", err)
	}
	materials, err := s.tracking.LatestMaterialPurchases(ctx, boqID)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: load material tracking: %w", err)
	}
	labour, err := s.tracking.LabourTracking(ctx, boqID)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: load labour tracking: %w", err)
	}

	project, err := s.projects.Get(ctx, header.ProjectID)
	if err != nil && !errors.Is(err, projects.ErrNotFound) {
		return Report{}, fmt.Errorf("reconcile: load project %d: %w", header.ProjectID, err)
	}

	// The planned trees are operator-entered JSON; a malformed tree must
	// fail the whole report, not crash the process or emit partial rows.
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("report computation panicked",
				slog.Int64("boq_id", boqID),
				slog.Any("panic", r))
			err = fmt.Errorf("%w: %v", ErrComputation, r)
		}
	}()

	merged := MergeChangeRequests(tree, crs)
	items := BuildReport(merged, materials, labour)
	return Report{
		ProjectID:   header.ProjectID,
		ProjectName: project.Name,
		BOQID:       header.ID,
		BOQName:     header.Name,
		Items:       items,
		Summary:     BuildSummary(items, merged),
	}, nil
}
