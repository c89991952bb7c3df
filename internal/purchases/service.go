package purchases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/changerequest"
	"github.com/granite-erp/granite-erp/internal/projects"
	"github.com/granite-erp/granite-erp/internal/reconcile"
	"github.com/granite-erp/granite-erp/internal/shared"
)

// comparisonStatuses are the CR lifecycles the comparison reads. Rejected
// change requests never reach procurement and are excluded.
var comparisonStatuses = []changerequest.Status{
	changerequest.StatusPending,
	changerequest.StatusApproved,
	changerequest.StatusCompleted,
}

// ProjectPort reads project headers.
type ProjectPort interface {
	Get(ctx context.Context, id int64) (projects.Project, error)
}

// BOQPort reads a project's BOQs and their planned trees.
type BOQPort interface {
	ListByProject(ctx context.Context, projectID int64) ([]boq.BOQ, error)
	GetDetails(ctx context.Context, id int64) (boq.PlannedTree, error)
}

// ChangeRequestPort reads a project's change requests.
type ChangeRequestPort interface {
	ListByProject(ctx context.Context, projectID int64, statuses []changerequest.Status) ([]changerequest.ChangeRequest, error)
}

// VATPort reads the project VAT override.
type VATPort interface {
	ProjectVATPercent(ctx context.Context, projectID int64) (*float64, error)
}

// POChildPort reads vendor-split purchase orders.
type POChildPort interface {
	ListByChangeRequests(ctx context.Context, crIDs []int64) ([]POChild, error)
}

// Metrics observes report generation outcomes.
type Metrics interface {
	ObserveReport(kind string, err error, elapsed time.Duration)
}

// Service assembles project-level purchase comparison reports.
type Service struct {
	projects   ProjectPort
	boqs       BOQPort
	crs        ChangeRequestPort
	vat        VATPort
	poChildren POChildPort
	defaultVAT float64
	metrics    Metrics
	log        *slog.Logger
}

func NewService(projects ProjectPort, boqs BOQPort, crs ChangeRequestPort, vat VATPort, poChildren POChildPort, defaultVAT float64, metrics Metrics, log *slog.Logger) *Service {
	return &Service{projects: projects, boqs: boqs, crs: crs, vat: vat, poChildren: poChildren, defaultVAT: defaultVAT, metrics: metrics, log: log}
}

// BuildComparison reconciles every planned material of the project's BOQs
// against the change-request purchases raised for them.
func (s *Service) BuildComparison(ctx context.Context, projectID int64) (ComparisonReport, error) {
	start := time.Now()
	report, err := s.buildComparison(ctx, projectID)
	if s.metrics != nil {
		s.metrics.ObserveReport("purchase_comparison", err, time.Since(start))
	}
	return report, err
}

func (s *Service) buildComparison(ctx context.Context, projectID int64) (ComparisonReport, error) {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, projects.ErrNotFound) {
			return ComparisonReport{}, fmt.Errorf("purchases: project %d: %w", projectID, shared.ErrNotFound)
		}
		return ComparisonReport{}, fmt.Errorf("purchases: load project %d: %w", projectID, err)
	}

	vatPercent := s.defaultVAT
	if override, err := s.vat.ProjectVATPercent(ctx, projectID); err != nil {
		return ComparisonReport{}, err
	} else if override != nil {
		vatPercent = *override
	}

	boqs, err := s.boqs.ListByProject(ctx, projectID)
	if err != nil {
		return ComparisonReport{}, fmt.Errorf("purchases: list boqs: %w", err)
	}
	crs, err := s.crs.ListByProject(ctx, projectID, comparisonStatuses)
	if err != nil {
		return ComparisonReport{}, fmt.Errorf("purchases: list change requests: %w", err)
	}

	crIDs := make([]int64, 0, len(crs))
	for _, cr := range crs {
		crIDs = append(crIDs, cr.ID)
	}
	children, err := s.poChildren.ListByChangeRequests(ctx, crIDs)
	if err != nil {
		return ComparisonReport{}, err
	}
	childrenByCR := make(map[int64][]POChild)
	for _, child := range children {
		childrenByCR[child.ChangeRequestID] = append(childrenByCR[child.ChangeRequestID], child)
	}
	crsByBOQ := make(map[int64][]changerequest.ChangeRequest)
	for _, cr := range crs {
		crsByBOQ[cr.BOQID] = append(crsByBOQ[cr.BOQID], cr)
	}

	report := ComparisonReport{
		ProjectID:         project.ID,
		ProjectName:       project.Name,
		DefaultVATPercent: vatPercent,
	}
	for _, header := range boqs {
		tree, err := s.boqs.GetDetails(ctx, header.ID)
		if err != nil {
			return ComparisonReport{}, fmt.Errorf("purchases: load boq %d details: %w", header.ID, err)
		}
		comparison := buildBOQComparison(header, tree, crsByBOQ[header.ID], childrenByCR, vatPercent)
		report.BOQs = append(report.BOQs, comparison)
		for _, row := range comparison.Rows {
			report.Summary.PlannedTotal += row.PlannedTotal
			report.Summary.PurchasedNet += row.Purchased.NetTotal
			report.Summary.VATAmount += row.Purchased.VATAmount
			report.Summary.PurchasedGross += row.Purchased.GrossTotal
			report.Summary.PendingNetTotal += row.PendingNetTotal
		}
	}
	report.Summary.PlannedTotal = round2(report.Summary.PlannedTotal)
	report.Summary.PurchasedNet = round2(report.Summary.PurchasedNet)
	report.Summary.VATAmount = round2(report.Summary.VATAmount)
	report.Summary.PurchasedGross = round2(report.Summary.PurchasedGross)
	report.Summary.PendingNetTotal = round2(report.Summary.PendingNetTotal)
	report.Summary.Balance = round2(report.Summary.PlannedTotal - report.Summary.PurchasedGross)
	return report, nil
}

// buildBOQComparison flattens one BOQ's planned materials into rows and
// allocates every CR purchase to its planned row, or to a new unplanned
// row when nothing planned matches. Rows are keyed by master material id
// first, normalized name second; the first registration wins.
func buildBOQComparison(header boq.BOQ, tree boq.PlannedTree, crs []changerequest.ChangeRequest, childrenByCR map[int64][]POChild, vatPercent float64) BOQComparison {
	comparison := BOQComparison{BOQID: header.ID, BOQName: header.Name}
	index := make(map[string]int)

	register := func(rowIdx int, id *int64, name string) {
		if id != nil {
			key := fmt.Sprintf("id:%d", *id)
			if _, ok := index[key]; !ok {
				index[key] = rowIdx
			}
		}
		if n := reconcile.NormalizeName(name); n != "" {
			key := "name:" + n
			if _, ok := index[key]; !ok {
				index[key] = rowIdx
			}
		}
	}
	lookup := func(id *int64, name string) (int, bool) {
		if id != nil {
			if idx, ok := index[fmt.Sprintf("id:%d", *id)]; ok {
				return idx, true
			}
		}
		if n := reconcile.NormalizeName(name); n != "" {
			if idx, ok := index["name:"+n]; ok {
				return idx, true
			}
		}
		return 0, false
	}

	for _, item := range tree.Items {
		for _, sub := range item.SubItems {
			for _, m := range sub.Materials {
				if idx, ok := lookup(m.MasterMaterialID, m.Name); ok {
					// The same material planned in several sub-items is one
					// procurement line; quantities accumulate.
					row := &comparison.Rows[idx]
					row.PlannedQuantity += m.Quantity
					row.PlannedTotal += materialTotal(m)
					continue
				}
				comparison.Rows = append(comparison.Rows, ComparisonRow{
					MasterMaterialID: m.MasterMaterialID,
					MaterialName:     m.Name,
					Unit:             m.Unit,
					PlannedQuantity:  m.Quantity,
					PlannedTotal:     materialTotal(m),
					Status:           StatusNotPurchased,
				})
				register(len(comparison.Rows)-1, m.MasterMaterialID, m.Name)
			}
		}
	}

	for _, cr := range crs {
		children := childrenByCR[cr.ID]
		for _, m := range cr.Materials {
			idx, ok := lookup(m.MasterMaterialID, m.MaterialName)
			if !ok {
				comparison.Rows = append(comparison.Rows, ComparisonRow{
					MasterMaterialID: m.MasterMaterialID,
					MaterialName:     m.MaterialName,
					Unit:             m.Unit,
					Status:           StatusUnplanned,
				})
				idx = len(comparison.Rows) - 1
				register(idx, m.MasterMaterialID, m.MaterialName)
			}
			allocatePurchase(&comparison.Rows[idx], cr, m, children, vatPercent)
		}
	}

	for i := range comparison.Rows {
		finishRow(&comparison.Rows[i])
	}
	return comparison
}

// allocatePurchase adds one CR material's purchase to a row. Vendor-split PO
// children, when present, replace the CR material's own figures; each split
// may carry its own VAT override.
func allocatePurchase(row *ComparisonRow, cr changerequest.ChangeRequest, m changerequest.MaterialData, children []POChild, vatPercent float64) {
	row.ChangeRequestIDs = append(row.ChangeRequestIDs, cr.ID)

	splits := matchingChildren(children, m)
	var qty, net float64
	if len(splits) > 0 {
		for _, child := range splits {
			qty += child.Quantity
			net += child.Total()
		}
	} else {
		qty = m.Quantity
		net = m.Total()
	}

	if cr.Status == changerequest.StatusPending {
		row.PendingNetTotal += net
		return
	}

	var vat float64
	if len(splits) > 0 {
		for _, child := range splits {
			pct := vatPercent
			if child.VATPercent != nil {
				pct = *child.VATPercent
			}
			childNet := child.Total()
			childVAT := childNet * pct / 100
			vat += childVAT
			row.Vendors = append(row.Vendors, VendorSplit{
				VendorName: child.VendorName,
				Quantity:   child.Quantity,
				NetTotal:   round2(childNet),
				VATPercent: pct,
				GrossTotal: round2(childNet + childVAT),
			})
		}
	} else {
		vat = net * vatPercent / 100
	}

	row.Purchased.Quantity += qty
	row.Purchased.NetTotal += net
	row.Purchased.VATAmount += vat
	row.Purchased.GrossTotal += net + vat
}

func matchingChildren(children []POChild, m changerequest.MaterialData) []POChild {
	name := reconcile.NormalizeName(m.MaterialName)
	var out []POChild
	for _, child := range children {
		if reconcile.NormalizeName(child.MaterialName) == name {
			out = append(out, child)
		}
	}
	return out
}

func finishRow(row *ComparisonRow) {
	row.PlannedQuantity = round2(row.PlannedQuantity)
	row.PlannedTotal = round2(row.PlannedTotal)
	row.Purchased.Quantity = round2(row.Purchased.Quantity)
	row.Purchased.NetTotal = round2(row.Purchased.NetTotal)
	row.Purchased.VATAmount = round2(row.Purchased.VATAmount)
	row.Purchased.GrossTotal = round2(row.Purchased.GrossTotal)
	row.PendingNetTotal = round2(row.PendingNetTotal)
	row.Balance = round2(row.PlannedTotal - row.Purchased.GrossTotal)

	if row.Status == StatusUnplanned {
		return
	}
	switch {
	case row.Purchased.NetTotal > 0:
		row.Status = StatusPurchased
	case row.PendingNetTotal > 0:
		row.Status = StatusPendingApproval
	default:
		row.Status = StatusNotPurchased
	}
}

func materialTotal(m boq.Material) float64 {
	if m.TotalPrice > 0 {
		return m.TotalPrice
	}
	return m.Quantity * m.UnitPrice
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
