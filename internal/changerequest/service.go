package changerequest

import (
	"context"
	"fmt"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	ListByBOQ(ctx context.Context, boqID int64, statuses []Status) ([]ChangeRequest, error)
	CountByBOQ(ctx context.Context, boqID int64, statuses []Status) (int, error)
	Create(ctx context.Context, cr ChangeRequest) (int64, error)
	Get(ctx context.Context, id int64) (ChangeRequest, error)
}

// BOQPort resolves the BOQ a change request belongs to.
type BOQPort interface {
	Get(ctx context.Context, id int64) (boq.BOQ, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service provides the thin change-request CRUD layer.
type Service struct {
	repo  RepositoryPort
	boqs  BOQPort
	audit AuditPort
}

// NewService constructs the service.
func NewService(repo RepositoryPort, boqs BOQPort, audit AuditPort) *Service {
	return &Service{repo: repo, boqs: boqs, audit: audit}
}

// List returns a page of change requests for one BOQ.
func (s *Service) List(ctx context.Context, boqID int64, statuses []Status, page, perPage int) ([]ChangeRequest, shared.Pagination, error) {
	if _, err := s.boqs.Get(ctx, boqID); err != nil {
		return nil, shared.Pagination{}, err
	}
	total, err := s.repo.CountByBOQ(ctx, boqID, statuses)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	crs, err := s.repo.ListByBOQ(ctx, boqID, statuses)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	start := p.Offset()
	if start > len(crs) {
		start = len(crs)
	}
	end := start + p.PerPage
	if end > len(crs) {
		end = len(crs)
	}
	return crs[start:end], p, nil
}

// Create validates and stores a new pending change request against a BOQ.
func (s *Service) Create(ctx context.Context, boqID int64, input CreateRequest) (ChangeRequest, error) {
	header, err := s.boqs.Get(ctx, boqID)
	if err != nil {
		return ChangeRequest{}, err
	}
	cr := ChangeRequest{
		Number:        input.Number,
		BOQID:         header.ID,
		ProjectID:     header.ProjectID,
		ItemID:        input.ItemID,
		ItemName:      input.ItemName,
		Justification: input.Justification,
		Status:        StatusPending,
	}
	for _, m := range input.Materials {
		md := MaterialData{
			MasterMaterialID: m.MasterMaterialID,
			MaterialName:     m.MaterialName,
			Unit:             m.Unit,
			Quantity:         m.Quantity,
			UnitPrice:        m.UnitPrice,
			TotalPrice:       m.TotalPrice,
		}
		if md.TotalPrice == 0 {
			md.TotalPrice = md.Quantity * md.UnitPrice
		}
		cr.Materials = append(cr.Materials, md)
	}
	id, err := s.repo.Create(ctx, cr)
	if err != nil {
		return ChangeRequest{}, err
	}
	cr.ID = id
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "CR_CREATE",
			Entity:   "change_request",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"number": cr.Number, "boq_id": boqID},
		})
	}
	return cr, nil
}
