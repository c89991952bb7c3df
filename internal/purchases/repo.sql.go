package purchases

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VATRepository reads VAT configuration overrides.
type VATRepository struct {
	pool *pgxpool.Pool
}

func NewVATRepository(pool *pgxpool.Pool) *VATRepository {
	return &VATRepository{pool: pool}
}

// ProjectVATPercent returns the project's VAT override, nil when the project
// uses the system default.
func (r *VATRepository) ProjectVATPercent(ctx context.Context, projectID int64) (*float64, error) {
	var percent float64
	err := r.pool.QueryRow(ctx,
		`SELECT vat_percent FROM vat_settings WHERE project_id = $1`,
		projectID,
	).Scan(&percent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("purchases: query vat settings: %w", err)
	}
	return &percent, nil
}

// POChildRepository reads vendor-split purchase orders.
type POChildRepository struct {
	pool *pgxpool.Pool
}

func NewPOChildRepository(pool *pgxpool.Pool) *POChildRepository {
	return &POChildRepository{pool: pool}
}

// ListByChangeRequests returns every PO child of the given change requests.
func (r *POChildRepository) ListByChangeRequests(ctx context.Context, crIDs []int64) ([]POChild, error) {
	if len(crIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, change_request_id, material_name, vendor_name,
		        COALESCE(quantity, 0), COALESCE(unit_price, 0), COALESCE(total_price, 0),
		        vat_percent
		 FROM po_children
		 WHERE change_request_id = ANY($1)
		 ORDER BY change_request_id, id`,
		crIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("purchases: query po children: %w", err)
	}
	defer rows.Close()

	var children []POChild
	for rows.Next() {
		var child POChild
		if err := rows.Scan(&child.ID, &child.ChangeRequestID, &child.MaterialName, &child.VendorName,
			&child.Quantity, &child.UnitPrice, &child.TotalPrice, &child.VATPercent); err != nil {
			return nil, fmt.Errorf("purchases: scan po child: %w", err)
		}
		children = append(children, child)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchases: iterate po children: %w", err)
	}
	return children, nil
}
