package tracking

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed access to tracking rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LatestMaterialPurchases returns one row per (item, material, name)
// combination, keeping only the newest record, which is the current state of
// that material's procurement.
func (r *Repository) LatestMaterialPurchases(ctx context.Context, boqID int64) ([]MaterialRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (master_item_id, COALESCE(master_material_id, 0), lower(trim(material_name)))
			id, boq_id, master_item_id, master_material_id, material_name, purchase_history
		FROM material_purchase_tracking
		WHERE boq_id = $1
		ORDER BY master_item_id, COALESCE(master_material_id, 0), lower(trim(material_name)), id DESC`, boqID)
	if err != nil {
		return nil, fmt.Errorf("tracking: latest material purchases %d: %w", boqID, err)
	}
	defer rows.Close()
	var out []MaterialRecord
	for rows.Next() {
		var rec MaterialRecord
		var history []byte
		if err := rows.Scan(&rec.ID, &rec.BOQID, &rec.MasterItemID, &rec.MasterMaterialID, &rec.MaterialName, &history); err != nil {
			return nil, err
		}
		rec.PurchaseHistory = json.RawMessage(history)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LabourTracking returns all labour rows recorded against a BOQ.
func (r *Repository) LabourTracking(ctx context.Context, boqID int64) ([]LabourRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, boq_id, master_item_id, master_labour_id, role, labour_history
		FROM labour_tracking
		WHERE boq_id = $1
		ORDER BY id`, boqID)
	if err != nil {
		return nil, fmt.Errorf("tracking: labour tracking %d: %w", boqID, err)
	}
	defer rows.Close()
	var out []LabourRecord
	for rows.Next() {
		var rec LabourRecord
		var history []byte
		if err := rows.Scan(&rec.ID, &rec.BOQID, &rec.MasterItemID, &rec.MasterLabourID, &rec.Role, &history); err != nil {
			return nil, err
		}
		if len(history) > 0 {
			// Labour history predates schema validation; a corrupt row
			// degrades to an empty history rather than failing the report.
			_ = json.Unmarshal(history, &rec.History)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
