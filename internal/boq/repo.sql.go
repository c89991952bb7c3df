package boq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed access to BOQ documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the BOQ header.
func (r *Repository) Get(ctx context.Context, id int64) (BOQ, error) {
	var b BOQ
	err := r.pool.QueryRow(ctx, `SELECT id, project_id, name, status FROM boqs WHERE id=$1`, id).
		Scan(&b.ID, &b.ProjectID, &b.Name, &b.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BOQ{}, ErrNotFound
		}
		return BOQ{}, fmt.Errorf("boq: get %d: %w", id, err)
	}
	return b, nil
}

// GetDetails returns the planned tree stored in the JSONB details column.
func (r *Repository) GetDetails(ctx context.Context, id int64) (PlannedTree, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT details FROM boqs WHERE id=$1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PlannedTree{}, ErrNotFound
		}
		return PlannedTree{}, fmt.Errorf("boq: get details %d: %w", id, err)
	}
	var tree PlannedTree
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tree); err != nil {
			return PlannedTree{}, fmt.Errorf("boq: decode details %d: %w", id, err)
		}
	}
	return tree, nil
}

// ListByProject returns BOQ headers belonging to a project.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]BOQ, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, project_id, name, status FROM boqs WHERE project_id=$1 ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("boq: list by project %d: %w", projectID, err)
	}
	defer rows.Close()
	var out []BOQ
	for rows.Next() {
		var b BOQ
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListActive returns BOQs whose project work is still running; the nightly
// overrun scan visits these.
func (r *Repository) ListActive(ctx context.Context) ([]BOQ, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, project_id, name, status FROM boqs WHERE status IN ('ACTIVE','IN_PROGRESS') ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("boq: list active: %w", err)
	}
	defer rows.Close()
	var out []BOQ
	for rows.Next() {
		var b BOQ
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.Name, &b.Status); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
