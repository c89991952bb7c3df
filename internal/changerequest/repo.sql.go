package changerequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for change requests.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, number, boq_id, project_id, item_id, item_name, justification, status, materials_data, created_at`

// ListByBOQ returns change requests for one BOQ, optionally filtered by status.
func (r *Repository) ListByBOQ(ctx context.Context, boqID int64, statuses []Status) ([]ChangeRequest, error) {
	query := `SELECT ` + selectColumns + ` FROM change_requests WHERE boq_id=$1`
	args := []any{boqID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, statusStrings(statuses))
	}
	query += ` ORDER BY id`
	return r.list(ctx, query, args...)
}

// ListByProject returns change requests across all BOQs of a project.
func (r *Repository) ListByProject(ctx context.Context, projectID int64, statuses []Status) ([]ChangeRequest, error) {
	query := `SELECT ` + selectColumns + ` FROM change_requests WHERE project_id=$1`
	args := []any{projectID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, statusStrings(statuses))
	}
	query += ` ORDER BY id`
	return r.list(ctx, query, args...)
}

// Get returns one change request by id.
func (r *Repository) Get(ctx context.Context, id int64) (ChangeRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM change_requests WHERE id=$1`, id)
	cr, err := scanChangeRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChangeRequest{}, ErrNotFound
		}
		return ChangeRequest{}, fmt.Errorf("changerequest: get %d: %w", id, err)
	}
	return cr, nil
}

// Create inserts a change request with its materials payload.
func (r *Repository) Create(ctx context.Context, cr ChangeRequest) (int64, error) {
	materials, err := json.Marshal(cr.Materials)
	if err != nil {
		return 0, fmt.Errorf("changerequest: encode materials: %w", err)
	}
	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO change_requests (number, boq_id, project_id, item_id, item_name, justification, status, materials_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		cr.Number, cr.BOQID, cr.ProjectID, cr.ItemID, cr.ItemName, cr.Justification, cr.Status, materials,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateNumber
		}
		return 0, fmt.Errorf("changerequest: create: %w", err)
	}
	return id, nil
}

// isUniqueViolation reports whether err is a Postgres 23505, possibly
// wrapped by the driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CountByBOQ returns the number of change requests for pagination.
func (r *Repository) CountByBOQ(ctx context.Context, boqID int64, statuses []Status) (int, error) {
	query := `SELECT COUNT(*) FROM change_requests WHERE boq_id=$1`
	args := []any{boqID}
	if len(statuses) > 0 {
		query += ` AND status = ANY($2)`
		args = append(args, statusStrings(statuses))
	}
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("changerequest: count: %w", err)
	}
	return total, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]ChangeRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("changerequest: list: %w", err)
	}
	defer rows.Close()
	var out []ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChangeRequest(row rowScanner) (ChangeRequest, error) {
	var cr ChangeRequest
	var materials []byte
	if err := row.Scan(&cr.ID, &cr.Number, &cr.BOQID, &cr.ProjectID, &cr.ItemID, &cr.ItemName, &cr.Justification, &cr.Status, &materials, &cr.CreatedAt); err != nil {
		return ChangeRequest{}, err
	}
	if len(materials) > 0 {
		// Materials payloads are user-entered legacy data; a corrupt row
		// yields an empty list instead of failing the whole fetch.
		_ = json.Unmarshal(materials, &cr.Materials)
	}
	return cr, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
