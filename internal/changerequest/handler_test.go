package changerequest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/shared"
)

type memRepo struct {
	crs       []ChangeRequest
	createErr error
	nextID    int64
}

func (m *memRepo) ListByBOQ(_ context.Context, boqID int64, _ []Status) ([]ChangeRequest, error) {
	var out []ChangeRequest
	for _, cr := range m.crs {
		if cr.BOQID == boqID {
			out = append(out, cr)
		}
	}
	return out, nil
}

func (m *memRepo) CountByBOQ(_ context.Context, boqID int64, _ []Status) (int, error) {
	n := 0
	for _, cr := range m.crs {
		if cr.BOQID == boqID {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) Create(_ context.Context, cr ChangeRequest) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	m.nextID++
	cr.ID = m.nextID
	m.crs = append(m.crs, cr)
	return cr.ID, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (ChangeRequest, error) {
	for _, cr := range m.crs {
		if cr.ID == id {
			return cr, nil
		}
	}
	return ChangeRequest{}, ErrNotFound
}

type memBOQs struct {
	boqs map[int64]boq.BOQ
}

func (m *memBOQs) Get(_ context.Context, id int64) (boq.BOQ, error) {
	header, ok := m.boqs[id]
	if !ok {
		return boq.BOQ{}, boq.ErrNotFound
	}
	return header, nil
}

type memAudit struct {
	logs []shared.AuditLog
}

func (m *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func newTestRouter(repo *memRepo) (chi.Router, *memAudit) {
	audit := &memAudit{}
	boqs := &memBOQs{boqs: map[int64]boq.BOQ{7: {ID: 7, ProjectID: 10, Name: "Villa"}}}
	svc := NewService(repo, boqs, audit)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, svc).MountRoutes(r)
	return r, audit
}

const createBody = `{
	"number": "CR-001",
	"item_id": 1,
	"item_name": "Substructure",
	"justification": "extra cement",
	"materials_data": [{"material_name": "Cement", "unit": "bag", "quantity": 10, "unit_price": 8}]
}`

func TestHandleCreateSucceeds(t *testing.T) {
	router, audit := newTestRouter(&memRepo{})

	req := httptest.NewRequest(http.MethodPost, "/boqs/7/change-requests", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"number":"CR-001"`)
	require.Len(t, audit.logs, 1)
	require.Equal(t, "CR_CREATE", audit.logs[0].Action)
}

func TestHandleCreateDuplicateNumberConflicts(t *testing.T) {
	router, _ := newTestRouter(&memRepo{createErr: ErrDuplicateNumber})

	req := httptest.NewRequest(http.MethodPost, "/boqs/7/change-requests", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "duplicate")
}

func TestHandleCreateUnknownBOQ(t *testing.T) {
	router, _ := newTestRouter(&memRepo{})

	req := httptest.NewRequest(http.MethodPost, "/boqs/99/change-requests", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
