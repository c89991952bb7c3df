package reconcile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	NewHandler(testLogger(), svc).MountRoutes(r)
	return r
}

func TestHandlerReport(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/boqs/1/reconciliation", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, int64(1), report.BOQID)
	require.Equal(t, "Villa Project", report.ProjectName)
	require.Len(t, report.Items, 2)
}

func TestHandlerReportNotFound(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/boqs/42/reconciliation", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerReportBadID(t *testing.T) {
	svc, _ := newTestService(nil, nil, nil)
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/boqs/not-a-number/reconciliation", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
