package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/singleflight"

	"github.com/granite-erp/granite-erp/internal/platform/httpx"
	"github.com/granite-erp/granite-erp/internal/shared"
)

// Handler serves reconciliation reports over HTTP. Concurrent requests for
// the same BOQ are collapsed into a single computation.
type Handler struct {
	logger  *slog.Logger
	service *Service
	group   singleflight.Group
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the reconciliation endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/boqs/{boqID}/reconciliation", h.handleReport)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	boqID, err := strconv.ParseInt(chi.URLParam(r, "boqID"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid BOQ id")
		return
	}

	key := fmt.Sprintf("boq:%d", boqID)
	result, err, _ := h.group.Do(key, func() (any, error) {
		return h.service.BuildBOQReport(r.Context(), boqID)
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result.(Report))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrComputation):
		h.logger.Error("report computation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Unprocessable(w, "report could not be computed from the stored data")
	default:
		h.logger.Error("reconciliation handler failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Internal(w)
	}
}
