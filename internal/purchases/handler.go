package purchases

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/granite-erp/granite-erp/internal/platform/httpx"
	"github.com/granite-erp/granite-erp/internal/shared"
)

// Handler serves the purchase comparison endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the purchase comparison route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/projects/{projectID}/purchase-comparison", h.handleComparison)
}

func (h *Handler) handleComparison(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid project id")
		return
	}

	report, err := h.service.BuildComparison(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.NotFound(w, err.Error())
			return
		}
		h.logger.Error("purchase comparison failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
