package changerequest

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/granite-erp/granite-erp/internal/boq"
	"github.com/granite-erp/granite-erp/internal/platform/httpx"
)

// Handler wires the HTTP endpoints for change requests.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers change request routes under a BOQ.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/boqs/{boqID}/change-requests", h.handleList)
	r.Post("/boqs/{boqID}/change-requests", h.handleCreate)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	boqID, err := strconv.ParseInt(chi.URLParam(r, "boqID"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid BOQ id")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}

	crs, pagination, err := h.service.List(r.Context(), boqID, statuses, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := ListResponse{
		ChangeRequests: make([]ChangeRequestResponse, 0, len(crs)),
		Page:           pagination.Page,
		PerPage:        pagination.PerPage,
		Total:          pagination.Total,
		TotalPages:     pagination.TotalPages,
	}
	for _, cr := range crs {
		resp.ChangeRequests = append(resp.ChangeRequests, toResponse(cr))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	boqID, err := strconv.ParseInt(chi.URLParam(r, "boqID"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid BOQ id")
		return
	}
	var input CreateRequest
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.BadRequest(w, "malformed JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	cr, err := h.service.Create(r.Context(), boqID, input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(cr))
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, boq.ErrNotFound), errors.Is(err, ErrNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Conflict(w, err.Error())
	case errors.Is(err, ErrValidation):
		httpx.BadRequest(w, err.Error())
	default:
		h.logger.Error("change request handler failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Internal(w)
	}
}

func toResponse(cr ChangeRequest) ChangeRequestResponse {
	return ChangeRequestResponse{
		ID:            cr.ID,
		Number:        cr.Number,
		BOQID:         cr.BOQID,
		ProjectID:     cr.ProjectID,
		ItemID:        cr.ItemID,
		ItemName:      cr.ItemName,
		Justification: cr.Justification,
		Status:        cr.Status,
		Materials:     cr.Materials,
		CreatedAt:     cr.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func parseStatuses(raw string) ([]Status, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []Status
	for _, part := range strings.Split(raw, ",") {
		switch Status(strings.ToUpper(strings.TrimSpace(part))) {
		case StatusPending:
			out = append(out, StatusPending)
		case StatusApproved:
			out = append(out, StatusApproved)
		case StatusRejected:
			out = append(out, StatusRejected)
		case StatusCompleted:
			out = append(out, StatusCompleted)
		default:
			return nil, errors.New("unknown status filter: " + part)
		}
	}
	return out, nil
}
