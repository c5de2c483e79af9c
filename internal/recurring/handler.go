package recurring

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/facturo/facturo/internal/billing"
	"github.com/facturo/facturo/internal/clients"
	"github.com/facturo/facturo/internal/platform/httpx"
)

// Handler exposes the recurring schedule JSON API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

// MountRoutes attaches schedule routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
	r.Get("/{id}/logs", h.logs)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, clients.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoTemplateLines),
		errors.Is(err, billing.ErrUnknownFrequency),
		errors.Is(err, billing.ErrNegativeQuantity),
		errors.Is(err, billing.ErrNegativeRate),
		errors.Is(err, billing.ErrNegativeDiscount),
		errors.Is(err, billing.ErrNegativeTaxRate),
		errors.Is(err, billing.ErrUnknownDiscountType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	var req CreateScheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sched, err := h.service.Create(r.Context(), ownerID, req)
	if err != nil {
		h.logger.Error("create schedule", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sched)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	sched, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.List(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("list schedules", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"schedules": list})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	sched, err := h.service.Update(r.Context(), ownerID, id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sched)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), ownerID, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	entries, err := h.service.Logs(r.Context(), ownerID, id, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "schedule id must be numeric")
		return 0, 0, false
	}
	return ownerID, id, true
}
