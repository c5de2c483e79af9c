package invoices

import (
	"context"
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

// ReportInvalidator drops cached analytics after invoice mutations.
type ReportInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Handler exposes the invoices JSON API.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validate    *validator.Validate
	invalidator ReportInvalidator
}

// NewHandler constructs a Handler. invalidator may be nil.
func NewHandler(logger *slog.Logger, service *Service, invalidator ReportInvalidator) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		validate:    validator.New(),
		invalidator: invalidator,
	}
}

// invalidateReports is best-effort; stale analytics expire via TTL
// anyway.
func (h *Handler) invalidateReports(ctx context.Context) {
	if h.invalidator == nil {
		return
	}
	if err := h.invalidator.Invalidate(ctx); err != nil {
		h.logger.Warn("invalidate analytics cache", slog.Any("error", err))
	}
}

// MountRoutes attaches invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Post("/{id}/send", h.send)
	r.Post("/{id}/void", h.void)
	r.Post("/{id}/payments", h.recordPayment)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, clients.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Invalid Status", err.Error())
	case errors.Is(err, ErrNoLines),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, billing.ErrNegativeQuantity),
		errors.Is(err, billing.ErrNegativeRate),
		errors.Is(err, billing.ErrNegativeDiscount),
		errors.Is(err, billing.ErrNegativeTaxRate),
		errors.Is(err, billing.ErrNegativeAmountPaid),
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

	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	inv, err := h.service.Create(r.Context(), ownerID, req)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	h.invalidateReports(r.Context())
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	req := ListInvoicesRequest{OwnerID: ownerID, Limit: 50}
	if v := r.URL.Query().Get("client_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.ClientID = &id
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := Status(v)
		req.Status = &status
	}
	if v := r.URL.Query().Get("overdue"); v == "true" {
		overdue := true
		req.Overdue = &overdue
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			req.Limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			req.Offset = parsed
		}
	}

	list, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices": list,
		"total":    total,
		"limit":    req.Limit,
		"offset":   req.Offset,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}

	var req UpdateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	inv, err := h.service.Update(r.Context(), ownerID, id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidateReports(r.Context())
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Send(r.Context(), ownerID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidateReports(r.Context())
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Void(r.Context(), ownerID, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidateReports(r.Context())
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	ownerID, id, ok := h.params(w, r)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	result, err := h.service.RecordPayment(r.Context(), ownerID, id, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.invalidateReports(r.Context())
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be numeric")
		return 0, 0, false
	}
	return ownerID, id, true
}
