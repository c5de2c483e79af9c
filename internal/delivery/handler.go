package delivery

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/facturo/facturo/internal/platform/httpx"
)

// Handler exposes delivery history and on-demand PDF rendering.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches delivery routes, keyed by invoice id.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{invoiceID}", h.logs)
	r.Get("/{invoiceID}/pdf", h.pdf)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	ownerID, invoiceID, ok := h.params(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Logs(r.Context(), ownerID, invoiceID, 0)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	ownerID, invoiceID, ok := h.params(w, r)
	if !ok {
		return
	}
	pdf, filename, err := h.service.RenderPDF(r.Context(), ownerID, invoiceID)
	if err != nil {
		h.logger.Error("render invoice pdf",
			slog.Int64("invoice_id", invoiceID), slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(pdf)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	httpx.RespondError(w, err)
}

func (h *Handler) params(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be numeric")
		return 0, 0, false
	}
	return ownerID, id, true
}
