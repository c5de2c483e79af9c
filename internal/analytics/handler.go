package analytics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/facturo/facturo/internal/platform/httpx"
)

// Handler exposes the analytics JSON API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches analytics routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/aging", h.aging)
	r.Get("/dashboard", h.dashboard)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, to := window(r)
	out, err := h.service.Summary(r.Context(), ownerID, from, to)
	if err != nil {
		h.logger.Error("revenue summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Aging(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("aging report", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// dashboard fetches both reports concurrently.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	ownerID, err := httpx.OwnerID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, to := window(r)

	var out Dashboard
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		summary, err := h.service.Summary(ctx, ownerID, from, to)
		if err == nil {
			out.Summary = summary
		}
		return err
	})
	g.Go(func() error {
		aging, err := h.service.Aging(ctx, ownerID)
		if err == nil {
			out.Aging = aging
		}
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func window(r *http.Request) (time.Time, time.Time) {
	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			from = parsed
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			to = parsed
		}
	}
	return from, to
}
