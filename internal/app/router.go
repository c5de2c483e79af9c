package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/facturo/facturo/internal/analytics"
	"github.com/facturo/facturo/internal/clients"
	"github.com/facturo/facturo/internal/delivery"
	"github.com/facturo/facturo/internal/invoices"
	"github.com/facturo/facturo/internal/recurring"
	"github.com/facturo/facturo/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	ClientsHandler   *clients.Handler
	InvoicesHandler  *invoices.Handler
	RecurringHandler *recurring.Handler
	DeliveryHandler  *delivery.Handler
	AnalyticsHandler *analytics.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Facturo defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.ClientsHandler != nil {
		r.Route("/clients", func(r chi.Router) {
			params.ClientsHandler.MountRoutes(r)
		})
	}
	if params.InvoicesHandler != nil {
		r.Route("/invoices", func(r chi.Router) {
			params.InvoicesHandler.MountRoutes(r)
		})
	}
	if params.RecurringHandler != nil {
		r.Route("/recurring", func(r chi.Router) {
			params.RecurringHandler.MountRoutes(r)
		})
	}
	if params.DeliveryHandler != nil {
		r.Route("/deliveries", func(r chi.Router) {
			params.DeliveryHandler.MountRoutes(r)
		})
	}
	if params.AnalyticsHandler != nil {
		r.Route("/analytics", func(r chi.Router) {
			params.AnalyticsHandler.MountRoutes(r)
		})
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
