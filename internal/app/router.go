package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/isc-maritime/stockroom/internal/dashboard"
	"github.com/isc-maritime/stockroom/internal/export"
	"github.com/isc-maritime/stockroom/internal/inventory"
	"github.com/isc-maritime/stockroom/internal/livesync"
	"github.com/isc-maritime/stockroom/internal/observability"
	"github.com/isc-maritime/stockroom/internal/procurement"
	"github.com/isc-maritime/stockroom/internal/suppliers"
	"github.com/isc-maritime/stockroom/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	InventoryHandler   *inventory.Handler
	ProcurementHandler *procurement.Handler
	SupplierHandler    *suppliers.Handler
	DashboardHandler   *dashboard.Handler
	ReportHandler      *export.Handler
	LiveHandler        *livesync.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with stockroom defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	mwConfig := MiddlewareConfig{Logger: params.Logger, Config: params.Config, Metrics: params.Metrics}
	for _, mw := range MiddlewareStack(mwConfig) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		if params.LiveHandler != nil {
			api.Route("/live", params.LiveHandler.MountRoutes)
		}
		api.Group(func(g chi.Router) {
			for _, mw := range RequestStack(mwConfig) {
				g.Use(mw)
			}
			if params.InventoryHandler != nil {
				g.Route("/inventory", params.InventoryHandler.MountRoutes)
			}
			if params.ProcurementHandler != nil {
				g.Route("/procurement", params.ProcurementHandler.MountRoutes)
			}
			if params.SupplierHandler != nil {
				g.Route("/suppliers", params.SupplierHandler.MountRoutes)
			}
			if params.DashboardHandler != nil {
				g.Route("/dashboard", params.DashboardHandler.MountRoutes)
			}
			if params.ReportHandler != nil {
				g.Route("/reports", params.ReportHandler.MountRoutes)
			}
		})
	})

	if params.JobHandler != nil {
		r.Group(func(g chi.Router) {
			for _, mw := range RequestStack(mwConfig) {
				g.Use(mw)
			}
			g.Route("/jobs", params.JobHandler.MountRoutes)
		})
	}

	return r
}
