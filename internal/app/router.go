package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rightupnext/billing/internal/catalog"
	"github.com/rightupnext/billing/internal/customers"
	"github.com/rightupnext/billing/internal/inventory"
	"github.com/rightupnext/billing/internal/invoices"
	"github.com/rightupnext/billing/internal/observability"
	"github.com/rightupnext/billing/internal/platform/httpx"
	"github.com/rightupnext/billing/internal/tenant"
	"github.com/rightupnext/billing/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	Gate             *tenant.SubscriptionGate
	TenantHandler    *tenant.Handler
	InventoryHandler *inventory.Handler
	CatalogHandler   *catalog.Handler
	CustomerHandler  *customers.Handler
	InvoiceHandler   *invoices.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router. Tenant-scoped routes live under /t/{tenant} behind the
// subscription gate.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.URL.Path)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.TenantHandler != nil {
		params.TenantHandler.MountRoutes(r)
	}

	r.Route("/t/{"+tenant.URLParam+"}", func(r chi.Router) {
		if params.Gate != nil {
			r.Use(params.Gate.Middleware)
		}
		if params.InventoryHandler != nil {
			params.InventoryHandler.MountRoutes(r)
		}
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.CustomerHandler != nil {
			params.CustomerHandler.MountRoutes(r)
		}
		if params.InvoiceHandler != nil {
			params.InvoiceHandler.MountRoutes(r)
		}
	})

	return r
}
