package tenant

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rightupnext/billing/internal/platform/httpx"
	"github.com/rightupnext/billing/internal/shared"
)

// URLParam is the chi route parameter carrying the tenant database name.
const URLParam = "tenant"

// Middleware resolves the tenant from the route, rejects it when the subscription is missing or
// expired, and stores it in the request context.
func (g *SubscriptionGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dbName := chi.URLParam(r, URLParam)
		if !ValidDBName(dbName) {
			httpx.RespondError(w, shared.Validationf("invalid tenant %q", dbName))
			return
		}
		sub, err := g.Check(r.Context(), dbName)
		if err != nil {
			if !shared.IsBusiness(err) {
				g.logger.Error("subscription check failed", slog.String("tenant", dbName), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		ctx := shared.ContextWithTenant(r.Context(), shared.Tenant{DBName: dbName, Account: sub.Account})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
