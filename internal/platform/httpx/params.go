package httpx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rightupnext/billing/internal/shared"
)

// PathID parses a positive integer route parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Validationf("invalid %s %q", name, raw)
	}
	return id, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter. Missing or "undefined" yields zero time.
func QueryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" || raw == "undefined" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return time.Time{}, shared.Validationf("invalid %s %q, expected YYYY-MM-DD", name, raw)
	}
	return t, nil
}

// TenantDB returns the tenant database stored by the subscription gate.
func TenantDB(r *http.Request) (string, error) {
	t, ok := shared.TenantFromContext(r.Context())
	if !ok || t.DBName == "" {
		return "", shared.Validationf("tenant not resolved")
	}
	return t.DBName, nil
}
