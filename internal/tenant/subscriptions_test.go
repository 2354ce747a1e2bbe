package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rightupnext/billing/internal/shared"
)

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func seededStore() *memoryStore {
	store := newMemoryStore()
	store.accounts["rightupnext_live"] = Account{DBName: "rightupnext_live", Status: StatusActive, DeviceIDs: []string{"live_start01"}, DeviceLimit: 2}
	store.accounts["rightupnext_old"] = Account{DBName: "rightupnext_old", Status: StatusActive}
	store.subs = []Subscription{
		{ID: 1, DBName: "rightupnext_live", Account: AccountTrial, Start: fixedNow.AddDate(0, -2, 0), End: fixedNow.AddDate(0, -1, 0)},
		{ID: 2, DBName: "rightupnext_old", Account: AccountStarter, Start: fixedNow.AddDate(-1, 0, 0), End: fixedNow.Add(-time.Minute)},
		{ID: 3, DBName: "rightupnext_live", Account: AccountStarter, Start: fixedNow.AddDate(0, -1, 0), End: fixedNow.AddDate(0, 0, 3)},
	}
	store.nextID = 3
	return store
}

func newGate(store Store) *SubscriptionGate {
	gate := NewSubscriptionGate(store, nil)
	gate.now = func() time.Time { return fixedNow }
	return gate
}

func TestGateUsesLatestSubscription(t *testing.T) {
	gate := newGate(seededStore())
	ctx := context.Background()

	sub, err := gate.Check(ctx, "rightupnext_live")
	require.NoError(t, err)
	require.Equal(t, int64(3), sub.ID)

	_, err = gate.Check(ctx, "rightupnext_old")
	require.ErrorIs(t, err, shared.ErrSubscriptionExpired)
	require.Contains(t, err.Error(), "starter")

	_, err = gate.Check(ctx, "rightupnext_nobody")
	require.ErrorIs(t, err, shared.ErrNoSubscription)
}

func TestGateMiddleware(t *testing.T) {
	gate := newGate(seededStore())
	r := chi.NewRouter()
	r.Route("/t/{tenant}", func(r chi.Router) {
		r.Use(gate.Middleware)
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := shared.TenantFromContext(r.Context())
			require.True(t, ok)
			_, _ = w.Write([]byte(tenant.DBName + ":" + tenant.Account))
		})
	})

	cases := map[string]int{
		"/t/rightupnext_live/ping":   http.StatusOK,
		"/t/rightupnext_old/ping":    http.StatusForbidden,
		"/t/rightupnext_nobody/ping": http.StatusForbidden,
		"/t/postgres/ping":           http.StatusBadRequest,
	}
	for path, want := range cases {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, rr.Code, path)
		if want == http.StatusOK {
			require.Equal(t, "rightupnext_live:starter", rr.Body.String())
		}
	}
}

func newSubscriptions(store Store) *Subscriptions {
	svc := NewSubscriptions(store, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestRenewExtendsRunningSubscription(t *testing.T) {
	store := seededStore()
	svc := newSubscriptions(store)

	renewal, err := svc.Renew(context.Background(), "rightupnext_live", decimal.NewFromInt(32000))
	require.NoError(t, err)
	require.Equal(t, AccountPro, renewal.Account)
	require.Equal(t, fixedNow.AddDate(0, 0, 3), renewal.Start)
	require.Equal(t, fixedNow.AddDate(0, 0, 3).AddDate(2, 0, 0), renewal.End)
	require.Equal(t, []string{"live_start01", "live_start02", "live_start03", "live_start04", "live_start05"}, renewal.DeviceIDs)

	sub, err := store.LatestSubscription(context.Background(), "rightupnext_live")
	require.NoError(t, err)
	require.Equal(t, int64(3), sub.ID)
	require.Equal(t, renewal.End, sub.End)
	require.Equal(t, 5, store.accounts["rightupnext_live"].DeviceLimit)
}

func TestRenewExpiredStartsNow(t *testing.T) {
	store := seededStore()
	svc := newSubscriptions(store)

	renewal, err := svc.Renew(context.Background(), "rightupnext_old", decimal.NewFromInt(18000))
	require.NoError(t, err)
	require.Equal(t, fixedNow, renewal.Start)
	require.Equal(t, fixedNow.AddDate(1, 0, 0), renewal.End)

	_, err = newGate(store).Check(context.Background(), "rightupnext_old")
	require.NoError(t, err)
}

func TestRenewRejectsUnknownAmount(t *testing.T) {
	store := seededStore()
	_, err := newSubscriptions(store).Renew(context.Background(), "rightupnext_live", decimal.NewFromInt(500))
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Equal(t, AccountStarter, store.subs[2].Account)
}

func TestStatusAndDevices(t *testing.T) {
	svc := newSubscriptions(seededStore())
	ctx := context.Background()

	status, err := svc.Status(ctx, "rightupnext_live")
	require.NoError(t, err)
	require.False(t, status.Expired)
	require.Equal(t, Remaining{Days: 3}, status.Remaining)
	require.Equal(t, 2, status.DeviceLimit)

	status, err = svc.Status(ctx, "rightupnext_old")
	require.NoError(t, err)
	require.True(t, status.Expired)
	require.Equal(t, 1, status.DeviceLimit)
	require.Equal(t, []string{}, status.DeviceIDs)

	_, err = svc.Status(ctx, "rightupnext_nobody")
	require.ErrorIs(t, err, shared.ErrNotFound)

	ok, err := svc.DeviceAllowed(ctx, "rightupnext_live", "live_start01")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = svc.DeviceAllowed(ctx, "rightupnext_live", "live_start09")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEndingWithinAndActive(t *testing.T) {
	svc := newSubscriptions(seededStore())
	ctx := context.Background()

	ending, err := svc.EndingWithin(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, ending, 1)
	require.Equal(t, "rightupnext_live", ending[0].DBName)

	active, err := svc.ActiveTenants(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"rightupnext_live"}, active)
}

func TestHandlerStatusAndRenew(t *testing.T) {
	store := seededStore()
	verifier := NewSignatureVerifier("gateway-secret")
	h := NewHandler(nil, newSubscriptions(store), nil, verifier)
	r := chi.NewRouter()
	h.MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/subscriptions/rightupnext_old/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	require.Equal(t, true, status["expired"])

	renew := func(amount int, orderID, paymentID, signature string) *httptest.ResponseRecorder {
		body := fmt.Sprintf(`{"amount": %d, "order_id": %q, "payment_id": %q, "signature": %q}`, amount, orderID, paymentID, signature)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/subscriptions/rightupnext_old/renew", strings.NewReader(body)))
		return rr
	}

	rr = renew(18000, "order_1", "pay_123", verifier.Sign("order_1", "pay_999"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "payment verification failed")
	rr = renew(18000, "order_1", "pay_123", "not-hex")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = renew(18000, "order_1", "pay_123", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	sub, err := store.LatestSubscription(context.Background(), "rightupnext_old")
	require.NoError(t, err)
	require.True(t, sub.End.Before(fixedNow))

	rr = renew(18000, "order_1", "pay_123", verifier.Sign("order_1", "pay_123"))
	require.Equal(t, http.StatusOK, rr.Code)
	sub, err = store.LatestSubscription(context.Background(), "rightupnext_old")
	require.NoError(t, err)
	require.Equal(t, AccountStarter, sub.Account)
	require.True(t, sub.End.After(fixedNow))

	rr = renew(1, "order_2", "pay_124", verifier.Sign("order_2", "pay_124"))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/subscriptions/rightupnext_old/devices/old_start01", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"allowed": true}`, rr.Body.String())
}

func TestRenewIsNotRoutedWithoutVerifier(t *testing.T) {
	require.Nil(t, NewSignatureVerifier(""))
	h := NewHandler(nil, newSubscriptions(seededStore()), nil, nil)
	r := chi.NewRouter()
	h.MountRoutes(r)

	rr := httptest.NewRecorder()
	body := strings.NewReader(`{"amount": 18000, "order_id": "o", "payment_id": "p", "signature": "00"}`)
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/subscriptions/rightupnext_old/renew", body))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
