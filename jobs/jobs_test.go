package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rightupnext/billing/internal/invoices"
	jobmetrics "github.com/rightupnext/billing/internal/jobs"
	"github.com/rightupnext/billing/internal/tenant"
)

type expiring struct {
	subs   []tenant.Subscription
	within time.Duration
}

func (e *expiring) EndingWithin(ctx context.Context, d time.Duration) ([]tenant.Subscription, error) {
	e.within = d
	return e.subs, nil
}

type tenantList []string

func (l tenantList) ActiveTenants(ctx context.Context) ([]string, error) { return l, nil }

type analyticsCalls struct {
	seen []string
	fail map[string]error
}

func (a *analyticsCalls) Analytics(ctx context.Context, tenantDB string, filter invoices.AnalyticsFilter) (invoices.Analytics, error) {
	a.seen = append(a.seen, tenantDB)
	return invoices.Analytics{}, a.fail[tenantDB]
}

type fakeSweeper struct{ closed, open int }

func (s fakeSweeper) Sweep() int { return s.closed }
func (s fakeSweeper) Len() int   { return s.open }

func TestExpiryScanUsesPayloadWindow(t *testing.T) {
	src := &expiring{subs: []tenant.Subscription{
		{DBName: "rightupnext_kovai", Account: "starter", End: time.Now().Add(30 * time.Hour)},
	}}
	job := NewExpiryScanJob(src, 72*time.Hour, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewExpiryScanTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, src.within)

	task, err = NewExpiryScanTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, src.within)
}

func TestAnalyticsWarmupContinuesPastFailures(t *testing.T) {
	calls := &analyticsCalls{fail: map[string]error{"rightupnext_b": errors.New("pool closed")}}
	job := NewAnalyticsWarmupJob(tenantList{"rightupnext_a", "rightupnext_b", "rightupnext_c"}, calls, nil,
		jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewAnalyticsWarmupTask()
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorContains(t, err, "rightupnext_b")
	require.Equal(t, []string{"rightupnext_a", "rightupnext_b", "rightupnext_c"}, calls.seen)

	calls.seen = nil
	task, err = NewAnalyticsWarmupTask("rightupnext_c")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"rightupnext_c"}, calls.seen)
}

func TestPoolSweepCountsClosedPools(t *testing.T) {
	registry := prometheus.NewRegistry()
	job := NewPoolSweepJob(fakeSweeper{closed: 3, open: 7}, nil, jobmetrics.NewMetrics(registry))
	require.NoError(t, job.Handle(context.Background(), NewPoolSweepTask()))

	count, err := testutil.GatherAndCount(registry, "billing_tenant_pools_swept_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNewWorkerRejectsIncompleteHandler(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Handlers:  []TaskHandler{{Type: TaskPoolSweep}},
	})
	require.ErrorContains(t, err, "incomplete handler")
}

func TestTaskTypes(t *testing.T) {
	task := NewPoolSweepTask()
	require.Equal(t, TaskPoolSweep, task.Type())

	warm, err := NewAnalyticsWarmupTask("rightupnext_acme")
	require.NoError(t, err)
	require.Equal(t, TaskAnalyticsWarmup, warm.Type())
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queues":[]}`, rr.Body.String())
}
