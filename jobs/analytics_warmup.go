package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rightupnext/billing/internal/invoices"
	jobmetrics "github.com/rightupnext/billing/internal/jobs"
)

// TenantSource lists tenants with a live subscription.
type TenantSource interface {
	ActiveTenants(ctx context.Context) ([]string, error)
}

// AnalyticsSource computes (and caches) invoice analytics.
type AnalyticsSource interface {
	Analytics(ctx context.Context, tenantDB string, filter invoices.AnalyticsFilter) (invoices.Analytics, error)
}

// AnalyticsWarmupJob fills the analytics cache of the current month for active tenants.
type AnalyticsWarmupJob struct {
	Tenants   TenantSource
	Analytics AnalyticsSource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	timeout   time.Duration
}

// NewAnalyticsWarmupJob wires the warmup handler.
func NewAnalyticsWarmupJob(tenants TenantSource, analytics AnalyticsSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *AnalyticsWarmupJob {
	return &AnalyticsWarmupJob{
		Tenants:   tenants,
		Analytics: analytics,
		Logger:    logger,
		Metrics:   metrics,
		timeout:   20 * time.Second,
	}
}

// Handle processes TaskAnalyticsWarmup tasks. A failing tenant does not stop the others; the
// run fails when any tenant failed so asynq retries it.
func (j *AnalyticsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	var payload AnalyticsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskAnalyticsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskAnalyticsWarmup)
	tenants := payload.Tenants
	if len(tenants) == 0 {
		if j.Tenants == nil {
			resultErr = errors.New("analytics warmup: tenant source not configured")
			return resultErr
		}
		var err error
		tenants, err = j.Tenants.ActiveTenants(ctx)
		if err != nil {
			resultErr = err
			logger.Error("load active tenants", slog.Any("error", err))
			return resultErr
		}
	}

	start := time.Now()
	warmed := 0
	var failures []error
	for _, tenantDB := range tenants {
		if err := j.warm(ctx, tenantDB); err != nil {
			logger.Error("warm tenant", slog.String("tenant", tenantDB), slog.Any("error", err))
			failures = append(failures, fmt.Errorf("%s: %w", tenantDB, err))
			continue
		}
		warmed++
	}
	logger.Info("completed analytics warmup", slog.Int("tenants", warmed), slog.Duration("duration", time.Since(start)))
	resultErr = errors.Join(failures...)
	return resultErr
}

func (j *AnalyticsWarmupJob) warm(ctx context.Context, tenantDB string) error {
	tenantCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	_, err := j.Analytics.Analytics(tenantCtx, tenantDB, invoices.AnalyticsFilter{})
	return err
}

func (j *AnalyticsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
