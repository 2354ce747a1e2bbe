package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/rightupnext/billing/internal/jobs"
	"github.com/rightupnext/billing/internal/tenant"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ExpiringSource lists subscriptions ending inside a window.
type ExpiringSource interface {
	EndingWithin(ctx context.Context, d time.Duration) ([]tenant.Subscription, error)
}

// ExpiryScanJob logs a warning for every subscription that ends soon.
type ExpiryScanJob struct {
	Subscriptions ExpiringSource
	Within        time.Duration
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
	clock         func() time.Time
}

// NewExpiryScanJob wires the expiry scan handler. within is the default warning window.
func NewExpiryScanJob(subs ExpiringSource, within time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpiryScanJob {
	return &ExpiryScanJob{
		Subscriptions: subs,
		Within:        within,
		Logger:        logger,
		Metrics:       metrics,
		clock:         time.Now,
	}
}

// Handle processes TaskSubscriptionExpiryScan tasks.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Subscriptions == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	within := payload.Within
	if within <= 0 {
		within = j.Within
	}
	if within <= 0 {
		within = 72 * time.Hour
	}

	tracker := j.metrics().Track(TaskSubscriptionExpiryScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := jobLogger(j.Logger, TaskSubscriptionExpiryScan).With(slog.Duration("within", within))
	subs, err := j.Subscriptions.EndingWithin(ctx, within)
	if err != nil {
		resultErr = err
		logger.Error("load expiring subscriptions", slog.Any("error", err))
		return resultErr
	}
	now := j.clock()
	for _, sub := range subs {
		remaining := tenant.RemainingUntil(sub.End, now)
		logger.Warn("subscription ending soon",
			slog.String("tenant", sub.DBName),
			slog.String("account", sub.Account),
			slog.Time("end", sub.End),
			slog.Int64("days", remaining.Days),
			slog.Int64("hours", remaining.Hours))
	}
	j.metrics().SetExpiring(len(subs))
	logger.Info("completed expiry scan", slog.Int("expiring", len(subs)))
	return resultErr
}

func (j *ExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func jobLogger(logger *slog.Logger, job string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("job", job))
}
