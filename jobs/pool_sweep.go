package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/rightupnext/billing/internal/jobs"
)

// Sweeper closes idle tenant pools and reports how many it closed.
type Sweeper interface {
	Sweep() int
	Len() int
}

// PoolSweepJob runs the tenant registry idle sweep.
type PoolSweepJob struct {
	Registry Sweeper
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewPoolSweepJob wires the sweep handler.
func NewPoolSweepJob(registry Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *PoolSweepJob {
	return &PoolSweepJob{Registry: registry, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPoolSweep tasks.
func (j *PoolSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Registry == nil {
		return errors.New("pool sweep: handler not configured")
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskPoolSweep)
	closed := j.Registry.Sweep()
	metrics.AddSwept(closed)
	jobLogger(j.Logger, TaskPoolSweep).Info("swept tenant pools",
		slog.Int("closed", closed), slog.Int("open", j.Registry.Len()))
	return tracker.End(nil)
}
