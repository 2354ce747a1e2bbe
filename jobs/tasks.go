package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance carries housekeeping tasks at a lower weight.
	QueueMaintenance = "maintenance"

	// TaskSubscriptionExpiryScan warns about subscriptions that are about to end.
	TaskSubscriptionExpiryScan = "subscriptions:expiry_scan"
	// TaskAnalyticsWarmup precomputes the invoice analytics of active tenants.
	TaskAnalyticsWarmup = "invoices:analytics_warmup"
	// TaskPoolSweep closes idle tenant connection pools.
	TaskPoolSweep = "tenants:pool_sweep"
)

// ExpiryScanPayload configures an expiry scan. A zero Within uses the job default.
type ExpiryScanPayload struct {
	Within time.Duration `json:"within"`
}

// AnalyticsWarmupPayload selects the tenants to warm; empty means every tenant with a live subscription.
type AnalyticsWarmupPayload struct {
	Tenants []string `json:"tenants,omitempty"`
}

// NewExpiryScanTask constructs a subscription expiry scan task.
func NewExpiryScanTask(within time.Duration) (*asynq.Task, error) {
	return newTask(TaskSubscriptionExpiryScan, ExpiryScanPayload{Within: within})
}

// NewAnalyticsWarmupTask constructs an analytics warmup task.
func NewAnalyticsWarmupTask(tenants ...string) (*asynq.Task, error) {
	return newTask(TaskAnalyticsWarmup, AnalyticsWarmupPayload{Tenants: tenants})
}

// NewPoolSweepTask constructs an idle pool sweep task.
func NewPoolSweepTask() *asynq.Task {
	return asynq.NewTask(TaskPoolSweep, nil, asynq.Queue(QueueMaintenance))
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault)), nil
}
