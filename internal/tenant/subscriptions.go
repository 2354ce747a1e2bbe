package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/shared"
)

// Store abstracts the master database.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	LatestSubscription(ctx context.Context, dbName string) (Subscription, error)
	Account(ctx context.Context, dbName string) (Account, error)
	SubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]Subscription, error)
	ActiveTenants(ctx context.Context, now time.Time) ([]string, error)
}

// TxStore exposes the transactional writes of the master database.
type TxStore interface {
	LatestSubscriptionForUpdate(ctx context.Context, dbName string) (Subscription, error)
	SaveSubscription(ctx context.Context, sub Subscription) (Subscription, error)
	UpdateDevices(ctx context.Context, dbName, status string, limit int, deviceIDs []string) error
	CreateAccount(ctx context.Context, account Account) (Account, error)
}

// SubscriptionGate rejects tenant requests without a live subscription.
type SubscriptionGate struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriptionGate constructs the gate.
func NewSubscriptionGate(store Store, logger *slog.Logger) *SubscriptionGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionGate{store: store, logger: logger, now: time.Now}
}

// Check returns the latest subscription of dbName, or ErrNoSubscription / ErrSubscriptionExpired.
func (g *SubscriptionGate) Check(ctx context.Context, dbName string) (Subscription, error) {
	sub, err := g.store.LatestSubscription(ctx, dbName)
	if errors.Is(err, shared.ErrNotFound) {
		return Subscription{}, fmt.Errorf("%w: no subscription found for %s, please register or contact support", shared.ErrNoSubscription, dbName)
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("tenant: load subscription: %w", err)
	}
	if sub.Expired(g.now()) {
		return sub, fmt.Errorf("%w: your %s subscription has expired, please renew to continue", shared.ErrSubscriptionExpired, sub.Account)
	}
	return sub, nil
}

// Subscriptions serves the subscription monitor, plan activation and device checks.
type Subscriptions struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriptions constructs the service.
func NewSubscriptions(store Store, logger *slog.Logger) *Subscriptions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriptions{store: store, logger: logger, now: time.Now}
}

// Status reports the current window, time left and devices of a tenant.
func (s *Subscriptions) Status(ctx context.Context, dbName string) (Status, error) {
	sub, err := s.store.LatestSubscription(ctx, dbName)
	if err != nil {
		return Status{}, err
	}
	account, err := s.store.Account(ctx, dbName)
	if err != nil {
		return Status{}, err
	}
	now := s.now()
	limit := account.DeviceLimit
	if limit <= 0 {
		limit = 1
	}
	devices := account.DeviceIDs
	if devices == nil {
		devices = []string{}
	}
	return Status{
		DBName:      dbName,
		Account:     sub.Account,
		Amount:      sub.Amount,
		Status:      account.Status,
		Expired:     sub.Expired(now),
		Start:       sub.Start,
		End:         sub.End,
		Remaining:   RemainingUntil(sub.End, now),
		DeviceLimit: limit,
		DeviceIDs:   devices,
	}, nil
}

// Renew activates the plan bought with amount. The new window starts at the current end when
// that is still ahead, and the device allowlist is regenerated for the plan.
func (s *Subscriptions) Renew(ctx context.Context, dbName string, amount decimal.Decimal) (Renewal, error) {
	plan, ok := PlanForAmount(amount)
	if !ok {
		return Renewal{}, shared.Validationf("invalid subscription amount %s", amount.String())
	}
	var out Renewal
	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		current, err := tx.LatestSubscriptionForUpdate(ctx, dbName)
		var existing *Subscription
		switch {
		case err == nil:
			existing = &current
		case errors.Is(err, shared.ErrNotFound):
			current = Subscription{DBName: dbName}
		default:
			return err
		}
		start, end := RenewalWindow(existing, plan, s.now())
		current.Account = plan.Account
		current.Amount = plan.Amount
		current.Start = start
		current.End = end
		if _, err := tx.SaveSubscription(ctx, current); err != nil {
			return err
		}
		devices := DeviceIDs(dbName, plan.Devices)
		if err := tx.UpdateDevices(ctx, dbName, StatusActive, plan.Devices, devices); err != nil {
			return err
		}
		out = Renewal{Account: plan.Account, Start: start, End: end, DeviceLimit: plan.Devices, DeviceIDs: devices}
		return nil
	})
	if err != nil {
		return Renewal{}, err
	}
	s.logger.Info("subscription renewed",
		slog.String("tenant", dbName),
		slog.String("account", out.Account),
		slog.Time("end", out.End))
	return out, nil
}

// DeviceAllowed reports whether deviceID is on the tenant's allowlist.
func (s *Subscriptions) DeviceAllowed(ctx context.Context, dbName, deviceID string) (bool, error) {
	account, err := s.store.Account(ctx, dbName)
	if err != nil {
		return false, err
	}
	return slices.Contains(account.DeviceIDs, deviceID), nil
}

// EndingWithin lists subscriptions whose window closes in the next d.
func (s *Subscriptions) EndingWithin(ctx context.Context, d time.Duration) ([]Subscription, error) {
	now := s.now()
	return s.store.SubscriptionsEndingBetween(ctx, now, now.Add(d))
}

// ActiveTenants lists databases whose latest subscription is still open.
func (s *Subscriptions) ActiveTenants(ctx context.Context) ([]string, error) {
	return s.store.ActiveTenants(ctx, s.now())
}
