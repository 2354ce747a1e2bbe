package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rightupnext/billing/internal/platform/db"
	"github.com/rightupnext/billing/internal/shared"
)

// Repository persists tenants and subscriptions in the master database.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txStore struct {
	tx pgx.Tx
}

// WithTx executes fn inside a master database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

const selectSubscription = `SELECT id, db_name, account, amount, subscription_start, subscription_end
FROM subscriptions WHERE db_name = $1 ORDER BY id DESC LIMIT 1`

// LatestSubscription returns the newest subscription row of dbName.
func (r *Repository) LatestSubscription(ctx context.Context, dbName string) (Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx, selectSubscription, dbName), dbName)
}

func (t *txStore) LatestSubscriptionForUpdate(ctx context.Context, dbName string) (Subscription, error) {
	return scanSubscription(t.tx.QueryRow(ctx, selectSubscription+" FOR UPDATE", dbName), dbName)
}

func scanSubscription(row pgx.Row, dbName string) (Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.DBName, &sub.Account, &sub.Amount, &sub.Start, &sub.End)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, shared.NotFoundf("subscription for %s", dbName)
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("tenant: scan subscription: %w", err)
	}
	return sub, nil
}

// Account loads the tenant row of dbName.
func (r *Repository) Account(ctx context.Context, dbName string) (Account, error) {
	var (
		acc     Account
		devices []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT id, name, email, db_name, status, device_ids, device_limit, created_at
FROM tenants WHERE db_name = $1`, dbName).Scan(
		&acc.ID, &acc.Name, &acc.Email, &acc.DBName, &acc.Status, &devices, &acc.DeviceLimit, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NotFoundf("tenant %s", dbName)
	}
	if err != nil {
		return Account{}, fmt.Errorf("tenant: load account: %w", err)
	}
	acc.DeviceIDs = parseDeviceIDs(devices)
	return acc, nil
}

// parseDeviceIDs accepts a JSON array or a single JSON string.
func parseDeviceIDs(raw []byte) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err == nil {
		return ids
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return []string{}
}

// SubscriptionsEndingBetween lists the latest subscription of every tenant whose end falls in [from, to].
func (r *Repository) SubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]Subscription, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, db_name, account, amount, subscription_start, subscription_end FROM (
    SELECT DISTINCT ON (db_name) id, db_name, account, amount, subscription_start, subscription_end
    FROM subscriptions ORDER BY db_name, id DESC
) latest WHERE subscription_end BETWEEN $1 AND $2 ORDER BY subscription_end`, from, to)
	if err != nil {
		return nil, fmt.Errorf("tenant: list subscriptions: %w", err)
	}
	subs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Subscription, error) {
		var sub Subscription
		err := row.Scan(&sub.ID, &sub.DBName, &sub.Account, &sub.Amount, &sub.Start, &sub.End)
		return sub, err
	})
	if err != nil {
		return nil, fmt.Errorf("tenant: scan subscriptions: %w", err)
	}
	return subs, nil
}

// ActiveTenants lists tenants whose latest subscription ends after now.
func (r *Repository) ActiveTenants(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT db_name FROM (
    SELECT DISTINCT ON (db_name) db_name, subscription_end
    FROM subscriptions ORDER BY db_name, id DESC
) latest WHERE subscription_end > $1 ORDER BY db_name`, now)
	if err != nil {
		return nil, fmt.Errorf("tenant: list active tenants: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("tenant: scan active tenants: %w", err)
	}
	return names, nil
}

func (t *txStore) SaveSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	if sub.ID == 0 {
		err := t.tx.QueryRow(ctx, `INSERT INTO subscriptions (db_name, account, amount, subscription_start, subscription_end)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, sub.DBName, sub.Account, sub.Amount, sub.Start, sub.End).Scan(&sub.ID)
		if err != nil {
			return Subscription{}, fmt.Errorf("tenant: insert subscription: %w", err)
		}
		return sub, nil
	}
	_, err := t.tx.Exec(ctx, `UPDATE subscriptions
SET account = $2, amount = $3, subscription_start = $4, subscription_end = $5, updated_at = now()
WHERE id = $1`, sub.ID, sub.Account, sub.Amount, sub.Start, sub.End)
	if err != nil {
		return Subscription{}, fmt.Errorf("tenant: update subscription: %w", err)
	}
	return sub, nil
}

func (t *txStore) UpdateDevices(ctx context.Context, dbName, status string, limit int, deviceIDs []string) error {
	payload, err := json.Marshal(deviceIDs)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE tenants SET status = $2, device_limit = $3, device_ids = $4, updated_at = now()
WHERE db_name = $1`, dbName, status, limit, payload)
	if err != nil {
		return fmt.Errorf("tenant: update devices: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("tenant %s", dbName)
	}
	return nil
}

func (t *txStore) CreateAccount(ctx context.Context, acc Account) (Account, error) {
	payload, err := json.Marshal(acc.DeviceIDs)
	if err != nil {
		return Account{}, err
	}
	err = t.tx.QueryRow(ctx, `INSERT INTO tenants (name, email, db_name, status, device_ids, device_limit)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		acc.Name, acc.Email, acc.DBName, acc.Status, payload, acc.DeviceLimit).Scan(&acc.ID, &acc.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Account{}, fmt.Errorf("tenant %s or email %s already registered: %w", acc.DBName, acc.Email, shared.ErrDuplicate)
	}
	if err != nil {
		return Account{}, fmt.Errorf("tenant: insert account: %w", err)
	}
	return acc, nil
}

// DatabaseExists reports whether the tenant database is present on the server.
func (r *Repository) DatabaseExists(ctx context.Context, dbName string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, dbName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("tenant: check database: %w", err)
	}
	return exists, nil
}

// CreateDatabase issues CREATE DATABASE for dbName. It cannot run inside a transaction.
func (r *Repository) CreateDatabase(ctx context.Context, dbName string) error {
	if !ValidDBName(dbName) {
		return shared.Validationf("invalid tenant database name %q", dbName)
	}
	if _, err := r.pool.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		return fmt.Errorf("tenant: create database %s: %w", dbName, err)
	}
	return nil
}
