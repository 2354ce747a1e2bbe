package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bsm/redislock"

	"github.com/rightupnext/billing/internal/shared"
)

// DefaultTrialPeriod is the free window granted on registration.
const DefaultTrialPeriod = 72 * time.Hour

// ProvisionStore is the part of the master repository used while provisioning.
type ProvisionStore interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	DatabaseExists(ctx context.Context, dbName string) (bool, error)
	CreateDatabase(ctx context.Context, dbName string) error
}

// SchemaApplier creates the tenant tables in dbName.
type SchemaApplier func(ctx context.Context, dbName string) error

// RegistrySchemaApplier applies the tenant schema through the registry's pool.
func RegistrySchemaApplier(reg *Registry) SchemaApplier {
	return func(ctx context.Context, dbName string) error {
		pool, release, err := reg.Pool(ctx, dbName)
		if err != nil {
			return err
		}
		defer release()
		return ApplyTenantSchema(ctx, pool)
	}
}

// ProvisionInput registers a new business.
type ProvisionInput struct {
	Name  string
	Email string
}

// Provisioner creates tenant databases and their trial subscription.
type Provisioner struct {
	store  ProvisionStore
	schema SchemaApplier
	locker *redislock.Client
	trial  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewProvisioner constructs Provisioner.
func NewProvisioner(store ProvisionStore, schema SchemaApplier, locker *redislock.Client, trial time.Duration, logger *slog.Logger) *Provisioner {
	if trial <= 0 {
		trial = DefaultTrialPeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{store: store, schema: schema, locker: locker, trial: trial, logger: logger, now: time.Now}
}

// Provision creates the database for in.Name, applies the schema and registers the tenant with
// a trial subscription. Re-running after a partial failure reuses the existing database.
func (p *Provisioner) Provision(ctx context.Context, in ProvisionInput) (Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" {
		return Account{}, shared.Validationf("business name and email required")
	}
	dbName := DBNameFor(in.Name)
	if !ValidDBName(dbName) {
		return Account{}, shared.Validationf("business name %q does not produce a valid database name", in.Name)
	}

	lock, err := p.locker.Obtain(ctx, shared.ProvisionLockKey(dbName), 2*time.Minute, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return Account{}, fmt.Errorf("provisioning of %s already in progress: %w", dbName, shared.ErrDuplicate)
	}
	if err != nil {
		return Account{}, fmt.Errorf("tenant: obtain provision lock: %w", err)
	}
	defer func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}()

	exists, err := p.store.DatabaseExists(ctx, dbName)
	if err != nil {
		return Account{}, err
	}
	if !exists {
		if err := p.store.CreateDatabase(ctx, dbName); err != nil {
			return Account{}, err
		}
	}
	if err := p.schema(ctx, dbName); err != nil {
		return Account{}, err
	}

	now := p.now()
	var account Account
	err = p.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		account, err = tx.CreateAccount(ctx, Account{
			Name:        in.Name,
			Email:       in.Email,
			DBName:      dbName,
			Status:      StatusTrial,
			DeviceIDs:   DeviceIDs(dbName, 1),
			DeviceLimit: 1,
		})
		if err != nil {
			return err
		}
		_, err = tx.SaveSubscription(ctx, Subscription{
			DBName:  dbName,
			Account: AccountTrial,
			Start:   now,
			End:     now.Add(p.trial),
		})
		return err
	})
	if err != nil {
		return Account{}, err
	}
	p.logger.Info("tenant provisioned", slog.String("tenant", dbName), slog.Bool("database_reused", exists))
	return account, nil
}
