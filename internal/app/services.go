package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rightupnext/billing/internal/catalog"
	"github.com/rightupnext/billing/internal/customers"
	"github.com/rightupnext/billing/internal/inventory"
	"github.com/rightupnext/billing/internal/invoices"
	"github.com/rightupnext/billing/internal/observability"
	"github.com/rightupnext/billing/internal/platform/cache"
	"github.com/rightupnext/billing/internal/platform/db"
	"github.com/rightupnext/billing/internal/tenant"
)

// Services holds the long lived dependencies shared by the server and the worker.
type Services struct {
	Master   *pgxpool.Pool
	Registry *tenant.Registry
	Redis    *redis.Client
	Metrics  *observability.Metrics

	Tenants       *tenant.Repository
	Subscriptions *tenant.Subscriptions
	Gate          *tenant.SubscriptionGate
	Provisioner   *tenant.Provisioner

	Inventory *inventory.Service
	Catalog   *catalog.Service
	Customers *customers.Service
	Invoices  *invoices.Service
}

// TenantOpener opens pools for tenant databases on the tenant server.
func TenantOpener(cfg *Config) tenant.Opener {
	return func(ctx context.Context, dbName string) (*pgxpool.Pool, error) {
		return db.Open(ctx, cfg.TenantPGDSN, db.Options{
			Database:        dbName,
			MaxConns:        cfg.TenantPoolMaxConns,
			MaxConnIdleTime: cfg.TenantPoolIdleTTL,
		})
	}
}

// PaymentVerifier checks renewal payments against the gateway signing secret. It is nil when no
// secret is configured.
func PaymentVerifier(cfg *Config) tenant.PaymentVerifier {
	if v := tenant.NewSignatureVerifier(cfg.PaymentSigningSecret); v != nil {
		return v
	}
	return nil
}

// Bootstrap connects the master database and Redis, applies the master schema and builds every
// service. Close releases what it opened.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	master, err := db.Open(ctx, cfg.MasterPGDSN, db.Options{})
	if err != nil {
		return nil, fmt.Errorf("connect master database: %w", err)
	}
	if err := tenant.ApplyMasterSchema(ctx, master); err != nil {
		master.Close()
		return nil, err
	}

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		// Analytics runs uncached and provisioning fails until Redis answers.
		logger.Warn("redis unavailable", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()
	registry := tenant.NewRegistry(TenantOpener(cfg), tenant.RegistryConfig{
		IdleTTL:  cfg.TenantPoolIdleTTL,
		MaxPools: cfg.TenantPoolMax,
	}, logger)
	metrics.Registerer().MustRegister(registry.Collector())

	tenants := tenant.NewRepository(master)
	subscriptions := tenant.NewSubscriptions(tenants, logger)
	provisioner := tenant.NewProvisioner(tenants, tenant.RegistrySchemaApplier(registry), redislock.New(redisClient), cfg.TrialPeriod, logger)

	catalogRepo := catalog.NewRepository(registry)
	jsonCache := cache.NewJSONCache(redisClient, "billing", cfg.AnalyticsCacheTTL).WithLogger(logger)

	return &Services{
		Master:        master,
		Registry:      registry,
		Redis:         redisClient,
		Metrics:       metrics,
		Tenants:       tenants,
		Subscriptions: subscriptions,
		Gate:          tenant.NewSubscriptionGate(tenants, logger),
		Provisioner:   provisioner,
		Inventory:     inventory.NewService(inventory.NewRepository(registry), logger),
		Catalog:       catalog.NewService(catalogRepo, logger),
		Customers:     customers.NewService(customers.NewRepository(registry)),
		Invoices: invoices.NewService(
			invoices.NewRepository(registry),
			catalogRepo,
			jsonCache,
			metrics,
			invoices.Config{Policies: cfg.TotalsPolicies},
			logger,
		),
	}, nil
}

// Close shuts tenant pools, Redis and the master pool.
func (s *Services) Close(logger *slog.Logger) {
	s.Registry.Close()
	if err := s.Redis.Close(); err != nil && logger != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
	s.Master.Close()
}
