package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// ErrRegistryClosed is returned by Pool after Close.
var ErrRegistryClosed = errors.New("tenant: registry closed")

// Opener opens (and verifies) a pool for one tenant database.
type Opener func(ctx context.Context, dbName string) (*pgxpool.Pool, error)

// RegistryConfig tunes pool retention.
type RegistryConfig struct {
	IdleTTL  time.Duration
	MaxPools int
}

type poolEntry struct {
	pool     *pgxpool.Pool
	lastUsed time.Time
	leases   int
	retired  bool
}

// Registry hands out one connection pool per tenant database. Pools are opened lazily,
// concurrent first requests for the same tenant share a single open, and pools that sit idle
// or fall off the LRU cap are retired. A retired pool is closed once its last lease is released.
type Registry struct {
	open   Opener
	cfg    RegistryConfig
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	pools  map[string]*poolEntry
	closed bool
	group  singleflight.Group
}

// NewRegistry constructs a Registry.
func NewRegistry(open Opener, cfg RegistryConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		open:   open,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		pools:  make(map[string]*poolEntry),
	}
}

// Pool leases the pool for dbName, opening it on first use. The pool stays open until release
// is called, even if the registry evicts it meanwhile.
func (r *Registry) Pool(ctx context.Context, dbName string) (*pgxpool.Pool, func(), error) {
	if dbName == "" {
		return nil, nil, errors.New("tenant: database name required")
	}
	// A pool opened for us can be evicted before we lease it; reopen a bounded number of times.
	for attempt := 0; attempt < 3; attempt++ {
		if pool, release, err := r.lease(dbName); err != nil || pool != nil {
			return pool, release, err
		}

		ch := r.group.DoChan(dbName, func() (interface{}, error) {
			r.mu.Lock()
			_, ok := r.pools[dbName]
			r.mu.Unlock()
			if ok {
				return nil, nil
			}
			// Detached from the caller so one cancelled request does not fail the others waiting on it.
			openCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			pool, err := r.open(openCtx, dbName)
			if err != nil {
				return nil, fmt.Errorf("tenant: open %s: %w", dbName, err)
			}
			r.store(dbName, pool)
			r.logger.Info("tenant pool opened", slog.String("tenant", dbName))
			return nil, nil
		})

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, nil, res.Err
			}
		}
	}
	return nil, nil, fmt.Errorf("tenant: pool for %s evicted while opening", dbName)
}

func (r *Registry) lease(dbName string) (*pgxpool.Pool, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil, ErrRegistryClosed
	}
	entry, ok := r.pools[dbName]
	if !ok {
		return nil, nil, nil
	}
	entry.lastUsed = r.now()
	entry.leases++
	var once sync.Once
	return entry.pool, func() { once.Do(func() { r.release(entry) }) }, nil
}

func (r *Registry) release(entry *poolEntry) {
	r.mu.Lock()
	entry.leases--
	done := entry.retired && entry.leases == 0
	r.mu.Unlock()
	if done {
		closeAsync([]*pgxpool.Pool{entry.pool})
	}
}

// retireLocked drops the entry and returns its pool when nothing holds a lease on it.
func (r *Registry) retireLocked(name string, reason string) *pgxpool.Pool {
	entry := r.pools[name]
	delete(r.pools, name)
	entry.retired = true
	r.logger.Info("tenant pool evicted",
		slog.String("tenant", name),
		slog.String("reason", reason),
		slog.Int("leases", entry.leases))
	if entry.leases > 0 {
		return nil
	}
	return entry.pool
}

func (r *Registry) store(dbName string, pool *pgxpool.Pool) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		pool.Close()
		return
	}
	r.pools[dbName] = &poolEntry{pool: pool, lastUsed: r.now()}
	var evicted []*pgxpool.Pool
	if r.cfg.MaxPools > 0 && len(r.pools) > r.cfg.MaxPools {
		evicted = r.evictLocked(len(r.pools)-r.cfg.MaxPools, dbName)
	}
	r.mu.Unlock()
	closeAsync(evicted)
}

// evictLocked retires the n least recently used pools, never the one named keep. Pools without
// leases go first.
func (r *Registry) evictLocked(n int, keep string) []*pgxpool.Pool {
	names := make([]string, 0, len(r.pools))
	for name := range r.pools {
		if name != keep {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := r.pools[names[i]], r.pools[names[j]]
		if (a.leases > 0) != (b.leases > 0) {
			return a.leases == 0
		}
		return a.lastUsed.Before(b.lastUsed)
	})
	if n > len(names) {
		n = len(names)
	}
	out := make([]*pgxpool.Pool, 0, n)
	for _, name := range names[:n] {
		if pool := r.retireLocked(name, "lru"); pool != nil {
			out = append(out, pool)
		}
	}
	return out
}

// Sweep retires pools that have not been used for longer than the idle TTL and returns how
// many were retired.
func (r *Registry) Sweep() int {
	if r.cfg.IdleTTL <= 0 {
		return 0
	}
	r.mu.Lock()
	cutoff := r.now().Add(-r.cfg.IdleTTL)
	var idle []*pgxpool.Pool
	swept := 0
	for name, entry := range r.pools {
		if entry.lastUsed.Before(cutoff) {
			swept++
			if pool := r.retireLocked(name, "idle"); pool != nil {
				idle = append(idle, pool)
			}
		}
	}
	r.mu.Unlock()
	closeAsync(idle)
	return swept
}

// Run sweeps idle pools every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len reports the number of open pools.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pools)
}

// Tenants lists the databases with an open pool.
func (r *Registry) Tenants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.pools))
	for name := range r.pools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Collector exposes the open pool count as a gauge.
func (r *Registry) Collector() prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "billing_tenant_pools_open",
		Help: "Tenant database pools currently open.",
	}, func() float64 { return float64(r.Len()) })
}

// Close closes every registered pool, leased or not. Later calls to Pool fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	pools := r.pools
	r.pools = make(map[string]*poolEntry)
	r.mu.Unlock()
	for _, entry := range pools {
		entry.pool.Close()
	}
}

// pgxpool.Close waits for acquired connections, so evictions must not block the caller.
func closeAsync(pools []*pgxpool.Pool) {
	for _, p := range pools {
		go p.Close()
	}
}
