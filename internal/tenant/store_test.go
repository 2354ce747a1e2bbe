package tenant

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rightupnext/billing/internal/shared"
)

type memoryStore struct {
	mu        sync.Mutex
	subs      []Subscription
	accounts  map[string]Account
	databases map[string]bool
	nextID    int64
	failTx    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[string]Account{}, databases: map[string]bool{}}
}

type memoryTx struct {
	store *memoryStore
	subs  []Subscription
	accts map[string]Account
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryTx{store: m, subs: slices.Clone(m.subs), accts: map[string]Account{}}
	for k, v := range m.accounts {
		tx.accts[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if m.failTx != nil {
		return m.failTx
	}
	m.subs = tx.subs
	m.accounts = tx.accts
	return nil
}

func latest(subs []Subscription, dbName string) (Subscription, error) {
	for i := len(subs) - 1; i >= 0; i-- {
		if subs[i].DBName == dbName {
			return subs[i], nil
		}
	}
	return Subscription{}, shared.NotFoundf("subscription for %s", dbName)
}

func (m *memoryStore) LatestSubscription(ctx context.Context, dbName string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return latest(m.subs, dbName)
}

func (m *memoryStore) Account(ctx context.Context, dbName string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[dbName]
	if !ok {
		return Account{}, shared.NotFoundf("tenant %s", dbName)
	}
	return acc, nil
}

func (m *memoryStore) latestPerTenant() []Subscription {
	seen := map[string]bool{}
	var out []Subscription
	for i := len(m.subs) - 1; i >= 0; i-- {
		if !seen[m.subs[i].DBName] {
			seen[m.subs[i].DBName] = true
			out = append(out, m.subs[i])
		}
	}
	return out
}

func (m *memoryStore) SubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, sub := range m.latestPerTenant() {
		if !sub.End.Before(from) && !sub.End.After(to) {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *memoryStore) ActiveTenants(ctx context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, sub := range m.latestPerTenant() {
		if sub.End.After(now) {
			out = append(out, sub.DBName)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *memoryStore) DatabaseExists(ctx context.Context, dbName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.databases[dbName], nil
}

func (m *memoryStore) CreateDatabase(ctx context.Context, dbName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.databases[dbName] = true
	return nil
}

func (t *memoryTx) LatestSubscriptionForUpdate(ctx context.Context, dbName string) (Subscription, error) {
	return latest(t.subs, dbName)
}

func (t *memoryTx) SaveSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	if sub.ID == 0 {
		t.store.nextID++
		sub.ID = t.store.nextID
		t.subs = append(t.subs, sub)
		return sub, nil
	}
	for i := range t.subs {
		if t.subs[i].ID == sub.ID {
			t.subs[i] = sub
			return sub, nil
		}
	}
	return Subscription{}, shared.NotFoundf("subscription %d", sub.ID)
}

func (t *memoryTx) UpdateDevices(ctx context.Context, dbName, status string, limit int, deviceIDs []string) error {
	acc, ok := t.accts[dbName]
	if !ok {
		return shared.NotFoundf("tenant %s", dbName)
	}
	acc.Status = status
	acc.DeviceLimit = limit
	acc.DeviceIDs = deviceIDs
	t.accts[dbName] = acc
	return nil
}

func (t *memoryTx) CreateAccount(ctx context.Context, acc Account) (Account, error) {
	if _, ok := t.accts[acc.DBName]; ok {
		return Account{}, shared.ErrDuplicate
	}
	t.store.nextID++
	acc.ID = t.store.nextID
	t.accts[acc.DBName] = acc
	return acc, nil
}
