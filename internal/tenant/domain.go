// Package tenant manages tenant databases: connection pools, subscriptions and provisioning.
package tenant

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DBPrefix prefixes every tenant database name.
const DBPrefix = "rightupnext_"

// Account types.
const (
	AccountTrial   = "trial"
	AccountStarter = "starter"
	AccountPro     = "pro"
)

// Account statuses.
const (
	StatusTrial  = "trial"
	StatusActive = "active"
)

var (
	dbNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,63}$`)
	nonWord       = regexp.MustCompile(`[^a-z0-9_]`)
	spaces        = regexp.MustCompile(`\s+`)
)

// Subscription is one paid (or trial) window for a tenant database.
type Subscription struct {
	ID      int64
	DBName  string
	Account string
	Amount  decimal.Decimal
	Start   time.Time
	End     time.Time
}

// Expired reports whether the window closed before now.
func (s Subscription) Expired(now time.Time) bool {
	return s.End.IsZero() || now.After(s.End)
}

// Account is the registry row of a tenant in the master database.
type Account struct {
	ID          int64
	Name        string
	Email       string
	DBName      string
	Status      string
	DeviceIDs   []string
	DeviceLimit int
	CreatedAt   time.Time
}

// Remaining splits the time left on a subscription.
type Remaining struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Status is the monitor view of a tenant's subscription.
type Status struct {
	DBName      string          `json:"db_name"`
	Account     string          `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Expired     bool            `json:"expired"`
	Start       time.Time       `json:"subscription_start_date"`
	End         time.Time       `json:"subscription_end_date"`
	Remaining   Remaining       `json:"remaining_time"`
	DeviceLimit int             `json:"device_limit"`
	DeviceIDs   []string        `json:"device_ids"`
}

// Plan is a purchasable subscription tier.
type Plan struct {
	Account string
	Amount  decimal.Decimal
	Years   int
	Devices int
}

var plans = []Plan{
	{Account: AccountStarter, Amount: decimal.NewFromInt(18000), Years: 1, Devices: 2},
	{Account: AccountPro, Amount: decimal.NewFromInt(32000), Years: 2, Devices: 5},
}

// PlanForAmount resolves the plan paid for by amount.
func PlanForAmount(amount decimal.Decimal) (Plan, bool) {
	for _, p := range plans {
		if p.Amount.Equal(amount) {
			return p, true
		}
	}
	return Plan{}, false
}

// Renewal is the outcome of applying a plan.
type Renewal struct {
	Account     string    `json:"account"`
	Start       time.Time `json:"subscription_start_date"`
	End         time.Time `json:"subscription_end_date"`
	DeviceLimit int       `json:"device_limit"`
	DeviceIDs   []string  `json:"device_ids"`
}

// RenewalWindow extends from the current end when it is still in the future, otherwise from now.
func RenewalWindow(current *Subscription, plan Plan, now time.Time) (time.Time, time.Time) {
	start := now
	if current != nil && current.End.After(now) {
		start = current.End
	}
	return start, start.AddDate(plan.Years, 0, 0)
}

// DeviceIDs generates the device allowlist for a tenant: "<prefix>_startNN".
func DeviceIDs(dbName string, count int) []string {
	prefix := "user"
	if parts := strings.Split(dbName, "_"); len(parts) > 1 && parts[1] != "" {
		prefix = parts[1]
	}
	out := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		out = append(out, fmt.Sprintf("%s_start%02d", prefix, i))
	}
	return out
}

// RemainingUntil splits the duration until end; everything is zero once end has passed.
func RemainingUntil(end, now time.Time) Remaining {
	d := end.Sub(now)
	if d <= 0 {
		return Remaining{}
	}
	secs := int64(d / time.Second)
	return Remaining{
		Days:    secs / 86400,
		Hours:   (secs / 3600) % 24,
		Minutes: (secs / 60) % 60,
		Seconds: secs % 60,
	}
}

// DBNameFor derives the tenant database name from the business name.
func DBNameFor(business string) string {
	clean := strings.ToLower(strings.TrimSpace(business))
	clean = spaces.ReplaceAllString(clean, "_")
	clean = nonWord.ReplaceAllString(clean, "")
	return DBPrefix + clean
}

// ValidDBName reports whether name is a safe tenant database identifier.
func ValidDBName(name string) bool {
	return strings.HasPrefix(name, DBPrefix) && len(name) > len(DBPrefix) && dbNamePattern.MatchString(name)
}
