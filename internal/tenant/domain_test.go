package tenant

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDBNameFor(t *testing.T) {
	require.Equal(t, "rightupnext_kovai_mann_vaasanai", DBNameFor("  Kovai Mann   Vaasanai "))
	require.Equal(t, "rightupnext_sri_ram_stores", DBNameFor("Sri Ram Stores!"))
	require.True(t, ValidDBName(DBNameFor("Sri Ram Stores!")))
	require.False(t, ValidDBName(DBNameFor("!!!")))
	require.False(t, ValidDBName("postgres"))
	require.False(t, ValidDBName(`rightupnext_x"; DROP DATABASE y`))
}

func TestDeviceIDs(t *testing.T) {
	require.Equal(t, []string{"kovai_start01", "kovai_start02"}, DeviceIDs("rightupnext_kovai_mann", 2))
	require.Equal(t, []string{"user_start01"}, DeviceIDs("billing", 1))
	require.Len(t, DeviceIDs("rightupnext_x", 12), 12)
	require.Equal(t, "x_start12", DeviceIDs("rightupnext_x", 12)[11])
}

func TestPlanForAmount(t *testing.T) {
	plan, ok := PlanForAmount(decimal.NewFromInt(18000))
	require.True(t, ok)
	require.Equal(t, AccountStarter, plan.Account)
	require.Equal(t, 2, plan.Devices)

	plan, ok = PlanForAmount(decimal.RequireFromString("32000.00"))
	require.True(t, ok)
	require.Equal(t, AccountPro, plan.Account)
	require.Equal(t, 2, plan.Years)

	_, ok = PlanForAmount(decimal.NewFromInt(100))
	require.False(t, ok)
}

func TestRenewalWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	starter, _ := PlanForAmount(decimal.NewFromInt(18000))

	start, end := RenewalWindow(nil, starter, now)
	require.Equal(t, now, start)
	require.Equal(t, now.AddDate(1, 0, 0), end)

	running := &Subscription{End: now.AddDate(0, 2, 0)}
	start, end = RenewalWindow(running, starter, now)
	require.Equal(t, running.End, start)
	require.Equal(t, running.End.AddDate(1, 0, 0), end)

	lapsed := &Subscription{End: now.AddDate(0, -2, 0)}
	start, _ = RenewalWindow(lapsed, starter, now)
	require.Equal(t, now, start)
}

func TestRemainingUntil(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	end := now.Add(49*time.Hour + 5*time.Minute + 7*time.Second)
	require.Equal(t, Remaining{Days: 2, Hours: 1, Minutes: 5, Seconds: 7}, RemainingUntil(end, now))
	require.Equal(t, Remaining{}, RemainingUntil(now.Add(-time.Hour), now))
}
