package billing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s got %s", want, got.String())
}

func TestStandardSingleLine(t *testing.T) {
	totals := Standard{}.Compute([]Line{{Qty: d("2"), Rate: d("100"), GSTPercent: d("18")}}, Charges{})

	requireDec(t, "200.00", totals.Subtotal)
	requireDec(t, "18.00", totals.CGST)
	requireDec(t, "18.00", totals.SGST)
	requireDec(t, "236", totals.FinalAmount)
	require.Equal(t, PolicyStandard, totals.Policy)
	require.Len(t, totals.Slabs, 1)
	requireDec(t, "200", totals.Slabs[0].Taxable)
}

func TestStandardChargesAndRounding(t *testing.T) {
	lines := []Line{
		{Qty: d("3"), Rate: d("45.50"), GSTPercent: d("5")},
		{Qty: d("1.250"), Rate: d("80"), GSTPercent: d("12")},
		{Qty: d("1"), Rate: d("20")},
	}
	totals := Standard{}.Compute(lines, Charges{Discount: d("10"), DeliveryCharge: d("30")})

	// 136.50 + 100 + 20
	requireDec(t, "256.50", totals.Subtotal)
	// (136.50*5% + 100*12%) / 2 = (6.825 + 12) / 2 = 9.4125
	requireDec(t, "9.41", totals.CGST)
	requireDec(t, "9.41", totals.SGST)
	requireDec(t, "30", totals.TotalDeliveryCharge)
	requireDec(t, "10", totals.Discount)
	// 256.50 + 18.825 + 30 - 10 = 295.325
	requireDec(t, "295", totals.FinalAmount)
	require.Len(t, totals.Slabs, 2)
	requireDec(t, "5", totals.Slabs[0].Percent)
	requireDec(t, "12", totals.Slabs[1].Percent)
}

func TestBoxChargePolicy(t *testing.T) {
	lines := []Line{
		{Qty: d("10"), Rate: d("50"), GSTPercent: d("5"), BoxQty: d("2")},
		{Qty: d("4"), Rate: d("25"), GSTPercent: d("12"), BoxQty: d("1")},
	}
	totals := BoxCharge{}.Compute(lines, Charges{DeliveryCharge: d("118"), BoxRate: d("20"), Discount: d("5")})

	requireDec(t, "600", totals.Subtotal)
	// (500*5% + 100*12%)/2 = 18.5
	requireDec(t, "18.5", totals.CGST)
	requireDec(t, "3", totals.TotalBoxQty)
	requireDec(t, "60", totals.TotalBoxCharge)
	requireDec(t, "100", totals.TotalDeliveryCharge)
	// (60 + 100) * 18% = 28.8
	requireDec(t, "28.8", totals.ServiceGST)
	// 600 + 37 + 60 + 100 + 28.8 - 5 = 820.8
	requireDec(t, "821", totals.FinalAmount)
	require.Equal(t, PolicyBoxCharge, totals.Policy)
}

func TestBoxChargeWithoutDelivery(t *testing.T) {
	totals := BoxCharge{}.Compute([]Line{{Qty: d("1"), Rate: d("100")}}, Charges{})
	requireDec(t, "0", totals.TotalDeliveryCharge)
	requireDec(t, "0", totals.ServiceGST)
	requireDec(t, "100", totals.FinalAmount)
}

func TestComputeIsDeterministic(t *testing.T) {
	lines := []Line{
		{Qty: d("1"), Rate: d("10"), GSTPercent: d("18")},
		{Qty: d("2"), Rate: d("7.35"), GSTPercent: d("5")},
		{Qty: d("5"), Rate: d("3"), GSTPercent: d("12")},
		{Qty: d("1"), Rate: d("9"), GSTPercent: d("18.0")},
	}
	charges := Charges{Discount: d("1.5"), DeliveryCharge: d("12")}
	for _, policy := range []TotalsPolicy{Standard{}, BoxCharge{}} {
		first, err := json.Marshal(policy.Compute(lines, charges))
		require.NoError(t, err)
		second, err := json.Marshal(policy.Compute(lines, charges))
		require.NoError(t, err)
		require.Equal(t, string(first), string(second))
	}
}

func TestPolicyFor(t *testing.T) {
	overrides := map[string]string{"rightupnext_kovai": PolicyBoxCharge}
	require.Equal(t, PolicyBoxCharge, PolicyFor("rightupnext_kovai", overrides).Name())
	require.Equal(t, PolicyStandard, PolicyFor("rightupnext_other", overrides).Name())
	require.Equal(t, PolicyStandard, PolicyFor("rightupnext_other", nil).Name())
	require.True(t, ValidPolicy("box"))
	require.False(t, ValidPolicy("kovai"))
}
