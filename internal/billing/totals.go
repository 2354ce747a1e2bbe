// Package billing computes invoice totals. Everything here is pure arithmetic on decimals.
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Line is the taxable view of an invoice line item.
type Line struct {
	Qty        decimal.Decimal
	Rate       decimal.Decimal
	GSTPercent decimal.Decimal
	BoxQty     decimal.Decimal
}

// Charges groups invoice level adjustments.
type Charges struct {
	Discount       decimal.Decimal
	DeliveryCharge decimal.Decimal
	BoxRate        decimal.Decimal
}

// GSTSlab aggregates tax for one GST rate.
type GSTSlab struct {
	Percent decimal.Decimal `json:"percent"`
	Taxable decimal.Decimal `json:"taxable"`
	CGST    decimal.Decimal `json:"cgst"`
	SGST    decimal.Decimal `json:"sgst"`
}

// Totals is the computed breakdown persisted with every invoice.
type Totals struct {
	Policy              string          `json:"policy"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	CGST                decimal.Decimal `json:"cgst"`
	SGST                decimal.Decimal `json:"sgst"`
	GSTTotal            decimal.Decimal `json:"gstTotal"`
	NetPayable          decimal.Decimal `json:"netPayable"`
	TotalDeliveryCharge decimal.Decimal `json:"totalDeliveryCharge"`
	TotalBoxQty         decimal.Decimal `json:"totalBoxQty"`
	TotalBoxCharge      decimal.Decimal `json:"totalBoxCharge"`
	ServiceGST          decimal.Decimal `json:"bc_dc_gst"`
	Discount            decimal.Decimal `json:"discount"`
	FinalAmount         decimal.Decimal `json:"finalAmount"`
	Slabs               []GSTSlab       `json:"gstBreakdown,omitempty"`
}

// TotalsPolicy computes invoice totals for a tenant flavour.
type TotalsPolicy interface {
	Name() string
	Compute(lines []Line, charges Charges) Totals
}

const (
	// PolicyStandard is the default GST policy.
	PolicyStandard = "standard"
	// PolicyBoxCharge adds box and taxed delivery charges.
	PolicyBoxCharge = "box"
)

var (
	hundred       = decimal.NewFromInt(100)
	two           = decimal.NewFromInt(2)
	serviceGSTPct = decimal.NewFromInt(18)
	deliveryGross = decimal.RequireFromString("1.18")
)

// Standard applies per-line GST split evenly into CGST and SGST.
type Standard struct{}

// Name implements TotalsPolicy.
func (Standard) Name() string { return PolicyStandard }

// Compute implements TotalsPolicy.
func (Standard) Compute(lines []Line, charges Charges) Totals {
	t := taxLines(lines)
	t.Policy = PolicyStandard
	t.TotalDeliveryCharge = charges.DeliveryCharge.Round(2)
	t.Discount = charges.Discount.Round(2)
	final := t.netRaw.Add(charges.DeliveryCharge).Sub(charges.Discount)
	t.FinalAmount = final.Round(0)
	return t.Totals
}

// BoxCharge extends Standard with box charges and an 18% service GST on box and delivery charges.
// The delivery charge is entered GST-inclusive and is reduced to its taxable value first.
type BoxCharge struct{}

// Name implements TotalsPolicy.
func (BoxCharge) Name() string { return PolicyBoxCharge }

// Compute implements TotalsPolicy.
func (BoxCharge) Compute(lines []Line, charges Charges) Totals {
	t := taxLines(lines)
	t.Policy = PolicyBoxCharge

	boxCharge := t.TotalBoxQty.Mul(charges.BoxRate)
	adjustedDelivery := decimal.Zero
	if !charges.DeliveryCharge.IsZero() {
		adjustedDelivery = charges.DeliveryCharge.DivRound(deliveryGross, 2)
	}
	serviceGST := boxCharge.Add(adjustedDelivery).Mul(serviceGSTPct).Div(hundred)

	t.TotalBoxCharge = boxCharge.Round(2)
	t.TotalDeliveryCharge = adjustedDelivery
	t.ServiceGST = serviceGST.Round(2)
	t.Discount = charges.Discount.Round(2)
	final := t.netRaw.Add(boxCharge).Add(adjustedDelivery).Add(serviceGST).Sub(charges.Discount)
	t.FinalAmount = final.Round(0)
	return t.Totals
}

type taxed struct {
	Totals
	netRaw decimal.Decimal
}

func taxLines(lines []Line) taxed {
	subtotal := decimal.Zero
	cgst := decimal.Zero
	boxQty := decimal.Zero
	slabs := map[string]*GSTSlab{}

	for _, l := range lines {
		amount := l.Qty.Mul(l.Rate)
		half := amount.Mul(l.GSTPercent).Div(hundred).Div(two)
		subtotal = subtotal.Add(amount)
		cgst = cgst.Add(half)
		boxQty = boxQty.Add(l.BoxQty)

		if l.GSTPercent.IsZero() {
			continue
		}
		key := l.GSTPercent.String()
		slab, ok := slabs[key]
		if !ok {
			slab = &GSTSlab{Percent: l.GSTPercent}
			slabs[key] = slab
		}
		slab.Taxable = slab.Taxable.Add(amount)
		slab.CGST = slab.CGST.Add(half)
		slab.SGST = slab.SGST.Add(half)
	}

	gst := cgst.Mul(two)
	net := subtotal.Add(gst)
	return taxed{
		Totals: Totals{
			Subtotal:    subtotal.Round(2),
			CGST:        cgst.Round(2),
			SGST:        cgst.Round(2),
			GSTTotal:    gst.Round(2),
			NetPayable:  net.Round(0),
			TotalBoxQty: boxQty,
			Slabs:       sortedSlabs(slabs),
		},
		netRaw: net,
	}
}

func sortedSlabs(slabs map[string]*GSTSlab) []GSTSlab {
	if len(slabs) == 0 {
		return nil
	}
	out := make([]GSTSlab, 0, len(slabs))
	for _, s := range slabs {
		out = append(out, GSTSlab{
			Percent: s.Percent,
			Taxable: s.Taxable.Round(2),
			CGST:    s.CGST.Round(2),
			SGST:    s.SGST.Round(2),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Percent.LessThan(out[j].Percent) })
	return out
}

// PolicyFor returns the policy configured for a tenant database, falling back to Standard.
func PolicyFor(tenantDB string, overrides map[string]string) TotalsPolicy {
	switch overrides[tenantDB] {
	case PolicyBoxCharge:
		return BoxCharge{}
	default:
		return Standard{}
	}
}

// ValidPolicy reports whether name identifies a known policy.
func ValidPolicy(name string) bool {
	return name == PolicyStandard || name == PolicyBoxCharge
}
