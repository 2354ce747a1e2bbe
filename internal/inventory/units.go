package inventory

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/shared"
)

// Unit is the measuring unit of an inventory item.
type Unit string

// Supported units.
const (
	UnitKg        Unit = "kg"
	UnitGram      Unit = "g"
	UnitLiter     Unit = "liter"
	UnitMl        Unit = "ml"
	UnitQuintal   Unit = "quintal"
	UnitTonne     Unit = "tonne"
	UnitMilligram Unit = "milligram"
	UnitDozen     Unit = "dozen"
	UnitPiece     Unit = "piece"
)

// Units lists every supported unit in display order.
var Units = []Unit{UnitKg, UnitGram, UnitLiter, UnitMl, UnitQuintal, UnitTonne, UnitMilligram, UnitDozen, UnitPiece}

var thousand = decimal.NewFromInt(1000)

// ParseUnit validates s against the supported units.
func ParseUnit(s string) (Unit, error) {
	for _, u := range Units {
		if string(u) == s {
			return u, nil
		}
	}
	names := make([]string, len(Units))
	for i, u := range Units {
		names[i] = string(u)
	}
	return "", shared.Validationf("invalid unit %q, allowed: %s", s, strings.Join(names, ", "))
}

// NormalizeQuantity converts a kilo/grams entry into the item's base unit, rounded to 3 places.
//
//	kg, liter       kilo + grams/1000
//	g, ml           kilo*1000 + grams
//	quintal, tonne  kilo
//	anything else   grams (a plain count)
func NormalizeQuantity(unit Unit, kilo, grams decimal.Decimal) decimal.Decimal {
	var q decimal.Decimal
	switch unit {
	case UnitKg, UnitLiter:
		q = kilo.Add(grams.Div(thousand))
	case UnitGram, UnitMl:
		q = kilo.Mul(thousand).Add(grams)
	case UnitQuintal, UnitTonne:
		q = kilo
	default:
		q = grams
	}
	return q.Round(3)
}

// QuantityPlaces is the scale of stored stock quantities.
const QuantityPlaces = 3

// FitsQuantityScale reports whether q is stored without rounding.
func FitsQuantityScale(q decimal.Decimal) bool {
	return q.Equal(q.Round(QuantityPlaces))
}

// StockDisplay renders a balance for people: small units roll up into the large one.
func StockDisplay(unit Unit, qty decimal.Decimal) string {
	switch unit {
	case UnitGram, UnitMl:
		if qty.GreaterThanOrEqual(thousand) {
			big := "kg"
			if unit == UnitMl {
				big = "liter"
			}
			whole := qty.Div(thousand).Floor()
			rest := qty.Sub(whole.Mul(thousand))
			return fmt.Sprintf("%s %s %s %s", whole.String(), big, rest.StringFixed(2), unit)
		}
	}
	return fmt.Sprintf("%s %s", qty.String(), unit)
}
