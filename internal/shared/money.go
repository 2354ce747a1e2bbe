package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// Money is written as JSON numbers, in responses and in stored documents alike.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// FormatINR renders an amount with rupee sign and two decimals using Indian digit grouping.
func FormatINR(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return inrPrinter.Sprintf("₹%.2f", f)
}
