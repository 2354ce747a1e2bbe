package invoices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func invoiceOn(no string, day time.Time, final, paid string, status Status, history []Payment, items ...LineItem) Invoice {
	inv := Invoice{InvoiceNo: no, CreatedAt: day, Items: items}
	inv.Totals.FinalAmount = d(final)
	inv.Totals.PaidAmount = d(paid)
	inv.Totals.Status = status
	inv.Totals.PaymentHistory = history
	inv.Totals.InvoiceNo = no
	return inv
}

func TestSummarize(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	current := []Invoice{
		invoiceOn("INV-2025-001", start.AddDate(0, 0, 1), "1000", "400", StatusPartially,
			[]Payment{{Amount: d("400"), Date: "2025-03-02"}},
			LineItem{Qty: d("10"), MRP: d("80"), Rate: d("100")}),
		invoiceOn("INV-2025-002", start.AddDate(0, 0, 4), "500", "500", StatusCreditBill,
			[]Payment{{Amount: d("300"), Date: "2025-03-05"}, {Amount: d("200"), Date: "2025-03-02"}},
			LineItem{Qty: d("5"), MRP: d("90"), Rate: d("100")}),
		invoiceOn("INV-2025-003", start.AddDate(0, 0, 9), "250", "0", "unpaid", nil),
	}
	previous := []Invoice{
		invoiceOn("INV-2025-000", start.AddDate(0, -1, 3), "300", "300", StatusCreditBill, nil),
	}

	out := Summarize(current, previous, 7, start, end)

	require.Equal(t, "2025-03-01", out.StartDate)
	require.Equal(t, 3, out.TotalInvoices)
	require.Equal(t, 7, out.CustomerCount)
	requireDec(t, "1750", out.TotalFinalAmount)
	requireDec(t, "850", out.TotalBalanceAmount)
	require.Equal(t, StatusCounts{UnPaid: 1, Partially: 1, CreditBill: 1}, out.StatusCounts)
	requireDec(t, "1250", out.TotalPendingAmount)
	// 500 - (850 - 1250)
	requireDec(t, "900", out.TotalCreditBillAmount)

	require.Len(t, out.InvoicesBreakdown, 3)
	requireDec(t, "600", out.InvoicesBreakdown[0].BalanceAmount)

	require.Len(t, out.MergedPaymentHistory, 3)
	require.Len(t, out.DailyPayments, 2)
	require.Equal(t, "2025-03-02", out.DailyPayments[0].Date)
	requireDec(t, "600", out.DailyPayments[0].Amount)
	require.Equal(t, "2025-03-05", out.DailyPayments[1].Date)

	require.Len(t, out.SalesReport, 1)
	sales := out.SalesReport[0]
	require.Equal(t, "Mar", sales.Month)
	requireDec(t, "1250", sales.BuyMRP)
	requireDec(t, "1500", sales.SellingRate)
	requireDec(t, "250", sales.Profit)
	requireDec(t, "20", sales.ProfitPercent)

	require.Equal(t, 1, out.PreviousTotalInvoices)
	requireDec(t, "300", out.PreviousCreditBillAmount)
	requireDec(t, "0", out.PreviousBalanceAmount)
}

func TestSummarizeSkipsPaymentsOutsideRange(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	inv := invoiceOn("INV-2025-001", start, "100", "100", StatusCreditBill, []Payment{
		{Amount: d("60"), Date: "2025-03-31"},
		{Amount: d("40"), Date: "2025-04-01T10:00:00Z"},
		{Amount: d("1"), Date: "not a date"},
	})
	out := Summarize([]Invoice{inv}, nil, 0, start, end)
	require.Len(t, out.MergedPaymentHistory, 1)
	require.Len(t, out.DailyPayments, 1)
	requireDec(t, "0", out.SalesReport[0].ProfitPercent)
}

func TestPreviousRange(t *testing.T) {
	from, to := PreviousRange(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	require.Equal(t, "2024-12-01", from.Format(time.DateOnly))
	require.Equal(t, "2024-12-31", to.Format(time.DateOnly))
}
