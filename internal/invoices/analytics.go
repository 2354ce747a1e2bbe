package invoices

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rightupnext/billing/internal/inventory"
	"github.com/rightupnext/billing/internal/shared"
)

// AnalyticsFilter selects the reporting window. Zero dates mean the current month.
type AnalyticsFilter struct {
	Start time.Time
	End   time.Time
}

// StatusCounts counts invoices per payment state.
type StatusCounts struct {
	UnPaid     int `json:"UnPaid"`
	Partially  int `json:"Partially"`
	CreditBill int `json:"CreditBill"`
}

// StatusAmounts sums finalAmount per payment state.
type StatusAmounts struct {
	UnPaid     decimal.Decimal `json:"UnPaid"`
	Partially  decimal.Decimal `json:"Partially"`
	CreditBill decimal.Decimal `json:"CreditBill"`
}

// PeriodStats are the totals of one window.
type PeriodStats struct {
	Invoices      int
	FinalAmount   decimal.Decimal
	BalanceAmount decimal.Decimal
	Counts        StatusCounts
	Amounts       StatusAmounts
}

// InvoiceBalance is one row of the invoice breakdown.
type InvoiceBalance struct {
	InvoiceNo     string          `json:"invoiceNo"`
	FinalAmount   decimal.Decimal `json:"finalAmount"`
	BalanceAmount decimal.Decimal `json:"balanceAmount"`
}

// MonthlySales compares list price against selling price for one month.
type MonthlySales struct {
	Year          int             `json:"year"`
	Month         string          `json:"month"`
	BuyMRP        decimal.Decimal `json:"buyMrp"`
	SellingRate   decimal.Decimal `json:"sellingRate"`
	Profit        decimal.Decimal `json:"profit"`
	ProfitPercent decimal.Decimal `json:"profitPercent"`
}

// Analytics is the invoice dashboard of a window compared with the month before it.
type Analytics struct {
	StartDate             string           `json:"startDate"`
	EndDate               string           `json:"endDate"`
	TotalInvoices         int              `json:"totalInvoices"`
	CustomerCount         int              `json:"customerCount"`
	TotalFinalAmount      decimal.Decimal  `json:"totalFinalAmount"`
	TotalBalanceAmount    decimal.Decimal  `json:"totalBalanceAmount"`
	TotalCreditBillAmount decimal.Decimal  `json:"totalCreditBillAmount"`
	TotalPendingAmount    decimal.Decimal  `json:"totalPendingAmount"`
	InvoicesBreakdown     []InvoiceBalance `json:"invoicesBreakdown"`
	MergedPaymentHistory  []Payment        `json:"mergedPaymentHistory"`
	DailyPayments         []Payment        `json:"dailyPayments"`
	SalesReport           []MonthlySales   `json:"salesReport"`
	StatusCounts          StatusCounts     `json:"statusCounts"`
	StatusAmounts         StatusAmounts    `json:"statusAmounts"`

	PreviousFinalAmount      decimal.Decimal `json:"previousFinalAmount"`
	PreviousBalanceAmount    decimal.Decimal `json:"previousBalanceAmount"`
	PreviousCreditBillAmount decimal.Decimal `json:"previousCreditBillAmount"`
	PreviousStatusCounts     StatusCounts    `json:"previousStatusCounts"`
	PreviousTotalInvoices    int             `json:"previousTotalInvoices"`
	PreviousCustomerCount    int             `json:"previousCustomerCount"`
}

// PreviousRange is the calendar month before the one containing start.
func PreviousRange(start time.Time) (time.Time, time.Time) {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	return inventory.MonthRange(first.AddDate(0, -1, 0))
}

// Analytics reports sales, balances and payments for the window. Results are cached per tenant
// and window until the next invoice mutation.
func (s *Service) Analytics(ctx context.Context, tenantDB string, filter AnalyticsFilter) (Analytics, error) {
	if filter.Start.IsZero() || filter.End.IsZero() {
		filter.Start, filter.End = inventory.MonthRange(s.now())
	}
	if filter.End.Before(filter.Start) {
		return Analytics{}, shared.Validationf("end date before start date")
	}
	start, end := filter.Start.Format(time.DateOnly), filter.End.Format(time.DateOnly)

	loader := func(ctx context.Context) (any, error) {
		return s.buildAnalytics(ctx, tenantDB, filter)
	}
	key, err := s.cache.BuildKey(ctx, analyticsScope(tenantDB), start, end)
	if err != nil {
		s.logger.Warn("analytics cache unavailable", slog.String("tenant", tenantDB), slog.Any("error", err))
		return s.buildAnalytics(ctx, tenantDB, filter)
	}
	var out Analytics
	if err := s.cache.FetchJSON(ctx, key, &out, loader); err != nil {
		return Analytics{}, err
	}
	return out, nil
}

func (s *Service) buildAnalytics(ctx context.Context, tenantDB string, filter AnalyticsFilter) (Analytics, error) {
	prevStart, prevEnd := PreviousRange(filter.Start)

	var (
		current, previous []Invoice
		customers         int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = s.repo.InvoicesBetween(gctx, tenantDB, filter.Start, filter.End)
		return err
	})
	g.Go(func() error {
		var err error
		previous, err = s.repo.InvoicesBetween(gctx, tenantDB, prevStart, prevEnd)
		return err
	})
	g.Go(func() error {
		var err error
		customers, err = s.repo.CustomerCount(gctx, tenantDB)
		return err
	})
	if err := g.Wait(); err != nil {
		return Analytics{}, err
	}
	return Summarize(current, previous, customers, filter.Start, filter.End), nil
}

// Stats totals a set of invoices by payment state. Balances are recomputed from finalAmount and
// paidAmount rather than trusted from the stored document.
func Stats(invoices []Invoice) PeriodStats {
	var st PeriodStats
	st.Invoices = len(invoices)
	for _, inv := range invoices {
		final := inv.Totals.FinalAmount
		st.FinalAmount = st.FinalAmount.Add(final)
		st.BalanceAmount = st.BalanceAmount.Add(Balance(final, inv.Totals.PaidAmount))
		switch strings.ToLower(string(inv.Totals.Status)) {
		case "partially":
			st.Counts.Partially++
			st.Amounts.Partially = st.Amounts.Partially.Add(final)
		case "credit-bill":
			st.Counts.CreditBill++
			st.Amounts.CreditBill = st.Amounts.CreditBill.Add(final)
		default:
			st.Counts.UnPaid++
			st.Amounts.UnPaid = st.Amounts.UnPaid.Add(final)
		}
	}
	return st
}

var hundred = decimal.NewFromInt(100)

// Summarize builds the dashboard from the invoices of the window and of the previous month.
func Summarize(current, previous []Invoice, customers int, start, end time.Time) Analytics {
	startDay, endDay := start.Format(time.DateOnly), end.Format(time.DateOnly)
	cur := Stats(current)
	prev := Stats(previous)

	out := Analytics{
		StartDate:            startDay,
		EndDate:              endDay,
		TotalInvoices:        cur.Invoices,
		CustomerCount:        customers,
		TotalFinalAmount:     cur.FinalAmount,
		TotalBalanceAmount:   cur.BalanceAmount,
		StatusCounts:         cur.Counts,
		StatusAmounts:        cur.Amounts,
		InvoicesBreakdown:    make([]InvoiceBalance, 0, len(current)),
		MergedPaymentHistory: []Payment{},
		DailyPayments:        []Payment{},
		SalesReport:          []MonthlySales{},

		PreviousFinalAmount:      prev.FinalAmount,
		PreviousBalanceAmount:    prev.BalanceAmount,
		PreviousCreditBillAmount: prev.Amounts.CreditBill,
		PreviousStatusCounts:     prev.Counts,
		PreviousTotalInvoices:    prev.Invoices,
		PreviousCustomerCount:    customers,
	}

	// Pending is what UnPaid and Partially invoices were billed; the part of it already paid
	// is taken off the credit bill amount.
	out.TotalPendingAmount = cur.Amounts.UnPaid.Add(cur.Amounts.Partially)
	paidOnPending := cur.BalanceAmount.Sub(out.TotalPendingAmount)
	out.TotalCreditBillAmount = cur.Amounts.CreditBill.Sub(paidOnPending)

	daily := map[string]decimal.Decimal{}
	type monthKey struct {
		year  int
		month time.Month
	}
	months := map[monthKey]*MonthlySales{}
	for _, inv := range current {
		no := inv.Totals.InvoiceNo
		if no == "" {
			no = inv.InvoiceNo
		}
		out.InvoicesBreakdown = append(out.InvoicesBreakdown, InvoiceBalance{
			InvoiceNo:     no,
			FinalAmount:   inv.Totals.FinalAmount,
			BalanceAmount: Balance(inv.Totals.FinalAmount, inv.Totals.PaidAmount),
		})
		for _, p := range inv.Totals.PaymentHistory {
			day, ok := paymentDay(p.Date)
			if !ok || day < startDay || day > endDay {
				continue
			}
			out.MergedPaymentHistory = append(out.MergedPaymentHistory, Payment{Amount: p.Amount, Date: day})
			daily[day] = daily[day].Add(p.Amount)
		}

		key := monthKey{inv.CreatedAt.Year(), inv.CreatedAt.Month()}
		m, ok := months[key]
		if !ok {
			m = &MonthlySales{Year: key.year, Month: key.month.String()[:3]}
			months[key] = m
		}
		for _, it := range inv.Items {
			m.BuyMRP = m.BuyMRP.Add(it.MRP.Mul(it.Qty))
			m.SellingRate = m.SellingRate.Add(it.Rate.Mul(it.Qty))
		}
	}

	for day, amount := range daily {
		out.DailyPayments = append(out.DailyPayments, Payment{Date: day, Amount: amount})
	}
	slices.SortFunc(out.DailyPayments, func(a, b Payment) int { return strings.Compare(a.Date, b.Date) })

	keys := make([]monthKey, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b monthKey) int {
		if a.year != b.year {
			return a.year - b.year
		}
		return int(a.month) - int(b.month)
	})
	for _, k := range keys {
		m := months[k]
		m.BuyMRP = m.BuyMRP.Round(2)
		m.SellingRate = m.SellingRate.Round(2)
		m.Profit = m.SellingRate.Sub(m.BuyMRP)
		if !m.BuyMRP.IsZero() {
			m.ProfitPercent = m.Profit.Div(m.BuyMRP).Mul(hundred).Round(1)
		}
		out.SalesReport = append(out.SalesReport, *m)
	}
	return out
}

// paymentDay normalises a stored payment date to YYYY-MM-DD.
func paymentDay(raw string) (string, bool) {
	if len(raw) < len(time.DateOnly) {
		return "", false
	}
	t, err := time.Parse(time.DateOnly, raw[:len(time.DateOnly)])
	if err != nil {
		return "", false
	}
	return t.Format(time.DateOnly), true
}
