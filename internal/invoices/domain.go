// Package invoices records sales: invoice creation reconciled against stock, edits, payments,
// numbering and the sales analytics built from them.
package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rightupnext/billing/internal/billing"
)

// Status is the payment state of an invoice.
type Status string

// Payment states. An invoice only moves forward through them.
const (
	StatusUnPaid     Status = "UnPaid"
	StatusPartially  Status = "Partially"
	StatusCreditBill Status = "Credit-Bill"
)

// Customer is the buyer snapshot stored with the invoice.
type Customer struct {
	ID        *int64 `json:"id,omitempty"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	GSTNumber string `json:"gst_number"`
	Email     string `json:"email"`
}

// LineItem is one sold line. Lines referencing an inventory item reduce its stock.
type LineItem struct {
	ProductID       *int64          `json:"product_id,omitempty"`
	InventoryItemID *int64          `json:"inventory_item_id,omitempty"`
	Name            string          `json:"name"`
	Qty             decimal.Decimal `json:"qty"`
	Unit            string          `json:"unit"`
	MRP             decimal.Decimal `json:"mrp"`
	Rate            decimal.Decimal `json:"rate"`
	GST             decimal.Decimal `json:"gst"`
	Box             decimal.Decimal `json:"box"`
	Amount          decimal.Decimal `json:"amount"`
}

// Charges are the invoice level adjustments entered at the counter.
type Charges struct {
	Discount       decimal.Decimal `json:"discount"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	BoxRate        decimal.Decimal `json:"boxRate"`
}

// Payment is one entry of the payment history.
type Payment struct {
	Amount decimal.Decimal `json:"amount"`
	Date   string          `json:"date"`
}

// Totals is the computedtotals document: the tax breakdown plus the payment state.
type Totals struct {
	billing.Totals
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	BalanceAmount  decimal.Decimal `json:"balanceAmount"`
	Status         Status          `json:"status"`
	PaymentHistory []Payment       `json:"paymentHistory"`
	InvoiceNo      string          `json:"invoiceNo"`
}

// Invoice is a stored invoice.
type Invoice struct {
	ID        int64      `json:"id"`
	InvoiceNo string     `json:"invoice_no"`
	Customer  Customer   `json:"customer"`
	Items     []LineItem `json:"items"`
	Charges   Charges    `json:"charges"`
	Totals    Totals     `json:"computedtotals"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CreateInput is a new invoice. An empty InvoiceNo is allocated from the tenant counter.
// Totals, when given, is the caller's own computation; its finalAmount must agree with ours
// and its paidAmount is booked as the first payment.
type CreateInput struct {
	InvoiceNo string
	Customer  Customer
	Items     []LineItem
	Charges   Charges
	Totals    *Totals
}

// UpdateInput re-edits an invoice. Payments are never taken from it.
type UpdateInput struct {
	InvoiceNo string
	Customer  Customer
	Items     []LineItem
	Charges   Charges
	Totals    *Totals
}

// PaymentSummary is the payment state returned by Update and AddPayment.
type PaymentSummary struct {
	Status         Status          `json:"status"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
	PaidAmount     decimal.Decimal `json:"paidAmount"`
	BalanceAmount  decimal.Decimal `json:"balanceAmount"`
	PaymentHistory []Payment       `json:"paymentHistory"`
}

func summaryOf(t Totals) PaymentSummary {
	return PaymentSummary{
		Status:         t.Status,
		FinalAmount:    t.FinalAmount,
		PaidAmount:     t.PaidAmount,
		BalanceAmount:  t.BalanceAmount,
		PaymentHistory: t.PaymentHistory,
	}
}
