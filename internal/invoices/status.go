package invoices

import "github.com/shopspring/decimal"

// Balance is what is still owed; it never goes below zero.
func Balance(final, paid decimal.Decimal) decimal.Decimal {
	b := final.Sub(paid)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// DeriveStatus applies the payment rule: nothing paid is UnPaid, nothing owed is Credit-Bill,
// anything in between is Partially.
func DeriveStatus(paid, balance decimal.Decimal) Status {
	switch {
	case paid.IsZero():
		return StatusUnPaid
	case balance.IsZero():
		return StatusCreditBill
	default:
		return StatusPartially
	}
}

// settle recomputes balance and status from finalAmount and paidAmount.
func (t *Totals) settle() {
	if t.PaymentHistory == nil {
		t.PaymentHistory = []Payment{}
	}
	t.BalanceAmount = Balance(t.FinalAmount, t.PaidAmount)
	t.Status = DeriveStatus(t.PaidAmount, t.BalanceAmount)
}
