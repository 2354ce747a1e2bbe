package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request failed business validation.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a unique key already exists.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInsufficientStock indicates a reduce larger than the available balance.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOverpayment indicates a payment larger than the outstanding balance.
	ErrOverpayment = errors.New("payment exceeds remaining balance")
	// ErrNoSubscription indicates the tenant has never subscribed.
	ErrNoSubscription = errors.New("subscription not found")
	// ErrSubscriptionExpired indicates the tenant subscription window has closed.
	ErrSubscriptionExpired = errors.New("subscription expired")
)

// Validationf builds an ErrValidation wrapped with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound wrapped with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InsufficientStockError carries the balance that blocked a reduce.
type InsufficientStockError struct {
	InventoryID int64
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for item %d: available %s, requested %s",
		e.InventoryID, e.Available.String(), e.Requested.String())
}

// Unwrap lets errors.Is match ErrInsufficientStock.
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// OverpaymentError carries the remaining balance of the invoice.
type OverpaymentError struct {
	Balance   decimal.Decimal
	Attempted decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment exceeds remaining balance: remaining balance %s, attempted payment %s",
		FormatINR(e.Balance), FormatINR(e.Attempted))
}

// Unwrap lets errors.Is match ErrOverpayment.
func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// IsBusiness reports whether err is an expected business-rule failure that is safe to show callers.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrNoSubscription) ||
		errors.Is(err, ErrSubscriptionExpired)
}
