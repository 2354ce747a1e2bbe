package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	stock := &InsufficientStockError{InventoryID: 7, Available: decimal.NewFromInt(5), Requested: decimal.NewFromInt(10)}
	wrapped := fmt.Errorf("create invoice: %w", stock)
	require.ErrorIs(t, wrapped, ErrInsufficientStock)
	require.Contains(t, wrapped.Error(), "available 5, requested 10")

	var target *InsufficientStockError
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, int64(7), target.InventoryID)

	over := &OverpaymentError{Balance: decimal.NewFromInt(600), Attempted: decimal.NewFromInt(700)}
	require.ErrorIs(t, over, ErrOverpayment)
	require.Contains(t, over.Error(), "600.00")
	require.Contains(t, over.Error(), "700.00")
}

func TestIsBusiness(t *testing.T) {
	require.True(t, IsBusiness(Validationf("unit %q not supported", "bag")))
	require.True(t, IsBusiness(NotFoundf("invoice %d", 3)))
	require.True(t, IsBusiness(fmt.Errorf("gate: %w", ErrSubscriptionExpired)))
	require.False(t, IsBusiness(errors.New("connection reset")))
}
