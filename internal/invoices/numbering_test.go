package invoices

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNextNumber(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{name: "first of the year", want: "INV-2025-001"},
		{name: "gap keeps max", existing: []string{"INV-2025-001", "INV-2025-003"}, want: "INV-2025-004"},
		{name: "other years ignored", existing: []string{"INV-2024-090", "INV-2025-002"}, want: "INV-2025-003"},
		{name: "malformed skipped", existing: []string{"INV-2025-abc", "draft", "INV-2025-005"}, want: "INV-2025-006"},
		{name: "prefix without case", existing: []string{"inv-2025-010"}, want: "INV-2025-011"},
		{name: "suffix after digits", existing: []string{"INV-2025-007b"}, want: "INV-2025-008"},
		{name: "past three digits", existing: []string{"INV-2025-999"}, want: "INV-2025-1000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, NextNumber(2025, tc.existing))
		})
	}
}

func TestParseSequence(t *testing.T) {
	seq, ok := ParseSequence(2025, "INV-2025-042")
	require.True(t, ok)
	require.Equal(t, 42, seq)

	_, ok = ParseSequence(2025, "INV-2025-")
	require.False(t, ok)
	_, ok = ParseSequence(2025, "INV-2024-001")
	require.False(t, ok)
}

func TestDeriveStatus(t *testing.T) {
	dec := decimal.RequireFromString
	tests := []struct {
		paid, final string
		want        Status
		balance     string
	}{
		{paid: "0", final: "1000", want: StatusUnPaid, balance: "1000"},
		{paid: "400", final: "1000", want: StatusPartially, balance: "600"},
		{paid: "1000", final: "1000", want: StatusCreditBill, balance: "0"},
		{paid: "1200", final: "1000", want: StatusCreditBill, balance: "0"},
		{paid: "0", final: "0", want: StatusUnPaid, balance: "0"},
	}
	for _, tc := range tests {
		balance := Balance(dec(tc.final), dec(tc.paid))
		require.True(t, dec(tc.balance).Equal(balance), "balance for paid %s of %s", tc.paid, tc.final)
		require.Equal(t, tc.want, DeriveStatus(dec(tc.paid), balance))
	}
}
