package invoices

import (
	"fmt"
	"strconv"
	"strings"
)

// NumberPrefix is the year prefix of invoice numbers, e.g. "INV-2025-".
func NumberPrefix(year int) string {
	return fmt.Sprintf("INV-%d-", year)
}

// FormatNumber renders sequence seq of year, padded to three digits.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("%s%03d", NumberPrefix(year), seq)
}

// ParseSequence extracts the sequence of an invoice number of year. The prefix is matched
// without case and the sequence is the run of digits after it, so "inv-2025-007b" is 7.
func ParseSequence(year int, invoiceNo string) (int, bool) {
	prefix := NumberPrefix(year)
	if len(invoiceNo) < len(prefix) || !strings.EqualFold(invoiceNo[:len(prefix)], prefix) {
		return 0, false
	}
	rest := invoiceNo[len(prefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// MaxSequence returns the highest sequence of year among existing, skipping numbers that do not parse.
func MaxSequence(year int, existing []string) int {
	highest := 0
	for _, no := range existing {
		if n, ok := ParseSequence(year, no); ok && n > highest {
			highest = n
		}
	}
	return highest
}

// NextNumber is the number following the highest one of year in existing.
func NextNumber(year int, existing []string) string {
	return FormatNumber(year, MaxSequence(year, existing)+1)
}
