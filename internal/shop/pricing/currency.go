package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencySymbol prefixes every displayed amount.
const CurrencySymbol = "₪"

// Money converts a computed total to a two-decimal amount for display and order payloads.
func Money(amount float64) decimal.Decimal {
	if !finite(amount) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(amount).Round(2)
}

// FormatCurrency renders an amount as "₪12.50".
func FormatCurrency(amount float64) string {
	return CurrencySymbol + Money(amount).StringFixed(2)
}

// ParseCurrency reads an amount previously produced by FormatCurrency.
func ParseCurrency(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, CurrencySymbol, ""))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse currency %q: %w", s, err)
	}
	return d, nil
}
