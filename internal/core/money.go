// Package core provides amount parsing and rounding utilities.
//
// Amounts are kept as float64 in records; parsing and rounding go through
// decimal arithmetic so that 0.5 always rounds away from zero.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied non-negative amount to a float.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Blank input yields (0, false, nil) so callers can keep a previous value.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, true, nil
//	ParseAmount("")      -> 0, false, nil
//	ParseAmount("abc")   -> 0, false, ErrInvalidAmount
func ParseAmount(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, false, fmt.Errorf("%w: %q must not be negative", ErrInvalidAmount, s)
	}
	return d.InexactFloat64(), true, nil
}

// Round2 rounds a currency value to two decimals.
func Round2(v float64) float64 {
	return roundTo(v, 2)
}

// Round1 rounds a percentage to one decimal.
func Round1(v float64) float64 {
	return roundTo(v, 1)
}

func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatAmount renders an amount with two decimals for forms and sheets.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
