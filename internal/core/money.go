// Package core provides the ledger domain types and amount parsing.
//
// Amounts are carried as decimals so that per-date sums across institutions
// stay exact; analytics convert to float64 only after aggregation.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a decimal amount.
//
// It accepts dot (1234.56) and comma (1234,56) decimal separators. When both
// appear, the rightmost one is the decimal separator and the other is treated
// as a thousands separator (1.234,56 and 1,234.56 both parse as 1234.56).
// A leading currency symbol "R$" and surrounding spaces are ignored. Negative
// balances are allowed.
//
// Examples:
//
//	ParseAmount("1000")      -> 1000
//	ParseAmount("1.234,56")  -> 1234.56
//	ParseAmount("R$ -12,5")  -> -12.5
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	sign := ""
	if s[0] == '-' || s[0] == '+' {
		if s[0] == '-' {
			sign = "-"
		}
		s = strings.TrimSpace(s[1:])
	}
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}

	if strings.Count(s, ".") > 1 || strings.Trim(s, ".") == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(sign + s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
