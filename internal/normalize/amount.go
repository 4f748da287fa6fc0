// Package normalize turns loosely formatted statement values into the canonical forms the
// pipeline carries: signed integer cents and YYMMDD dates.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ParseCents converts a money string such as "1,234.56", "$-12.00", "(45.10)" or "1234.5"
// into signed cents. More than two fractional digits are rounded half away from zero.
func ParseCents(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	// Some statements print debits with a trailing minus or a CR/DR suffix.
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "DR"):
		negative = !negative
		s = strings.TrimSpace(s[:len(s)-2])
	case strings.HasSuffix(upper, "CR"):
		s = strings.TrimSpace(s[:len(s)-2])
	case strings.HasSuffix(s, "-") && len(s) > 1:
		negative = !negative
		s = strings.TrimSpace(s[:len(s)-1])
	}

	s = stripCurrency(s)
	if s == "" {
		return 0, fmt.Errorf("%w: %q has no digits", ErrInvalidAmount, raw)
	}

	if s[0] == '-' || s[0] == '+' {
		if s[0] == '-' {
			negative = !negative
		}
		s = s[1:]
		if s == "" || s[0] < '0' || s[0] > '9' {
			return 0, fmt.Errorf("%w: %q has no digit after its sign", ErrInvalidAmount, raw)
		}
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("%w: %q has multiple decimal points", ErrInvalidAmount, raw)
	}
	for _, p := range parts {
		if !allDigits(p) {
			return 0, fmt.Errorf("%w: %q contains unexpected characters", ErrInvalidAmount, raw)
		}
	}

	whole, frac := parts[0], ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q has no digits", ErrInvalidAmount, raw)
	}
	if whole == "" {
		whole = "0"
	}
	for len(frac) < 2 {
		frac += "0"
	}

	d, err := decimal.NewFromString(whole + "." + frac)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return CentsFromDecimal(d)
}

// CentsFromDecimal converts a dollar amount to cents, rounding half away from zero.
func CentsFromDecimal(d decimal.Decimal) (int64, error) {
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, d.String())
	}
	return cents.IntPart(), nil
}

// FormatDollars renders cents as a signed dollar string with two decimals, e.g. "-12.05".
func FormatDollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Abs returns |c|.
func Abs(c int64) int64 {
	if c < 0 {
		return -c
	}
	return c
}

func stripCurrency(s string) string {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "USD") {
		s = s[3:]
	} else if strings.HasSuffix(upper, "USD") {
		s = s[:len(s)-3]
	}

	var b strings.Builder
	for _, r := range s {
		switch r {
		case '$', ',', ' ', '\t', '\u00a0':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
