// Package validator gates statements before reconciliation: routing and account identity
// checks, and the record sanity filter applied to loosely typed transaction lists.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moov-io/ach"
)

var (
	ErrInvalidRouting = errors.New("invalid routing number")
	ErrInvalidAccount = errors.New("invalid account number")
)

// ValidateRoutingNumber checks that rn is nine digits carrying a valid ABA check digit.
func ValidateRoutingNumber(rn string) error {
	rn = strings.TrimSpace(rn)
	if rn == "" {
		return fmt.Errorf("%w: missing", ErrInvalidRouting)
	}
	if len(rn) != 9 || !digitsOnly(rn) {
		return fmt.Errorf("%w: %q is not nine digits", ErrInvalidRouting, rn)
	}
	if rn == "000000000" {
		return fmt.Errorf("%w: all zeros", ErrInvalidRouting)
	}
	if ach.CalculateCheckDigit(rn) != int(rn[8]-'0') {
		return fmt.Errorf("%w: %q fails the ABA checksum", ErrInvalidRouting, rn)
	}
	return nil
}

// ABAChecksum returns (3(d0+d3+d6) + 7(d1+d4+d7) + (d2+d5+d8)) mod 10 for a nine digit string,
// or -1 when rn is not nine digits.
func ABAChecksum(rn string) int {
	if len(rn) != 9 || !digitsOnly(rn) {
		return -1
	}
	weights := [3]int{3, 7, 1}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += weights[i%3] * int(rn[i]-'0')
	}
	return sum % 10
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
