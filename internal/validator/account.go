package validator

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minAccountLength = 4
	maxAccountLength = 32
)

// Words that text scraping tends to pick up next to the real account number.
var accountStopList = map[string]bool{
	"account": true,
	"number":  true,
	"balance": true,
}

// NormalizeAccountNumber strips all whitespace from an account number.
func NormalizeAccountNumber(acct string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, acct)
}

// ValidateAccountNumber rejects missing, masked and implausible account numbers.
func ValidateAccountNumber(acct string) error {
	a := NormalizeAccountNumber(acct)
	if a == "" {
		return fmt.Errorf("%w: missing", ErrInvalidAccount)
	}
	if IsMasked(a) {
		return fmt.Errorf("%w: %q is masked", ErrInvalidAccount, a)
	}
	if accountStopList[strings.ToLower(a)] {
		return fmt.Errorf("%w: %q is not an account number", ErrInvalidAccount, a)
	}
	if len(a) < minAccountLength || len(a) > maxAccountLength {
		return fmt.Errorf("%w: length %d outside %d..%d", ErrInvalidAccount, len(a), minAccountLength, maxAccountLength)
	}
	for _, r := range a {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidAccount, a, r)
		}
	}
	return nil
}

// IsMasked reports whether s hides digits behind '*' or a run of three or more X.
func IsMasked(s string) bool {
	if strings.ContainsRune(s, '*') {
		return true
	}
	return strings.Contains(strings.ToUpper(s), "XXX")
}
