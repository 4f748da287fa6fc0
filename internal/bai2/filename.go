package bai2

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"bai2-engine/internal/domain"
	"bai2-engine/internal/normalize"
)

const maxDerivedTagLength = 12

// OutputFilename names an output file <BANK_TAG>_<YYYYMMDD>_<SEQ>.bai.
// The tag comes from tags keyed by routing number, then from the bank name, then from the
// routing number itself. The date is the latest statement date, or now when the statement has none.
func OutputFilename(stmt *domain.Statement, tags map[string]string, now time.Time, seq int, pivot int) string {
	date := now
	latest := stmt.LatestDate(func(d string) int { return normalize.DateKey(d, pivot) })
	if t, err := normalize.ParseYYMMDD(latest, pivot); err == nil {
		date = t
	}
	return fmt.Sprintf("%s_%s_%03d.bai", BankTag(stmt, tags), date.Format("20060102"), seq)
}

// BankTag returns the short identifier used in output filenames.
func BankTag(stmt *domain.Statement, tags map[string]string) string {
	if tag, ok := tags[stmt.RoutingNumber]; ok && tag != "" {
		return tag
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(stmt.BankName) {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
		if b.Len() == maxDerivedTagLength {
			break
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	if stmt.RoutingNumber != "" {
		return "RTN" + stmt.RoutingNumber
	}
	return "UNKNOWN"
}
