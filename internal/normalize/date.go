package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

// DefaultPivot splits two-digit years: below it is 20YY, at or above it is 19YY.
const DefaultPivot = 50

// DateContext supplies what NormalizeDate needs for two-digit and missing years.
type DateContext struct {
	Pivot       int // zero means DefaultPivot
	PeriodStart time.Time
	PeriodEnd   time.Time
	// Today is used when the year cannot be taken from the period. Zero means time.Now().
	Today time.Time
}

var (
	reISO       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	reCompact8  = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	reCompact6  = regexp.MustCompile(`^(\d{2})(\d{2})(\d{2})$`)
	reMDY4      = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	reMDY2      = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2})$`)
	reMonthDay  = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})$`)
	whitespaces = regexp.MustCompile(`\s+`)
)

// NormalizeDate converts MM/DD, MM/DD/YY, MM/DD/YYYY, YYYY-MM-DD, YYYYMMDD or YYMMDD input
// into the six-character YYMMDD form.
func NormalizeDate(raw string, dc DateContext) (string, error) {
	t, err := ParseDate(raw, dc)
	if err != nil {
		return "", err
	}
	return FormatYYMMDD(t), nil
}

// ParseDate is NormalizeDate returning the calendar date instead of its YYMMDD rendering.
func ParseDate(raw string, dc DateContext) (time.Time, error) {
	s := whitespaces.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	pivot := dc.Pivot
	if pivot <= 0 {
		pivot = DefaultPivot
	}

	var year, month, day int
	switch {
	case reISO.MatchString(s):
		m := reISO.FindStringSubmatch(s)
		year, month, day = atoi(m[1]), atoi(m[2]), atoi(m[3])
	case reCompact8.MatchString(s):
		m := reCompact8.FindStringSubmatch(s)
		year, month, day = atoi(m[1]), atoi(m[2]), atoi(m[3])
	case reCompact6.MatchString(s):
		m := reCompact6.FindStringSubmatch(s)
		year, month, day = ExpandYear(atoi(m[1]), pivot), atoi(m[2]), atoi(m[3])
	case reMDY4.MatchString(s):
		m := reMDY4.FindStringSubmatch(s)
		month, day, year = atoi(m[1]), atoi(m[2]), atoi(m[3])
	case reMDY2.MatchString(s):
		m := reMDY2.FindStringSubmatch(s)
		month, day, year = atoi(m[1]), atoi(m[2]), ExpandYear(atoi(m[3]), pivot)
	case reMonthDay.MatchString(s):
		m := reMonthDay.FindStringSubmatch(s)
		month, day = atoi(m[1]), atoi(m[2])
		year = inferYear(month, dc)
	default:
		return time.Time{}, fmt.Errorf("%w: unrecognised format %q", ErrInvalidDate, raw)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDate, raw)
	}
	return t, nil
}

// ExpandYear maps a two-digit year onto a century using pivot.
func ExpandYear(yy, pivot int) int {
	if yy >= pivot {
		return 1900 + yy
	}
	return 2000 + yy
}

// ParseYYMMDD reads a canonical date back into a calendar date.
func ParseYYMMDD(s string, pivot int) (time.Time, error) {
	if !reCompact6.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q is not YYMMDD", ErrInvalidDate, s)
	}
	return ParseDate(s, DateContext{Pivot: pivot})
}

// FormatYYMMDD renders t as YYMMDD.
func FormatYYMMDD(t time.Time) string {
	return t.Format("060102")
}

// DateKey returns YYYYMMDD as an integer so YYMMDD values sort across centuries.
// Malformed input yields -1.
func DateKey(yymmdd string, pivot int) int {
	t, err := ParseYYMMDD(yymmdd, pivot)
	if err != nil {
		return -1
	}
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// inferYear places a month inside the statement period. Statements never contain future dates,
// so a month later than the period's end month belongs to the previous year.
func inferYear(month int, dc DateContext) int {
	switch {
	case !dc.PeriodEnd.IsZero():
		if month > int(dc.PeriodEnd.Month()) {
			return dc.PeriodEnd.Year() - 1
		}
		return dc.PeriodEnd.Year()
	case !dc.PeriodStart.IsZero():
		if month < int(dc.PeriodStart.Month()) {
			return dc.PeriodStart.Year() + 1
		}
		return dc.PeriodStart.Year()
	}
	today := dc.Today
	if today.IsZero() {
		today = time.Now()
	}
	return today.Year()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
