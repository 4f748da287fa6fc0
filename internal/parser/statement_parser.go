package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"bai2-engine/internal/domain"
	"bai2-engine/internal/normalize"
	"bai2-engine/internal/validator"
	"bai2-engine/pkg/logger"
)

// StatementParser decodes the loosely typed statement JSON produced by upstream extraction.
type StatementParser struct {
	pivot int
	now   func() time.Time
}

func NewStatementParser(pivot int) *StatementParser {
	return &StatementParser{pivot: pivot, now: time.Now}
}

// WithClock overrides the clock used to infer years for dates without one.
func (p *StatementParser) WithClock(now func() time.Time) *StatementParser {
	p.now = now
	return p
}

type rawPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type rawStatement struct {
	AccountNumber    json.RawMessage   `json:"account_number"`
	RoutingNumber    json.RawMessage   `json:"routing_number"`
	BankName         string            `json:"bank_name"`
	OpeningBalance   json.RawMessage   `json:"opening_balance"`
	ClosingBalance   json.RawMessage   `json:"closing_balance"`
	Transactions     []json.RawMessage `json:"transactions"`
	Period           *rawPeriod        `json:"statement_period"`
	SourceFilename   string            `json:"source_filename"`
	OpeningAvailable json.RawMessage   `json:"opening_available"`
	ClosingAvailable json.RawMessage   `json:"closing_available"`
	OneDayFloat      json.RawMessage   `json:"one_day_float"`
	TwoDayFloat      json.RawMessage   `json:"two_day_float"`
}

// Parse reads one statement document from r.
func (p *StatementParser) Parse(r io.Reader) (*domain.Statement, error) {
	var raw rawStatement
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode statement: %w", err)
	}

	dc := normalize.DateContext{Pivot: p.pivot, Today: p.now()}
	stmt := &domain.Statement{
		AccountNumber:  flexString(raw.AccountNumber),
		RoutingNumber:  routingString(raw.RoutingNumber),
		BankName:       strings.TrimSpace(raw.BankName),
		SourceFilename: strings.TrimSpace(raw.SourceFilename),
	}

	if raw.Period != nil {
		period := &domain.Period{}
		if t, err := normalize.ParseDate(raw.Period.StartDate, dc); err == nil {
			period.StartDate = normalize.FormatYYMMDD(t)
			dc.PeriodStart = t
		}
		if t, err := normalize.ParseDate(raw.Period.EndDate, dc); err == nil {
			period.EndDate = normalize.FormatYYMMDD(t)
			dc.PeriodEnd = t
		}
		if period.StartDate != "" || period.EndDate != "" {
			stmt.Period = period
		}
	}

	stmt.OpeningBalance = p.balance("opening_balance", raw.OpeningBalance, dc)
	stmt.ClosingBalance = p.balance("closing_balance", raw.ClosingBalance, dc)
	stmt.OpeningAvailable = optionalCents("opening_available", raw.OpeningAvailable)
	stmt.ClosingAvailable = optionalCents("closing_available", raw.ClosingAvailable)
	stmt.OneDayFloat = optionalCents("one_day_float", raw.OneDayFloat)
	stmt.TwoDayFloat = optionalCents("two_day_float", raw.TwoDayFloat)

	res := validator.SanitizeTransactions(raw.Transactions, dc)
	stmt.Transactions = res.Transactions
	stmt.DroppedTransactions = res.Dropped

	if res.Dropped > 0 || res.Dateless > 0 {
		logger.GetLogger().WithFields(map[string]interface{}{
			"source":   stmt.SourceFilename,
			"dropped":  res.Dropped,
			"dateless": res.Dateless,
		}).Warn("Statement contained unusable transaction records")
	}

	return stmt, nil
}

// ParseBytes is Parse over an in-memory document.
func (p *StatementParser) ParseBytes(data []byte) (*domain.Statement, error) {
	return p.Parse(bytes.NewReader(data))
}

// balance accepts {"amount": ..., "date": ...}, a bare amount, or null.
// An unreadable amount leaves the balance unknown.
func (p *StatementParser) balance(field string, raw json.RawMessage, dc normalize.DateContext) *domain.Balance {
	v, ok := decodeValue(raw)
	if !ok {
		return nil
	}

	var amountValue, dateValue interface{}
	if obj, isObj := v.(map[string]interface{}); isObj {
		amountValue, dateValue = obj["amount"], obj["date"]
	} else {
		amountValue = v
	}
	if amountValue == nil {
		return nil
	}

	cents, err := validator.AmountCents(amountValue)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("field", field).Warn("Ignoring unreadable balance")
		return nil
	}

	b := &domain.Balance{Amount: cents}
	if s, isString := dateValue.(string); isString {
		if d, err := normalize.NormalizeDate(s, dc); err == nil {
			b.Date = d
		}
	}
	return b
}

func optionalCents(field string, raw json.RawMessage) *int64 {
	v, ok := decodeValue(raw)
	if !ok {
		return nil
	}
	cents, err := validator.AmountCents(v)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("field", field).Warn("Ignoring unreadable amount")
		return nil
	}
	return &cents
}

func decodeValue(raw json.RawMessage) (interface{}, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false
	}
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// flexString accepts a JSON string or number.
func flexString(raw json.RawMessage) string {
	v, ok := decodeValue(raw)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	}
	return ""
}

// routingString is flexString that restores the leading zeros a numeric routing number loses.
func routingString(raw json.RawMessage) string {
	v, ok := decodeValue(raw)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		n := s.String()
		if len(n) < 9 && strings.Trim(n, "0123456789") == "" {
			n = strings.Repeat("0", 9-len(n)) + n
		}
		return n
	}
	return ""
}
