package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bai2-engine/internal/domain"
	"bai2-engine/internal/normalize"
)

// SanitizeResult is the outcome of filtering a raw transaction list.
type SanitizeResult struct {
	Transactions []domain.Transaction
	Dropped      int
	// Dateless counts kept records whose date could not be read.
	Dateless int
}

// SanitizeTransactions keeps the elements of raw that are objects carrying both an amount and a
// date key, converting them to transactions. Scalars, nulls, arrays, objects missing either key
// and objects whose amount cannot be read are dropped and counted. An unreadable date keeps the
// record with an empty date.
func SanitizeTransactions(raw []json.RawMessage, dc normalize.DateContext) SanitizeResult {
	res := SanitizeResult{Transactions: make([]domain.Transaction, 0, len(raw))}
	for _, elem := range raw {
		tx, dateless, err := toTransaction(elem, dc)
		if err != nil {
			res.Dropped++
			continue
		}
		if dateless {
			res.Dateless++
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res
}

func toTransaction(elem json.RawMessage, dc normalize.DateContext) (domain.Transaction, bool, error) {
	trimmed := bytes.TrimSpace(elem)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.Transaction{}, false, fmt.Errorf("not a record")
	}

	var fields map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return domain.Transaction{}, false, err
	}

	rawAmount, hasAmount := fields["amount"]
	rawDate, hasDate := fields["date"]
	if !hasAmount || !hasDate {
		return domain.Transaction{}, false, fmt.Errorf("record lacks amount or date")
	}

	amount, err := AmountCents(rawAmount)
	if err != nil {
		return domain.Transaction{}, false, err
	}

	tx := domain.Transaction{
		Amount:          amount,
		Description:     stringField(fields, "description"),
		ReferenceNumber: stringField(fields, "reference_number"),
		BankReference:   stringField(fields, "bank_reference"),
		TypeHint:        domain.ParseTypeHint(strings.ToLower(stringField(fields, "type_hint"))),
	}

	dateless := true
	if s, ok := rawDate.(string); ok {
		if d, err := normalize.NormalizeDate(s, dc); err == nil {
			tx.Date = d
			dateless = false
		}
	}
	return tx, dateless, nil
}

// AmountCents reads a decoded JSON amount (json.Number, float64 or string) as signed cents.
func AmountCents(v interface{}) (int64, error) {
	switch a := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(a.String())
		if err != nil {
			return 0, fmt.Errorf("%w: %q", normalize.ErrInvalidAmount, a.String())
		}
		return normalize.CentsFromDecimal(d)
	case float64:
		return normalize.CentsFromDecimal(decimal.NewFromFloat(a))
	case string:
		return normalize.ParseCents(a)
	}
	return 0, fmt.Errorf("%w: unsupported type %T", normalize.ErrInvalidAmount, v)
}

func stringField(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	}
	return ""
}
