package domain

import (
	"encoding/json"
	"sort"
)

// ReconciliationStatus orders from best to worst: COMPLETE < PARTIAL < FAILED < ERROR.
type ReconciliationStatus string

const (
	StatusComplete ReconciliationStatus = "COMPLETE"
	StatusPartial  ReconciliationStatus = "PARTIAL"
	StatusFailed   ReconciliationStatus = "FAILED"
	StatusError    ReconciliationStatus = "ERROR"
)

func (s ReconciliationStatus) rank() int {
	switch s {
	case StatusComplete:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusError:
		return 3
	}
	return -1
}

// Worse returns whichever of s and other is the more severe status.
func (s ReconciliationStatus) Worse(other ReconciliationStatus) ReconciliationStatus {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// ErrorCode is a tag from the error taxonomy.
type ErrorCode string

const (
	// Surface codes, written into the 88,999 record of an error file.
	ErrNoRouting        ErrorCode = "ERROR_NO_ROUTING"
	ErrNoAccount        ErrorCode = "ERROR_NO_ACCOUNT"
	ErrParsingFailed    ErrorCode = "ERROR_PARSING_FAILED"
	ErrProcessingFailed ErrorCode = "ERROR_PROCESSING_FAILED"

	// Internal reconciliation codes. They never reach the emitted file.
	CodeOpeningUnknown    ErrorCode = "OB_UNKNOWN"
	CodeClosingUnknown    ErrorCode = "CB_UNKNOWN"
	CodeOpeningSuspicious ErrorCode = "OB_SUSPICIOUS"
	CodeBalanceMismatch   ErrorCode = "BALANCE_MISMATCH"
)

// IsSurface reports whether the code may appear in an emitted error file.
func (c ErrorCode) IsSurface() bool {
	switch c {
	case ErrNoRouting, ErrNoAccount, ErrParsingFailed, ErrProcessingFailed:
		return true
	}
	return false
}

// ReconciliationResult is the diagnosis of one statement.
type ReconciliationResult struct {
	Status              ReconciliationStatus `json:"status"`
	OpeningBalanceKnown bool                 `json:"opening_balance_known"`
	ClosingBalanceKnown bool                 `json:"closing_balance_known"`
	TotalCreditsCents   int64                `json:"total_credits_cents"`
	TotalDebitsCents    int64                `json:"total_debits_cents"`
	CreditCount         int                  `json:"credit_count"`
	DebitCount          int                  `json:"debit_count"`
	// ExpectedClosingCents is opening + credits - debits, when the opening is usable.
	ExpectedClosingCents *int64 `json:"expected_closing_cents,omitempty"`
	// DerivedOpeningCents is closing - credits + debits, computed for diagnostics only.
	DerivedOpeningCents *int64             `json:"derived_opening_cents,omitempty"`
	DifferenceCents     int64              `json:"difference_cents"`
	ErrorCodes          map[ErrorCode]bool `json:"-"`
	Warnings            []string           `json:"warnings"`
}

// NewReconciliationResult returns an empty COMPLETE result ready to be filled in.
func NewReconciliationResult() *ReconciliationResult {
	return &ReconciliationResult{
		Status:     StatusComplete,
		ErrorCodes: make(map[ErrorCode]bool),
		Warnings:   make([]string, 0),
	}
}

// AddCode records an error code.
func (r *ReconciliationResult) AddCode(code ErrorCode) {
	if r.ErrorCodes == nil {
		r.ErrorCodes = make(map[ErrorCode]bool)
	}
	r.ErrorCodes[code] = true
}

// HasCode reports whether code was recorded.
func (r *ReconciliationResult) HasCode(code ErrorCode) bool {
	return r.ErrorCodes[code]
}

// Codes returns the recorded codes in a stable order.
func (r *ReconciliationResult) Codes() []ErrorCode {
	codes := make([]ErrorCode, 0, len(r.ErrorCodes))
	for c := range r.ErrorCodes {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Warn appends a human-readable warning.
func (r *ReconciliationResult) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// MarshalJSON exposes the error codes as a sorted list.
func (r ReconciliationResult) MarshalJSON() ([]byte, error) {
	type alias ReconciliationResult
	return json.Marshal(struct {
		alias
		ErrorCodes []ErrorCode `json:"error_codes"`
	}{
		alias:      alias(r),
		ErrorCodes: r.Codes(),
	})
}
