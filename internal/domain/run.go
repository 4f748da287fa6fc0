package domain

import "time"

// ConversionRun is the persisted record of one pipeline invocation.
type ConversionRun struct {
	ID                int                  `json:"id" db:"id"`
	RunID             string               `json:"run_id" db:"run_id"`
	SourceFilename    string               `json:"source_filename" db:"source_filename"`
	RoutingNumber     string               `json:"routing_number" db:"routing_number"`
	AccountNumber     string               `json:"account_number" db:"account_number"`
	Status            ReconciliationStatus `json:"status" db:"status"`
	ErrorCodes        []ErrorCode          `json:"error_codes" db:"error_codes"`
	Warnings          []string             `json:"warnings,omitempty" db:"warnings"`
	TotalCreditsCents int64                `json:"total_credits_cents" db:"total_credits_cents"`
	TotalDebitsCents  int64                `json:"total_debits_cents" db:"total_debits_cents"`
	CreditCount       int                  `json:"credit_count" db:"credit_count"`
	DebitCount        int                  `json:"debit_count" db:"debit_count"`
	DifferenceCents   int64                `json:"difference_cents" db:"difference_cents"`
	OutputFilename    string               `json:"output_filename" db:"output_filename"`
	ErrorFile         bool                 `json:"error_file" db:"error_file"`
	Output            []byte               `json:"-" db:"output"`
	ErrorMessage      *string              `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time            `json:"created_at" db:"created_at"`
}

// RunFilter narrows run listings.
type RunFilter struct {
	Status ReconciliationStatus
	Limit  int
	Offset int
}
