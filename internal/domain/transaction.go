package domain

// TypeHint is the optional classification the upstream parser attaches to a transaction.
type TypeHint string

const (
	HintNone       TypeHint = ""
	HintDeposit    TypeHint = "deposit"
	HintWithdrawal TypeHint = "withdrawal"
	HintFee        TypeHint = "fee"
	HintCheck      TypeHint = "check"
	HintACHDebit   TypeHint = "ach_debit"
	HintACHCredit  TypeHint = "ach_credit"
	HintReturn     TypeHint = "return"
	HintInterest   TypeHint = "interest"
	HintOther      TypeHint = "other"
)

// ParseTypeHint maps free text onto a known hint. Unknown values become HintOther.
func ParseTypeHint(s string) TypeHint {
	switch TypeHint(s) {
	case HintNone, HintDeposit, HintWithdrawal, HintFee, HintCheck,
		HintACHDebit, HintACHCredit, HintReturn, HintInterest, HintOther:
		return TypeHint(s)
	}
	return HintOther
}

// Transaction is one ledger event on the statement.
// Amount is signed cents: positive credits the customer, negative debits.
type Transaction struct {
	Date            string   `json:"date"` // YYMMDD, empty when the source had no usable date
	Amount          int64    `json:"amount"`
	Description     string   `json:"description"`
	ReferenceNumber string   `json:"reference_number,omitempty"`
	BankReference   string   `json:"bank_reference,omitempty"`
	TypeHint        TypeHint `json:"type_hint,omitempty"`
}

// IsCredit reports whether the transaction belongs to the credit side. Zero counts as credit.
func (t Transaction) IsCredit() bool {
	return t.Amount >= 0
}

// Magnitude returns |Amount|.
func (t Transaction) Magnitude() int64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}
