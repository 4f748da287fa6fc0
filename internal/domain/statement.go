package domain

// Balance is a money amount in signed cents with an optional YYMMDD date.
type Balance struct {
	Amount int64  `json:"amount"`
	Date   string `json:"date,omitempty"`
}

// Period is the statement period, both ends YYMMDD.
type Period struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Statement is the parsed input bundle handed to the pipeline.
type Statement struct {
	AccountNumber  string        `json:"account_number"`
	RoutingNumber  string        `json:"routing_number"`
	BankName       string        `json:"bank_name,omitempty"`
	OpeningBalance *Balance      `json:"opening_balance,omitempty"`
	ClosingBalance *Balance      `json:"closing_balance,omitempty"`
	Transactions   []Transaction `json:"transactions"`
	Period         *Period       `json:"statement_period,omitempty"`
	SourceFilename string        `json:"source_filename,omitempty"`

	// Optional availability figures. Nil means "not separately reported".
	OpeningAvailable *int64 `json:"opening_available,omitempty"`
	ClosingAvailable *int64 `json:"closing_available,omitempty"`
	OneDayFloat      *int64 `json:"one_day_float,omitempty"`
	TwoDayFloat      *int64 `json:"two_day_float,omitempty"`

	// DroppedTransactions counts elements discarded by the record sanity check.
	DroppedTransactions int `json:"dropped_transactions,omitempty"`
}

// LatestDate returns the most recent YYMMDD date the statement mentions, using keyFn to order
// dates across centuries. It returns "" when the statement carries no dates at all.
func (s *Statement) LatestDate(keyFn func(string) int) string {
	latest, latestKey := "", -1
	consider := func(d string) {
		if d == "" {
			return
		}
		if k := keyFn(d); k > latestKey {
			latest, latestKey = d, k
		}
	}
	for _, tx := range s.Transactions {
		consider(tx.Date)
	}
	if s.ClosingBalance != nil {
		consider(s.ClosingBalance.Date)
	}
	if s.Period != nil {
		consider(s.Period.EndDate)
	}
	return latest
}
