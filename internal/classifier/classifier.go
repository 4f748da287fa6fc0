// Package classifier maps a transaction's hint and description onto a BAI2 detail type code.
package classifier

import (
	"regexp"

	"bai2-engine/internal/domain"
)

// Family is the side of the ledger a type code reports.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyCredit
	FamilyDebit
)

func (f Family) String() string {
	switch f {
	case FamilyCredit:
		return "credit"
	case FamilyDebit:
		return "debit"
	}
	return "unknown"
}

// FamilyOf derives the family from a detail type code: 100-399 are credits, 400-699 debits.
func FamilyOf(code string) Family {
	if len(code) != 3 || code[1] < '0' || code[1] > '9' || code[2] < '0' || code[2] > '9' {
		return FamilyUnknown
	}
	switch code[0] {
	case '1', '2', '3':
		return FamilyCredit
	case '4', '5', '6':
		return FamilyDebit
	}
	return FamilyUnknown
}

// FamilyForAmount returns the family a signed amount belongs to. Zero is a credit.
func FamilyForAmount(amount int64) Family {
	if amount < 0 {
		return FamilyDebit
	}
	return FamilyCredit
}

// Rule assigns Code when the hint is one of Hints or the description matches Pattern.
type Rule struct {
	Code    string
	Family  Family
	Hints   []domain.TypeHint
	Pattern *regexp.Regexp
}

func (r Rule) matches(tx domain.Transaction) bool {
	for _, h := range r.Hints {
		if tx.TypeHint == h {
			return true
		}
	}
	return r.Pattern != nil && r.Pattern.MatchString(tx.Description)
}

// DefaultRules is the ordered rule table. The first rule of the amount's family wins.
var DefaultRules = []Rule{
	{Code: "555", Family: FamilyDebit, Hints: []domain.TypeHint{domain.HintReturn},
		Pattern: regexp.MustCompile(`(?i)\breturned\b|\bnsf\b|\breturn item\b`)},
	{Code: "557", Family: FamilyDebit,
		Pattern: regexp.MustCompile(`(?i)\bstop payment\b`)},
	{Code: "455", Family: FamilyDebit, Hints: []domain.TypeHint{domain.HintFee},
		Pattern: regexp.MustCompile(`(?i)\bservice charge\b|\bfee\b`)},
	{Code: "451", Family: FamilyDebit, Hints: []domain.TypeHint{domain.HintACHDebit},
		Pattern: regexp.MustCompile(`(?i)\bach debit\b|\bconc debit\b`)},
	{Code: "452", Family: FamilyDebit,
		Pattern: regexp.MustCompile(`(?i)\bwire\b.*\b(debit|out|outgoing)\b`)},
	{Code: "453", Family: FamilyDebit, Hints: []domain.TypeHint{domain.HintCheck},
		Pattern: regexp.MustCompile(`(?i)\bcheck paid\b|\b(check|chk|ck)\s*#?\s*\d+`)},
	{Code: "454", Family: FamilyDebit,
		Pattern: regexp.MustCompile(`(?i)\batm withdrawal\b`)},

	{Code: "301", Family: FamilyCredit, Hints: []domain.TypeHint{domain.HintDeposit},
		Pattern: regexp.MustCompile(`(?i)\bdeposit\b`)},
	{Code: "307", Family: FamilyCredit, Hints: []domain.TypeHint{domain.HintACHCredit},
		Pattern: regexp.MustCompile(`(?i)\bach credit\b`)},
	{Code: "306", Family: FamilyCredit,
		Pattern: regexp.MustCompile(`(?i)\bwire\b.*\b(credit|in|incoming)\b`)},
	{Code: "308", Family: FamilyCredit, Hints: []domain.TypeHint{domain.HintInterest},
		Pattern: regexp.MustCompile(`(?i)\binterest\b`)},
}

// Classifier is pure: the same transaction always yields the same code.
type Classifier struct {
	rules             []Rule
	defaultCreditCode string
	defaultDebitCode  string
}

func NewClassifier(defaultCreditCode, defaultDebitCode string) *Classifier {
	return NewClassifierWithRules(DefaultRules, defaultCreditCode, defaultDebitCode)
}

func NewClassifierWithRules(rules []Rule, defaultCreditCode, defaultDebitCode string) *Classifier {
	if defaultCreditCode == "" {
		defaultCreditCode = "301"
	}
	if defaultDebitCode == "" {
		defaultDebitCode = "451"
	}
	return &Classifier{
		rules:             rules,
		defaultCreditCode: defaultCreditCode,
		defaultDebitCode:  defaultDebitCode,
	}
}

// Classify returns the type code for tx. It never looks at rules of the opposite family, so
// a correctly configured classifier always agrees with the sign of the amount.
func (c *Classifier) Classify(tx domain.Transaction) string {
	family := FamilyForAmount(tx.Amount)
	for _, r := range c.rules {
		if r.Family == family && r.matches(tx) {
			return r.Code
		}
	}
	if family == FamilyDebit {
		return c.defaultDebitCode
	}
	return c.defaultCreditCode
}
