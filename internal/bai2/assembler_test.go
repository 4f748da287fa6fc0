package bai2

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bai2-engine/internal/classifier"
	"bai2-engine/internal/domain"
	"bai2-engine/internal/reconciliation"
)

var fixedNow = time.Date(2024, time.March, 8, 9, 30, 0, 0, time.UTC)

func newTestAssembler() *Assembler {
	return NewAssembler(DefaultOptions(), classifier.NewClassifier("301", "451"))
}

func fixedRun(seq uint64) RunContext {
	return RunContext{Now: fixedNow, Sequence: NewSequence(seq)}
}

func dollars(d int64) int64 { return d * 100 }

// s1Statement is a single-day statement whose balances agree with its transactions.
func s1Statement() *domain.Statement {
	amounts := []int64{13707, 32510, 133474, 213548, -18500, -6900, -9200, -33360, -34319, -55000, -71234, -83460}
	txs := make([]domain.Transaction, len(amounts))
	for i, a := range amounts {
		desc := "COMMERCIAL DEPOSIT"
		if a < 0 {
			desc = "ACH DEBIT VENDOR"
		}
		txs[i] = domain.Transaction{Date: "240307", Amount: dollars(a), Description: desc}
	}
	return &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: dollars(1186062), Date: "240307"},
		ClosingBalance: &domain.Balance{Amount: dollars(1267328), Date: "240307"},
		Transactions:   txs,
	}
}

func build(t *testing.T, a *Assembler, stmt *domain.Statement) (*File, *domain.ReconciliationResult) {
	t.Helper()
	result := reconciliation.NewReconciliationEngine(1).Reconcile(stmt)
	f, err := a.Build(stmt, result, fixedRun(1))
	require.NoError(t, err)
	require.NoError(t, Verify(f))
	return f, result
}

func renderedLines(f *File) []string {
	return strings.Split(strings.TrimSuffix(string(f.Render(LF)), "\n"), "\n")
}

func accountSection(f *File, n int) []Record {
	seen := 0
	for i, r := range f.Records {
		if r.Type() != TypeAccountIdent {
			continue
		}
		if seen == n {
			for j := i; j < len(f.Records); j++ {
				if f.Records[j].Type() == TypeAccountTrailer {
					return f.Records[i : j+1]
				}
			}
		}
		seen++
	}
	return nil
}

func TestAssemble_GoldenOutput(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: 100000},
		ClosingBalance: &domain.Balance{Amount: 110000},
		Transactions: []domain.Transaction{
			{Date: "240307", Amount: 15000, Description: "DEPOSIT", ReferenceNumber: "R1"},
			{Date: "240307", Amount: -5000, Description: "CHECK #101", BankReference: "B9"},
		},
	}
	result := reconciliation.NewReconciliationEngine(1).Reconcile(stmt)

	out, err := newTestAssembler().Assemble(stmt, result, fixedRun(7))
	require.NoError(t, err)

	want := strings.Join([]string{
		"01,083000564,2375133,240308,0930,7,,,2/",
		"02,2375133,083000564,1,240307,,USD,2/",
		"03,2375133,,010,100000,,Z/",
		"88,015,110000,,Z/",
		"88,040,100000,,Z/",
		"88,045,110000,,Z/",
		"88,072,,,Z/",
		"88,074,,,Z/",
		"88,100,15000,1,Z/",
		"88,400,5000,1,Z/",
		"88,075,,,Z/",
		"88,079,,,Z/",
		"16,301,15000,Z,R1,,DEPOSIT,/",
		"16,453,5000,Z,,B9,CHECK #101,/",
		"49,460000,13/",
		"98,460000,1,15/",
		"99,460000,1,17/",
	}, "\n") + "\n"
	assert.Equal(t, want, string(out))
}

func TestBuild_SingleDay(t *testing.T) {
	f, result := build(t, newTestAssembler(), s1Statement())

	assert.Equal(t, domain.StatusComplete, result.Status)
	assert.Equal(t, 1, f.Count(TypeGroupHeader))
	assert.Equal(t, 1, f.Count(TypeGroupTrailer))

	lines := renderedLines(f)
	assert.Contains(t, lines, "88,100,39323900,4,Z/")
	assert.Contains(t, lines, "88,400,31197300,8,Z/")
	assert.Contains(t, lines, "03,2375133,,010,118606200,,Z/")
	assert.Contains(t, lines, "88,015,126732800,,Z/")

	section := accountSection(f, 0)
	require.NotEmpty(t, section)
	trailer := section[len(section)-1].(AccountTrailer)
	assert.Equal(t, len(section), trailer.RecordCount)
	assert.Equal(t, 1+len(SummaryOrder)+12+1, trailer.RecordCount)
}

func TestBuild_BalanceMismatchStillAssembles(t *testing.T) {
	stmt := s1Statement()
	stmt.ClosingBalance.Amount = dollars(1498035)

	f, result := build(t, newTestAssembler(), stmt)

	assert.Equal(t, domain.StatusFailed, result.Status)
	assert.True(t, result.HasCode(domain.CodeBalanceMismatch))
	// the running total is emitted, never the declared closing
	assert.Contains(t, renderedLines(f), "88,015,126732800,,Z/")
}

func TestBuild_OpeningMissing(t *testing.T) {
	stmt := s1Statement()
	stmt.OpeningBalance = nil

	f, result := build(t, newTestAssembler(), stmt)

	assert.Equal(t, domain.StatusPartial, result.Status)
	assert.True(t, result.HasCode(domain.CodeOpeningUnknown))
	lines := renderedLines(f)
	assert.Contains(t, lines, "03,2375133,,010,,,Z/")
	assert.Contains(t, lines, "88,040,,,Z/")
	assert.Contains(t, lines, "88,015,126732800,,Z/")
}

func TestBuild_SuspiciousOpening(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: 1720608},
		ClosingBalance: &domain.Balance{Amount: 2500000},
		Transactions: []domain.Transaction{
			{Date: "240307", Amount: 1000000, Description: "DEPOSIT"},
			{Date: "240307", Amount: 720608, Description: "DEPOSIT"},
		},
	}

	f, result := build(t, newTestAssembler(), stmt)

	assert.True(t, result.HasCode(domain.CodeOpeningSuspicious))
	assert.False(t, result.OpeningBalanceKnown)
	assert.Contains(t, renderedLines(f), "03,2375133,,010,,,Z/")
}

func TestBuild_MultiDayContinuity(t *testing.T) {
	stmt := s1Statement()
	stmt.ClosingBalance = &domain.Balance{Amount: dollars(1267328) + 250000 - 40000, Date: "240308"}
	stmt.Transactions = append(stmt.Transactions,
		domain.Transaction{Date: "240308", Amount: 250000, Description: "ACH CREDIT"},
		domain.Transaction{Date: "240308", Amount: -40000, Description: "SERVICE CHARGE"},
	)

	f, result := build(t, newTestAssembler(), stmt)

	assert.Equal(t, domain.StatusComplete, result.Status)
	assert.Equal(t, 2, f.Count(TypeGroupHeader))

	day1, day2 := accountSection(f, 0), accountSection(f, 1)
	require.NotEmpty(t, day1)
	require.NotEmpty(t, day2)
	assert.Equal(t, Cents(dollars(1186062)), day1[0].(AccountIdentifier).Amount)
	assert.Equal(t, Cents(dollars(1267328)), day1[1].(Continuation).Amount)
	assert.Equal(t, Cents(dollars(1267328)), day2[0].(AccountIdentifier).Amount)
	assert.Equal(t, Cents(dollars(1267328)), day2[2].(Continuation).Amount, "88,040 mirrors the opening ledger")
	assert.Equal(t, Cents(dollars(1267328)+210000), day2[1].(Continuation).Amount)

	groups := groupDates(f)
	assert.Equal(t, []string{"240307", "240308"}, groups)
}

func TestBuild_MultiDayWithDerivedOpening(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		ClosingBalance: &domain.Balance{Amount: 5000},
		Transactions: []domain.Transaction{
			{Date: "240302", Amount: -1000, Description: "ATM WITHDRAWAL"},
			{Date: "240301", Amount: 3000, Description: "DEPOSIT"},
		},
	}

	f, _ := build(t, newTestAssembler(), stmt)

	day1, day2 := accountSection(f, 0), accountSection(f, 1)
	assert.Equal(t, Empty, day1[0].(AccountIdentifier).Amount)
	assert.Equal(t, Empty, day1[2].(Continuation).Amount)
	// derived opening is 5000 - 3000 + 1000 = 3000
	assert.Equal(t, Cents(6000), day1[1].(Continuation).Amount)
	assert.Equal(t, Cents(6000), day2[0].(AccountIdentifier).Amount)
	assert.Equal(t, Cents(5000), day2[1].(Continuation).Amount)
}

func TestBuild_GroupsSortedAndDatelessJoinEarliest(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: 0},
		ClosingBalance: &domain.Balance{Amount: 600},
		Transactions: []domain.Transaction{
			{Date: "000105", Amount: 100},
			{Date: "", Amount: 200, Description: "no date"},
			{Date: "991231", Amount: 300},
			{Date: "garbage", Amount: 0},
		},
	}

	f, _ := build(t, newTestAssembler(), stmt)

	assert.Equal(t, []string{"991231", "000105"}, groupDates(f))
	first := accountSection(f, 0)
	var details []Detail
	for _, r := range first {
		if d, ok := r.(Detail); ok {
			details = append(details, d)
		}
	}
	require.Len(t, details, 3)
	assert.Equal(t, "no date", details[0].Text)
	assert.Equal(t, int64(300), details[1].Amount)
	assert.Equal(t, int64(0), details[2].Amount)
}

func TestBuild_NoTransactions(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: 4200},
		ClosingBalance: &domain.Balance{Amount: 4200, Date: "240229"},
	}

	f, _ := build(t, newTestAssembler(), stmt)

	assert.Equal(t, []string{"240229"}, groupDates(f))
	lines := renderedLines(f)
	assert.Contains(t, lines, "88,100,0,0,Z/")
	assert.Contains(t, lines, "88,400,0,0,Z/")
	assert.Equal(t, 0, f.Count(TypeDetail))
}

func TestBuild_NoDatesAnywhereUsesFileDate(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: 0},
		Transactions:   []domain.Transaction{{Amount: 10}},
	}

	f, _ := build(t, newTestAssembler(), stmt)

	assert.Equal(t, []string{"240308"}, groupDates(f))
}

func TestBuild_AvailableBalancesAndFloats(t *testing.T) {
	oa, ca, one, two := int64(90000), int64(105000), int64(1500), int64(-2500)
	stmt := &domain.Statement{
		RoutingNumber:    "083000564",
		AccountNumber:    "2375133",
		OpeningBalance:   &domain.Balance{Amount: 100000},
		ClosingBalance:   &domain.Balance{Amount: 110000},
		OpeningAvailable: &oa,
		ClosingAvailable: &ca,
		OneDayFloat:      &one,
		TwoDayFloat:      &two,
		Transactions: []domain.Transaction{
			{Date: "240301", Amount: 4000},
			{Date: "240302", Amount: 6000},
		},
	}

	f, _ := build(t, newTestAssembler(), stmt)

	day1, day2 := accountSection(f, 0), accountSection(f, 1)
	assert.Equal(t, Cents(90000), day1[2].(Continuation).Amount)
	assert.Equal(t, Cents(104000), day1[3].(Continuation).Amount)
	assert.Equal(t, Empty, day1[4].(Continuation).Amount)
	assert.Equal(t, Cents(104000), day2[2].(Continuation).Amount)
	assert.Equal(t, Cents(105000), day2[3].(Continuation).Amount)
	assert.Equal(t, Cents(1500), day2[4].(Continuation).Amount)
	assert.Equal(t, Cents(2500), day2[5].(Continuation).Amount)
}

func TestBuild_EmitZeroWhenUnknownDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.EmitEmptyWhenUnknown = false
	a := NewAssembler(opts, classifier.NewClassifier("301", "451"))
	stmt := &domain.Statement{
		RoutingNumber: "083000564",
		AccountNumber: "2375133",
		Transactions:  []domain.Transaction{{Date: "240301", Amount: 4000}},
	}

	f, _ := build(t, a, stmt)

	lines := renderedLines(f)
	assert.Contains(t, lines, "03,2375133,,010,0,,Z/")
	assert.Contains(t, lines, "88,015,0,,Z/")
	assert.Contains(t, lines, "88,075,,,Z/", "placeholders stay empty")
}

func TestBuild_NegativeBalancesAreMagnitudes(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: -5000},
		ClosingBalance: &domain.Balance{Amount: -7000},
		Transactions:   []domain.Transaction{{Date: "240301", Amount: -2000, Description: "FEE"}},
	}

	f, _ := build(t, newTestAssembler(), stmt)

	lines := renderedLines(f)
	assert.Contains(t, lines, "03,2375133,,010,5000,,Z/")
	assert.Contains(t, lines, "88,015,7000,,Z/")
	assert.Contains(t, lines, "16,455,2000,Z,,,FEE,/")
}

func TestBuild_DescriptionSanitizedAndTruncated(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: 0},
		Transactions: []domain.Transaction{{
			Date:            "240301",
			Amount:          100,
			Description:     "  PAYMENT, INV 12/34   FROM\tACME CORPORATION INTERNATIONAL HOLDINGS LLC  ",
			ReferenceNumber: "REF,1/2",
		}},
	}

	f, _ := build(t, newTestAssembler(), stmt)

	var d Detail
	for _, r := range f.Records {
		if dd, ok := r.(Detail); ok {
			d = dd
		}
	}
	assert.Equal(t, "PAYMENT INV 12 34 FROM ACME CORPORATION INTERNATIO", d.Text)
	assert.LessOrEqual(t, len(d.Text), 50)
	assert.Equal(t, "REF 1 2", d.CustomerRef)
}

func TestBuild_SignFamilyMismatchFails(t *testing.T) {
	a := NewAssembler(DefaultOptions(), classifier.NewClassifier("451", "451"))
	stmt := s1Statement()
	stmt.Transactions = []domain.Transaction{{Date: "240307", Amount: 100, Description: "MISC"}}
	result := reconciliation.NewReconciliationEngine(1).Reconcile(stmt)

	_, err := a.Build(stmt, result, fixedRun(1))

	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "sign/family agreement", inv.Invariant)
}

func TestAssemble_Deterministic(t *testing.T) {
	a := newTestAssembler()
	stmt := s1Statement()
	result := reconciliation.NewReconciliationEngine(1).Reconcile(stmt)

	first, err := a.Assemble(stmt, result, fixedRun(42))
	require.NoError(t, err)
	second, err := a.Assemble(stmt, result, fixedRun(42))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAssemble_CRLF(t *testing.T) {
	opts := DefaultOptions()
	opts.LineEnding = CRLF
	a := NewAssembler(opts, classifier.NewClassifier("301", "451"))
	stmt := s1Statement()
	result := reconciliation.NewReconciliationEngine(1).Reconcile(stmt)

	out, err := a.Assemble(stmt, result, fixedRun(1))
	require.NoError(t, err)

	assert.Equal(t, strings.Count(string(out), "\n"), strings.Count(string(out), "\r\n"))
	parsed, err := Parse(out)
	require.NoError(t, err)
	assert.NoError(t, Verify(parsed))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "A B C", SanitizeText(" A,B/C ", 0))
	assert.Equal(t, "CAFE X", SanitizeText("CAFEéX", 0))
	assert.Equal(t, "ABC", SanitizeText("ABC DEF", 4))
	assert.Equal(t, "", SanitizeText(" , / ", 10))
}

func groupDates(f *File) []string {
	var dates []string
	for _, r := range f.Records {
		if g, ok := r.(GroupHeader); ok {
			dates = append(dates, g.AsOfDate)
		}
	}
	return dates
}
