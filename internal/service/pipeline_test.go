package service

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bai2-engine/internal/bai2"
	"bai2-engine/internal/config"
	"bai2-engine/internal/domain"
)

var fixedNow = time.Date(2024, time.March, 8, 9, 30, 0, 0, time.UTC)

func fixedRun() bai2.RunContext {
	return bai2.RunContext{Now: fixedNow, Sequence: bai2.NewSequence(1)}
}

func dollars(d int64) int64 { return d * 100 }

var s1Amounts = []int64{13707, 32510, 133474, 213548, -18500, -6900, -9200, -33360, -34319, -55000, -71234, -83460}

func statementWith(date string, amounts []int64) *domain.Statement {
	txs := make([]domain.Transaction, len(amounts))
	for i, a := range amounts {
		desc := "COMMERCIAL DEPOSIT"
		if a < 0 {
			desc = "ACH DEBIT VENDOR"
		}
		txs[i] = domain.Transaction{Date: date, Amount: dollars(a), Description: desc}
	}
	return &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: dollars(1186062)},
		ClosingBalance: &domain.Balance{Amount: dollars(1267328)},
		Transactions:   txs,
	}
}

func parsed(t *testing.T, out []byte) *bai2.File {
	t.Helper()
	f, err := bai2.Parse(out)
	require.NoError(t, err)
	require.NoError(t, bai2.Verify(f))
	return f
}

func lines(out []byte) []string {
	return strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
}

func findLine(out []byte, prefix string) string {
	for _, l := range lines(out) {
		if strings.HasPrefix(l, prefix) {
			return l
		}
	}
	return ""
}

func recordsBetween(f *bai2.File, from, to bai2.RecordType) int {
	start := -1
	for i, r := range f.Records {
		if r.Type() == from && start < 0 {
			start = i
		}
		if r.Type() == to && start >= 0 {
			return i - start + 1
		}
	}
	return -1
}

func TestPipeline_SingleDayHappyPath(t *testing.T) {
	p := NewPipeline(config.DefaultBAI2())
	out := p.Run(statementWith("240307", s1Amounts), fixedRun())

	require.False(t, out.IsErrorFile(), "unexpected error file: %v", out.Err)
	assert.Equal(t, domain.StatusComplete, out.Result.Status)
	assert.Empty(t, out.Result.Codes())

	f := parsed(t, out.Output)
	assert.Equal(t, 1, f.Count(bai2.TypeGroupHeader))
	assert.Equal(t, 1, f.Count(bai2.TypeGroupTrailer))
	assert.Equal(t, 12, f.Count(bai2.TypeDetail))
	assert.Equal(t, "88,100,39323900,4,Z/", findLine(out.Output, "88,100,"))
	assert.Equal(t, "88,400,31197300,8,Z/", findLine(out.Output, "88,400,"))

	accountRecords := recordsBetween(f, bai2.TypeAccountIdent, bai2.TypeAccountTrailer)
	trailer := findLine(out.Output, "49,")
	assert.True(t, strings.HasSuffix(trailer, ","+strconv.Itoa(accountRecords)+"/"), trailer)
	assert.Equal(t, 1+9+12+1, accountRecords)
}

func TestPipeline_DeclaredClosingMismatchStillAssembles(t *testing.T) {
	stmt := statementWith("240307", s1Amounts)
	stmt.ClosingBalance = &domain.Balance{Amount: dollars(1498035)}

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())

	require.False(t, out.IsErrorFile())
	assert.Equal(t, domain.StatusFailed, out.Result.Status)
	assert.True(t, out.Result.HasCode(domain.CodeBalanceMismatch))
	// The emitted closing is the running total, not the declared figure.
	assert.Equal(t, "88,015,126732800,,Z/", findLine(out.Output, "88,015,"))
	parsed(t, out.Output)
}

func TestPipeline_MissingOpening(t *testing.T) {
	stmt := statementWith("240307", s1Amounts)
	stmt.OpeningBalance = nil

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())

	require.False(t, out.IsErrorFile())
	assert.Equal(t, domain.StatusPartial, out.Result.Status)
	assert.True(t, out.Result.HasCode(domain.CodeOpeningUnknown))
	assert.Equal(t, "03,2375133,,010,,,Z/", findLine(out.Output, "03,"))
	assert.Equal(t, "88,015,126732800,,Z/", findLine(out.Output, "88,015,"))
	parsed(t, out.Output)
}

func TestPipeline_SuspiciousOpening(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: 1720608},
		Transactions: []domain.Transaction{
			{Date: "240307", Amount: 1000000, Description: "DEPOSIT"},
			{Date: "240307", Amount: 720608, Description: "DEPOSIT"},
		},
	}

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())

	require.False(t, out.IsErrorFile())
	assert.True(t, out.Result.HasCode(domain.CodeOpeningSuspicious))
	assert.False(t, out.Result.OpeningBalanceKnown)
	assert.Equal(t, "03,2375133,,010,,,Z/", findLine(out.Output, "03,"))
	parsed(t, out.Output)
}

func TestPipeline_MultiDayContinuity(t *testing.T) {
	day1 := statementWith("240307", s1Amounts)
	day2 := statementWith("240308", []int64{5000, -1200})
	stmt := day1
	stmt.Transactions = append(stmt.Transactions, day2.Transactions...)
	stmt.ClosingBalance = &domain.Balance{Amount: dollars(1267328 + 5000 - 1200)}

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())

	require.False(t, out.IsErrorFile())
	assert.Equal(t, domain.StatusComplete, out.Result.Status)

	var openings []string
	for _, l := range lines(out.Output) {
		if strings.HasPrefix(l, "03,") {
			openings = append(openings, l)
		}
	}
	require.Len(t, openings, 2)
	assert.Equal(t, "03,2375133,,010,118606200,,Z/", openings[0])
	assert.Equal(t, "03,2375133,,010,126732800,,Z/", openings[1])
	assert.Equal(t, 2, parsed(t, out.Output).Count(bai2.TypeGroupHeader))
}

func TestPipeline_MaskedAccount(t *testing.T) {
	stmt := statementWith("240307", s1Amounts)
	stmt.AccountNumber = "*5594"

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())

	require.True(t, out.IsErrorFile())
	assert.Equal(t, domain.ErrNoAccount, out.ErrorCode)
	assert.Equal(t, domain.StatusError, out.Result.Status)
	assert.Contains(t, lines(out.Output), "88,999,ERROR_NO_ACCOUNT,,Z/")
	assert.Equal(t, []string{"49,0,3/", "98,0,1,5/", "99,0,1,7/"}, lines(out.Output)[4:])
}

func TestPipeline_MaskedAccountsAlwaysProduceNoAccountFiles(t *testing.T) {
	p := NewPipeline(config.DefaultBAI2())
	masks := []string{"*", "XXX", "xxx", "XXXX"}
	tails := []string{"", "1234", "99-1"}
	for _, mask := range masks {
		for _, head := range tails {
			for _, tail := range tails {
				stmt := statementWith("240307", s1Amounts)
				stmt.AccountNumber = head + mask + tail
				out := p.Run(stmt, fixedRun())
				assert.Equal(t, domain.ErrNoAccount, out.ErrorCode, stmt.AccountNumber)
				assert.Equal(t, domain.ErrNoAccount, parsed(t, out.Output).DiagnosticCode())
			}
		}
	}
}

func TestPipeline_InvalidRouting(t *testing.T) {
	stmt := statementWith("240307", s1Amounts)
	stmt.RoutingNumber = "123456789"

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())

	require.True(t, out.IsErrorFile())
	assert.Equal(t, domain.ErrNoRouting, out.ErrorCode)
	f := parsed(t, out.Output)
	assert.Zero(t, f.Count(bai2.TypeDetail))
	assert.Equal(t, domain.ErrNoRouting, f.DiagnosticCode())
}

func TestPipeline_RoutingCheckedBeforeAccount(t *testing.T) {
	stmt := statementWith("240307", s1Amounts)
	stmt.RoutingNumber = ""
	stmt.AccountNumber = ""

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())
	assert.Equal(t, domain.ErrNoRouting, out.ErrorCode)
}

func TestPipeline_EmptyStatement(t *testing.T) {
	stmt := &domain.Statement{RoutingNumber: "083000564", AccountNumber: "2375133"}

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())
	assert.Equal(t, domain.ErrParsingFailed, out.ErrorCode)

	out = NewPipeline(config.DefaultBAI2()).Run(nil, fixedRun())
	assert.Equal(t, domain.ErrParsingFailed, out.ErrorCode)
}

func TestPipeline_BalancesWithoutTransactionsAssemble(t *testing.T) {
	stmt := &domain.Statement{
		RoutingNumber:  "083000564",
		AccountNumber:  "2375133",
		OpeningBalance: &domain.Balance{Amount: 5000, Date: "240307"},
		ClosingBalance: &domain.Balance{Amount: 5000, Date: "240307"},
	}

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())

	require.False(t, out.IsErrorFile(), "unexpected error file: %v", out.Err)
	assert.Equal(t, domain.StatusComplete, out.Result.Status)
	assert.Zero(t, parsed(t, out.Output).Count(bai2.TypeDetail))
}

func TestPipeline_AssemblyFailureBecomesProcessingError(t *testing.T) {
	cfg := config.DefaultBAI2()
	// A credit-family fallback for debits breaks the sign/family rule on the first unmatched debit.
	cfg.DefaultDebitCode = "301"
	stmt := statementWith("240307", []int64{100, -50})
	stmt.Transactions[1].Description = "MISC"
	stmt.ClosingBalance = &domain.Balance{Amount: dollars(1186062 + 50)}

	out := NewPipeline(cfg).Run(stmt, fixedRun())

	require.True(t, out.IsErrorFile())
	assert.Equal(t, domain.ErrProcessingFailed, out.ErrorCode)
	assert.Equal(t, domain.StatusError, out.Result.Status)
	assert.Error(t, out.Err)
	// Reconciliation figures survive for logging.
	assert.Equal(t, 1, out.Result.DebitCount)
	assert.Equal(t, domain.ErrProcessingFailed, parsed(t, out.Output).DiagnosticCode())
}

func TestPipeline_Deterministic(t *testing.T) {
	p := NewPipeline(config.DefaultBAI2())
	a := p.Run(statementWith("240307", s1Amounts), fixedRun())
	b := p.Run(statementWith("240307", s1Amounts), fixedRun())
	assert.Equal(t, a.Output, b.Output)
}

func TestPipeline_LeavesCallerStatementUntouched(t *testing.T) {
	stmt := statementWith("240307", s1Amounts)
	stmt.AccountNumber = " 2375 133 "

	out := NewPipeline(config.DefaultBAI2()).Run(stmt, fixedRun())

	require.False(t, out.IsErrorFile())
	assert.Equal(t, " 2375 133 ", stmt.AccountNumber)
	assert.Equal(t, "03,2375133,,010,118606200,,Z/", findLine(out.Output, "03,"))
}

func TestPipeline_CRLF(t *testing.T) {
	cfg := config.DefaultBAI2()
	cfg.LineEnding = "crlf"

	out := NewPipeline(cfg).Run(statementWith("240307", s1Amounts), fixedRun())

	require.False(t, out.IsErrorFile())
	assert.Equal(t, strings.Count(string(out.Output), "\n"), strings.Count(string(out.Output), "\r\n"))
	parsed(t, out.Output)
}
