package bai2

import (
	"sort"
	"strconv"
	"strings"

	"bai2-engine/internal/classifier"
	"bai2-engine/internal/domain"
	"bai2-engine/internal/normalize"
)

const (
	groupStatusUpdate = "1"
	currencyUSD       = "USD"
	fundsSameDay      = "Z"
)

// Options tune the assembler output.
type Options struct {
	FundsType            string
	DescriptionMaxLength int
	EmitEmptyWhenUnknown bool
	DatePivot            int
	LineEnding           LineEnding
}

func DefaultOptions() Options {
	return Options{
		FundsType:            fundsSameDay,
		DescriptionMaxLength: 50,
		EmitEmptyWhenUnknown: true,
		DatePivot:            normalize.DefaultPivot,
		LineEnding:           LF,
	}
}

// Classifier selects the detail type code of a transaction.
type Classifier interface {
	Classify(tx domain.Transaction) string
}

// Assembler turns a reconciled statement into a BAI2 file. It holds no per-run state.
type Assembler struct {
	opts       Options
	classifier Classifier
}

func NewAssembler(opts Options, c Classifier) *Assembler {
	d := DefaultOptions()
	if opts.FundsType == "" {
		opts.FundsType = d.FundsType
	}
	if opts.DescriptionMaxLength <= 0 {
		opts.DescriptionMaxLength = d.DescriptionMaxLength
	}
	if opts.DatePivot <= 0 {
		opts.DatePivot = d.DatePivot
	}
	if opts.LineEnding == "" {
		opts.LineEnding = d.LineEnding
	}
	return &Assembler{opts: opts, classifier: c}
}

// Options returns the effective options.
func (a *Assembler) Options() Options { return a.opts }

// Assemble builds and renders the file for stmt.
func (a *Assembler) Assemble(stmt *domain.Statement, result *domain.ReconciliationResult, rc RunContext) ([]byte, error) {
	f, err := a.Build(stmt, result, rc)
	if err != nil {
		return nil, err
	}
	return f.Render(a.opts.LineEnding), nil
}

type dayGroup struct {
	date string
	txs  []domain.Transaction
}

// Build assembles the record list for stmt. result is read, never modified.
//
// One group is emitted per transaction date in ascending order. The running ledger starts at
// the reported opening, or at the opening derived from the closing balance when the reported one
// is unusable; in the latter case the first group's opening fields stay unknown. Each group closes
// at its running total and the next group opens there.
func (a *Assembler) Build(stmt *domain.Statement, result *domain.ReconciliationResult, rc RunContext) (*File, error) {
	groups := a.groupByDate(stmt, rc)

	b := newBuilder(FileHeader{
		Sender:   stmt.RoutingNumber,
		Receiver: stmt.AccountNumber,
		Date:     rc.fileDate(),
		Time:     rc.fileTime(),
		FileID:   rc.nextFileID(),
	})

	var (
		running        int64
		anchored       bool
		firstOpenKnown bool
	)
	switch {
	case result.OpeningBalanceKnown && stmt.OpeningBalance != nil:
		running, anchored, firstOpenKnown = stmt.OpeningBalance.Amount, true, true
	case result.DerivedOpeningCents != nil:
		running, anchored = *result.DerivedOpeningCents, true
	}

	for i, g := range groups {
		first, last := i == 0, i == len(groups)-1

		var credits, debits int64
		var creditCount, debitCount int
		for _, tx := range g.txs {
			if tx.IsCredit() {
				credits += tx.Amount
				creditCount++
			} else {
				debits += tx.Magnitude()
				debitCount++
			}
		}

		opening := a.balance(running, anchored && (!first || firstOpenKnown))
		closingValue := running + credits - debits
		closing := a.balance(closingValue, anchored)

		openingAvail := opening
		if first && stmt.OpeningAvailable != nil {
			openingAvail = a.balance(*stmt.OpeningAvailable, true)
		}
		closingAvail := closing
		oneDay, twoDay := a.balance(0, false), a.balance(0, false)
		if last {
			if stmt.ClosingAvailable != nil {
				closingAvail = a.balance(*stmt.ClosingAvailable, true)
			}
			if stmt.OneDayFloat != nil {
				oneDay = a.balance(*stmt.OneDayFloat, true)
			}
			if stmt.TwoDayFloat != nil {
				twoDay = a.balance(*stmt.TwoDayFloat, true)
			}
		}

		b.openGroup(GroupHeader{
			UltimateReceiver: stmt.AccountNumber,
			Originator:       stmt.RoutingNumber,
			Status:           groupStatusUpdate,
			AsOfDate:         g.date,
			Currency:         currencyUSD,
		})
		b.openAccount(AccountIdentifier{
			Account:   stmt.AccountNumber,
			TypeCode:  CodeOpeningLedger,
			Amount:    opening,
			FundsType: fundsSameDay,
		})
		b.add(summary(CodeClosingLedger, closing, ""))
		b.add(summary(CodeOpeningAvailable, openingAvail, ""))
		b.add(summary(CodeClosingAvailable, closingAvail, ""))
		b.add(summary(CodeOneDayFloat, oneDay, ""))
		b.add(summary(CodeTwoDayFloat, twoDay, ""))
		b.add(summary(CodeTotalCredits, Cents(credits), strconv.Itoa(creditCount)))
		b.add(summary(CodeTotalDebits, Cents(debits), strconv.Itoa(debitCount)))
		b.add(summary(CodeFloatAdjustment, Empty, ""))
		b.add(summary(CodeAvailableAdjust, Empty, ""))

		for _, tx := range g.txs {
			d, err := a.detail(tx)
			if err != nil {
				return nil, err
			}
			b.add(d)
		}

		if err := b.closeAccount(); err != nil {
			return nil, err
		}
		if err := b.closeGroup(); err != nil {
			return nil, err
		}
		running = closingValue
	}

	return b.finish()
}

func (a *Assembler) detail(tx domain.Transaction) (Detail, error) {
	code := a.classifier.Classify(tx)
	if classifier.FamilyOf(code) != classifier.FamilyForAmount(tx.Amount) {
		return Detail{}, &InvariantError{
			Invariant: "sign/family agreement",
			Detail: "type code " + code + " is " + classifier.FamilyOf(code).String() +
				" but amount " + strconv.FormatInt(tx.Amount, 10) + " is " + classifier.FamilyForAmount(tx.Amount).String(),
		}
	}
	return Detail{
		TypeCode:    code,
		Amount:      tx.Magnitude(),
		FundsType:   a.opts.FundsType,
		CustomerRef: SanitizeText(tx.ReferenceNumber, 0),
		BankRef:     SanitizeText(tx.BankReference, 0),
		Text:        SanitizeText(tx.Description, a.opts.DescriptionMaxLength),
	}, nil
}

// balance renders a ledger value as an unsigned magnitude, or as an unknown field.
func (a *Assembler) balance(cents int64, known bool) Amount {
	if !known {
		if a.opts.EmitEmptyWhenUnknown {
			return Empty
		}
		return Cents(0)
	}
	return Cents(normalize.Abs(cents))
}

func summary(code string, amt Amount, count string) Continuation {
	return Continuation{TypeCode: code, Amount: amt, ItemCount: count, FundsType: fundsSameDay}
}

// groupByDate buckets transactions by date, keeping input order inside each bucket.
// Dateless transactions join the earliest bucket. Without any dated transaction a single bucket
// is dated from the closing balance, the period end, the opening balance or the file date.
func (a *Assembler) groupByDate(stmt *domain.Statement, rc RunContext) []dayGroup {
	key := func(d string) int { return normalize.DateKey(d, a.opts.DatePivot) }

	earliest, earliestKey := "", -1
	for _, tx := range stmt.Transactions {
		if k := key(tx.Date); k >= 0 && (earliestKey < 0 || k < earliestKey) {
			earliest, earliestKey = tx.Date, k
		}
	}
	if earliestKey < 0 {
		earliest = fallbackDate(stmt, rc, key)
	}

	index := make(map[string]int)
	groups := make([]dayGroup, 0, 1)
	for _, tx := range stmt.Transactions {
		date := tx.Date
		if key(date) < 0 {
			date = earliest
		}
		i, ok := index[date]
		if !ok {
			i = len(groups)
			index[date] = i
			groups = append(groups, dayGroup{date: date})
		}
		groups[i].txs = append(groups[i].txs, tx)
	}
	if len(groups) == 0 {
		groups = append(groups, dayGroup{date: earliest})
	}

	sort.SliceStable(groups, func(i, j int) bool { return key(groups[i].date) < key(groups[j].date) })
	return groups
}

func fallbackDate(stmt *domain.Statement, rc RunContext, key func(string) int) string {
	candidates := make([]string, 0, 3)
	if stmt.ClosingBalance != nil {
		candidates = append(candidates, stmt.ClosingBalance.Date)
	}
	if stmt.Period != nil {
		candidates = append(candidates, stmt.Period.EndDate)
	}
	if stmt.OpeningBalance != nil {
		candidates = append(candidates, stmt.OpeningBalance.Date)
	}
	for _, c := range candidates {
		if key(c) >= 0 {
			return c
		}
	}
	return rc.fileDate()
}

// SanitizeText makes free text safe for a record field: commas and slashes become spaces,
// non-printable and non-ASCII characters become spaces, runs of spaces collapse, and the result
// is trimmed and cut to maxLen characters. maxLen <= 0 means no limit.
func SanitizeText(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ',' || r == '/' || r < 0x20 || r > 0x7e {
			r = ' '
		}
		if r == ' ' {
			if space {
				continue
			}
			space = true
		} else {
			space = false
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if maxLen > 0 && len(out) > maxLen {
		out = strings.TrimSpace(out[:maxLen])
	}
	return out
}
