package bai2

import "fmt"

var summaryRank = func() map[string]int {
	m := make(map[string]int, len(SummaryOrder)+1)
	for i, c := range SummaryOrder {
		m[c] = i
	}
	m[CodeDiagnostic] = len(SummaryOrder)
	return m
}()

// Verify checks the structural laws of a file: one 01 first and one 99 last, properly paired
// 02/98 and 03/49 sections, trailer counts and control totals recomputed from the records,
// ordered 88 summaries and ledger continuity between consecutive groups.
func Verify(f *File) error {
	recs := f.Records
	if len(recs) < 2 {
		return violation("file structure", "file has %d records", len(recs))
	}
	if recs[0].Type() != TypeFileHeader {
		return violation("file structure", "first record is %s, want 01", recs[0].Type())
	}
	if recs[len(recs)-1].Type() != TypeFileTrailer {
		return violation("file structure", "last record is %s, want 99", recs[len(recs)-1].Type())
	}

	var (
		groupStart, acctStart = -1, -1
		groupTotal, fileTotal int64
		accounts, groups      int
		lastRank              = -1
		opening, closing      Amount
		prevClosing           *Amount
	)

	for i, r := range recs {
		switch rec := r.(type) {
		case FileHeader:
			if i != 0 {
				return violation("file structure", "01 at record %d", i+1)
			}
		case GroupHeader:
			if groupStart >= 0 {
				return violation("group nesting", "02 at record %d inside an open group", i+1)
			}
			groupStart, groupTotal, accounts = i, 0, 0
		case AccountIdentifier:
			if groupStart < 0 || acctStart >= 0 {
				return violation("account nesting", "03 at record %d outside a group or inside an account", i+1)
			}
			acctStart, lastRank = i, -1
			if accounts == 0 {
				opening, closing = rec.Amount, Empty
			}
		case Continuation:
			if acctStart < 0 {
				return violation("account nesting", "88 at record %d outside an account", i+1)
			}
			rank, ok := summaryRank[rec.TypeCode]
			if !ok || rank <= lastRank {
				return violation("summary order", "88,%s at record %d out of order", rec.TypeCode, i+1)
			}
			lastRank = rank
			if rec.TypeCode == CodeClosingLedger && accounts == 0 {
				closing = rec.Amount
			}
		case Detail:
			if acctStart < 0 {
				return violation("account nesting", "16 at record %d outside an account", i+1)
			}
		case AccountTrailer:
			if acctStart < 0 {
				return violation("account nesting", "49 at record %d without 03", i+1)
			}
			if want := i - acctStart + 1; rec.RecordCount != want {
				return violation("account record count", "49 at record %d says %d, counted %d", i+1, rec.RecordCount, want)
			}
			if want := sumAmounts(recs[acctStart:i]); rec.ControlTotal != want {
				return violation("account control total", "49 at record %d says %d, summed %d", i+1, rec.ControlTotal, want)
			}
			groupTotal += rec.ControlTotal
			accounts++
			acctStart = -1
		case GroupTrailer:
			if groupStart < 0 || acctStart >= 0 {
				return violation("group nesting", "98 at record %d without 02 or inside an account", i+1)
			}
			if want := i - groupStart + 1; rec.RecordCount != want {
				return violation("group record count", "98 at record %d says %d, counted %d", i+1, rec.RecordCount, want)
			}
			if rec.ControlTotal != groupTotal {
				return violation("group control total", "98 at record %d says %d, summed %d", i+1, rec.ControlTotal, groupTotal)
			}
			if rec.AccountCount != accounts {
				return violation("group account count", "98 at record %d says %d accounts, counted %d", i+1, rec.AccountCount, accounts)
			}
			if prevClosing != nil && prevClosing.Known && (!opening.Known || opening.Cents != prevClosing.Cents) {
				return violation("balance continuity", "group ending at record %d opens at %q, previous group closed at %d",
					i+1, opening.String(), prevClosing.Cents)
			}
			c := closing
			prevClosing = &c
			fileTotal += rec.ControlTotal
			groups++
			groupStart = -1
		case FileTrailer:
			if i != len(recs)-1 {
				return violation("file structure", "99 at record %d is not last", i+1)
			}
			if groupStart >= 0 {
				return violation("group nesting", "99 reached with an open group")
			}
			if rec.RecordCount != len(recs) {
				return violation("file record count", "99 says %d, counted %d", rec.RecordCount, len(recs))
			}
			if rec.ControlTotal != fileTotal {
				return violation("file control total", "99 says %d, summed %d", rec.ControlTotal, fileTotal)
			}
			if rec.GroupCount != groups {
				return violation("file group count", "99 says %d groups, counted %d", rec.GroupCount, groups)
			}
		default:
			return violation("record type", "unexpected record %T", r)
		}
	}
	return nil
}

func violation(invariant, format string, args ...interface{}) *InvariantError {
	return &InvariantError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}
