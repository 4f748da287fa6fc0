package bai2

import "fmt"

// builder appends records and closes sections by counting what was actually appended.
type builder struct {
	records    []Record
	groupStart int
	acctStart  int
	groups     int
	accounts   int
}

func newBuilder(header FileHeader) *builder {
	return &builder{records: []Record{header}, groupStart: -1, acctStart: -1}
}

func (b *builder) openGroup(h GroupHeader) {
	b.groupStart = len(b.records)
	b.accounts = 0
	b.records = append(b.records, h)
}

func (b *builder) openAccount(a AccountIdentifier) {
	b.acctStart = len(b.records)
	b.records = append(b.records, a)
}

func (b *builder) add(r Record) {
	b.records = append(b.records, r)
}

// closeAccount appends the 49 for the account opened last. Its count includes the 03 and the 49.
func (b *builder) closeAccount() error {
	if b.acctStart < 0 {
		return &InvariantError{Invariant: "account trailer", Detail: "no open account"}
	}
	section := b.records[b.acctStart:]
	b.records = append(b.records, AccountTrailer{
		ControlTotal: sumAmounts(section),
		RecordCount:  len(section) + 1,
	})
	b.acctStart = -1
	b.accounts++
	return nil
}

// closeGroup appends the 98. Its control total sums the group's 49 totals and its count spans 02..98.
func (b *builder) closeGroup() error {
	if b.groupStart < 0 || b.acctStart >= 0 {
		return &InvariantError{Invariant: "group trailer", Detail: "group not open or account still open"}
	}
	section := b.records[b.groupStart:]
	var total int64
	for _, r := range section {
		if t, ok := r.(AccountTrailer); ok {
			total += t.ControlTotal
		}
	}
	b.records = append(b.records, GroupTrailer{
		ControlTotal: total,
		AccountCount: b.accounts,
		RecordCount:  len(section) + 1,
	})
	b.groupStart = -1
	b.groups++
	return nil
}

// finish appends the 99 and returns the file.
func (b *builder) finish() (*File, error) {
	if b.groupStart >= 0 || b.acctStart >= 0 {
		return nil, &InvariantError{Invariant: "file trailer", Detail: "section still open"}
	}
	var total int64
	for _, r := range b.records {
		if t, ok := r.(GroupTrailer); ok {
			total += t.ControlTotal
		}
	}
	b.records = append(b.records, FileTrailer{
		ControlTotal: total,
		GroupCount:   b.groups,
		RecordCount:  len(b.records) + 1,
	})
	return &File{Records: b.records}, nil
}

func sumAmounts(records []Record) int64 {
	var total int64
	for _, r := range records {
		for _, a := range r.Amounts() {
			total += a
		}
	}
	return total
}

// InvariantError reports a broken structural rule of a BAI2 file.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("bai2 invariant %q violated: %s", e.Invariant, e.Detail)
}
