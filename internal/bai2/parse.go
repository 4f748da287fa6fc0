package bai2

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrMalformed = errors.New("malformed bai2 data")

var fieldCounts = map[RecordType]int{
	TypeFileHeader:     8,
	TypeGroupHeader:    7,
	TypeAccountIdent:   6,
	TypeContinuation:   4,
	TypeDetail:         7,
	TypeAccountTrailer: 2,
	TypeGroupTrailer:   3,
	TypeFileTrailer:    3,
}

// Parse reads rendered BAI2 bytes back into records. Line endings must be consistent.
func Parse(data []byte) (*File, error) {
	text := string(data)
	crlf := strings.Contains(text, "\r\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	f := &File{Records: make([]Record, 0, len(lines))}
	for i, line := range lines {
		n := i + 1
		if strings.HasSuffix(line, "\r") != crlf {
			return nil, fmt.Errorf("%w: line %d: inconsistent line ending", ErrMalformed, n)
		}
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasSuffix(line, "/") {
			return nil, fmt.Errorf("%w: line %d: record not terminated by '/'", ErrMalformed, n)
		}
		rec, err := parseRecord(strings.Split(strings.TrimSuffix(line, "/"), ","))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, n, err)
		}
		f.Records = append(f.Records, rec)
	}
	return f, nil
}

func parseRecord(fields []string) (Record, error) {
	t := RecordType(fields[0])
	want, ok := fieldCounts[t]
	if !ok {
		return nil, fmt.Errorf("unknown record type %q", fields[0])
	}
	f := fields[1:]
	if len(f) != want {
		return nil, fmt.Errorf("record %s has %d fields, want %d", t, len(f), want)
	}

	switch t {
	case TypeFileHeader:
		return FileHeader{Sender: f[0], Receiver: f[1], Date: f[2], Time: f[3], FileID: f[4]}, nil
	case TypeGroupHeader:
		return GroupHeader{UltimateReceiver: f[0], Originator: f[1], Status: f[2], AsOfDate: f[3], AsOfTime: f[4], Currency: f[5]}, nil
	case TypeAccountIdent:
		amt, err := parseAmount(f[3])
		if err != nil {
			return nil, err
		}
		return AccountIdentifier{Account: f[0], Currency: f[1], TypeCode: f[2], Amount: amt, ItemCount: f[4], FundsType: f[5]}, nil
	case TypeContinuation:
		c := Continuation{TypeCode: f[0], ItemCount: f[2], FundsType: f[3]}
		if f[0] == CodeDiagnostic {
			c.Text = f[1]
			return c, nil
		}
		amt, err := parseAmount(f[1])
		if err != nil {
			return nil, err
		}
		c.Amount = amt
		return c, nil
	case TypeDetail:
		amt, err := parseAmount(f[1])
		if err != nil {
			return nil, err
		}
		if !amt.Known {
			return nil, fmt.Errorf("detail record without amount")
		}
		return Detail{TypeCode: f[0], Amount: amt.Cents, FundsType: f[2], CustomerRef: f[3], BankRef: f[4], Text: f[5]}, nil
	case TypeAccountTrailer:
		total, err := parseTotal(f[0])
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, fmt.Errorf("invalid record count %q", f[1])
		}
		return AccountTrailer{ControlTotal: total, RecordCount: count}, nil
	case TypeGroupTrailer, TypeFileTrailer:
		total, err := parseTotal(f[0])
		if err != nil {
			return nil, err
		}
		mid, err := strconv.Atoi(f[1])
		if err != nil {
			return nil, fmt.Errorf("invalid count %q", f[1])
		}
		count, err := strconv.Atoi(f[2])
		if err != nil {
			return nil, fmt.Errorf("invalid record count %q", f[2])
		}
		if t == TypeGroupTrailer {
			return GroupTrailer{ControlTotal: total, AccountCount: mid, RecordCount: count}, nil
		}
		return FileTrailer{ControlTotal: total, GroupCount: mid, RecordCount: count}, nil
	}
	return nil, fmt.Errorf("unhandled record type %q", t)
}

// parseAmount accepts an empty field or an unsigned integer without leading zeros.
func parseAmount(s string) (Amount, error) {
	if s == "" {
		return Empty, nil
	}
	c, err := parseTotal(s)
	if err != nil {
		return Empty, err
	}
	return Cents(c), nil
}

func parseTotal(s string) (int64, error) {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return int64(n), nil
}
