package bai2

import (
	"bytes"
	"strings"
)

// LineEnding separates rendered records.
type LineEnding string

const (
	LF   LineEnding = "\n"
	CRLF LineEnding = "\r\n"
)

// ParseLineEnding maps "lf" and "crlf" onto a LineEnding, defaulting to LF.
func ParseLineEnding(s string) LineEnding {
	if strings.EqualFold(s, "crlf") {
		return CRLF
	}
	return LF
}

// Render writes each record as comma separated fields terminated by "/" and the line ending.
func (f *File) Render(eol LineEnding) []byte {
	if eol == "" {
		eol = LF
	}
	var buf bytes.Buffer
	for _, r := range f.Records {
		buf.WriteString(string(r.Type()))
		for _, field := range r.Fields() {
			buf.WriteByte(',')
			buf.WriteString(field)
		}
		buf.WriteByte('/')
		buf.WriteString(string(eol))
	}
	return buf.Bytes()
}

// Count returns how many records of type t the file holds.
func (f *File) Count(t RecordType) int {
	n := 0
	for _, r := range f.Records {
		if r.Type() == t {
			n++
		}
	}
	return n
}
