// Package bai2 builds, renders, reads back and verifies BAI2 cash-management files.
//
// A file is a flat, ordered list of records. Each record type is its own struct; trailers
// are filled in by walking the records already placed in the list.
package bai2

import (
	"strconv"
)

// RecordType is the two-digit code that starts every record.
type RecordType string

const (
	TypeFileHeader     RecordType = "01"
	TypeGroupHeader    RecordType = "02"
	TypeAccountIdent   RecordType = "03"
	TypeContinuation   RecordType = "88"
	TypeDetail         RecordType = "16"
	TypeAccountTrailer RecordType = "49"
	TypeGroupTrailer   RecordType = "98"
	TypeFileTrailer    RecordType = "99"
)

// Summary and status codes carried by 03 and 88 records.
const (
	CodeOpeningLedger    = "010"
	CodeClosingLedger    = "015"
	CodeOpeningAvailable = "040"
	CodeClosingAvailable = "045"
	CodeOneDayFloat      = "072"
	CodeTwoDayFloat      = "074"
	CodeTotalCredits     = "100"
	CodeTotalDebits      = "400"
	CodeFloatAdjustment  = "075"
	CodeAvailableAdjust  = "079"
	CodeDiagnostic       = "999"
)

// SummaryOrder is the fixed order of the 88 records following an 03.
var SummaryOrder = []string{
	CodeClosingLedger,
	CodeOpeningAvailable,
	CodeClosingAvailable,
	CodeOneDayFloat,
	CodeTwoDayFloat,
	CodeTotalCredits,
	CodeTotalDebits,
	CodeFloatAdjustment,
	CodeAvailableAdjust,
}

// Record is implemented only by the record structs of this package.
type Record interface {
	Type() RecordType
	// Fields returns the fields after the record type, in emission order.
	Fields() []string
	// Amounts returns the money values the record contributes to its trailer's control total.
	Amounts() []int64
	record()
}

// Amount is an unsigned money field in cents that may be left empty.
type Amount struct {
	Cents int64
	Known bool
}

// Cents returns a known amount.
func Cents(c int64) Amount { return Amount{Cents: c, Known: true} }

// Empty is an amount written as an empty field.
var Empty = Amount{}

func (a Amount) String() string {
	if !a.Known {
		return ""
	}
	return strconv.FormatInt(a.Cents, 10)
}

func (a Amount) values() []int64 {
	if !a.Known {
		return nil
	}
	return []int64{a.Cents}
}

type FileHeader struct {
	Sender   string
	Receiver string
	Date     string // YYMMDD
	Time     string // HHMM
	FileID   string
}

func (FileHeader) Type() RecordType { return TypeFileHeader }
func (r FileHeader) Fields() []string {
	return []string{r.Sender, r.Receiver, r.Date, r.Time, r.FileID, "", "", "2"}
}
func (FileHeader) Amounts() []int64 { return nil }
func (FileHeader) record()          {}

type GroupHeader struct {
	UltimateReceiver string
	Originator       string
	Status           string
	AsOfDate         string
	AsOfTime         string
	Currency         string
}

func (GroupHeader) Type() RecordType { return TypeGroupHeader }
func (r GroupHeader) Fields() []string {
	return []string{r.UltimateReceiver, r.Originator, r.Status, r.AsOfDate, r.AsOfTime, r.Currency, "2"}
}
func (GroupHeader) Amounts() []int64 { return nil }
func (GroupHeader) record()          {}

// AccountIdentifier carries the account and its opening ledger.
type AccountIdentifier struct {
	Account   string
	Currency  string
	TypeCode  string
	Amount    Amount
	ItemCount string
	FundsType string
}

func (AccountIdentifier) Type() RecordType { return TypeAccountIdent }
func (r AccountIdentifier) Fields() []string {
	return []string{r.Account, r.Currency, r.TypeCode, r.Amount.String(), r.ItemCount, r.FundsType}
}
func (r AccountIdentifier) Amounts() []int64 { return r.Amount.values() }
func (AccountIdentifier) record()            {}

// Continuation is an 88 record holding one balance or summary figure.
// Text replaces the amount field in diagnostic records.
type Continuation struct {
	TypeCode  string
	Amount    Amount
	Text      string
	ItemCount string
	FundsType string
}

func (Continuation) Type() RecordType { return TypeContinuation }
func (r Continuation) Fields() []string {
	amount := r.Amount.String()
	if r.Text != "" {
		amount = r.Text
	}
	return []string{r.TypeCode, amount, r.ItemCount, r.FundsType}
}
func (r Continuation) Amounts() []int64 {
	if r.Text != "" {
		return nil
	}
	return r.Amount.values()
}
func (Continuation) record() {}

// Detail is a 16 transaction record. Amount is the unsigned magnitude.
type Detail struct {
	TypeCode    string
	Amount      int64
	FundsType   string
	CustomerRef string
	BankRef     string
	Text        string
}

func (Detail) Type() RecordType { return TypeDetail }
func (r Detail) Fields() []string {
	return []string{r.TypeCode, strconv.FormatInt(r.Amount, 10), r.FundsType, r.CustomerRef, r.BankRef, r.Text, ""}
}
func (r Detail) Amounts() []int64 { return []int64{r.Amount} }
func (Detail) record()            {}

type AccountTrailer struct {
	ControlTotal int64
	RecordCount  int
}

func (AccountTrailer) Type() RecordType { return TypeAccountTrailer }
func (r AccountTrailer) Fields() []string {
	return []string{strconv.FormatInt(r.ControlTotal, 10), strconv.Itoa(r.RecordCount)}
}
func (AccountTrailer) Amounts() []int64 { return nil }
func (AccountTrailer) record()          {}

type GroupTrailer struct {
	ControlTotal int64
	AccountCount int
	RecordCount  int
}

func (GroupTrailer) Type() RecordType { return TypeGroupTrailer }
func (r GroupTrailer) Fields() []string {
	return []string{strconv.FormatInt(r.ControlTotal, 10), strconv.Itoa(r.AccountCount), strconv.Itoa(r.RecordCount)}
}
func (GroupTrailer) Amounts() []int64 { return nil }
func (GroupTrailer) record()          {}

type FileTrailer struct {
	ControlTotal int64
	GroupCount   int
	RecordCount  int
}

func (FileTrailer) Type() RecordType { return TypeFileTrailer }
func (r FileTrailer) Fields() []string {
	return []string{strconv.FormatInt(r.ControlTotal, 10), strconv.Itoa(r.GroupCount), strconv.Itoa(r.RecordCount)}
}
func (FileTrailer) Amounts() []int64 { return nil }
func (FileTrailer) record()          {}

// File is an ordered BAI2 record list.
type File struct {
	Records []Record
}
