package bai2

import "bai2-engine/internal/domain"

const (
	errorSender     = "ERROR"
	errorReceiver   = "WORKDAY"
	errorOriginator = "000000000"
)

// BuildErrorFile returns a structurally valid file without transactions whose single 88,999
// record names code.
func BuildErrorFile(code domain.ErrorCode, rc RunContext) (*File, error) {
	b := newBuilder(FileHeader{
		Sender:   errorSender,
		Receiver: errorReceiver,
		Date:     rc.fileDate(),
		Time:     rc.fileTime(),
		FileID:   rc.nextFileID(),
	})
	b.openGroup(GroupHeader{
		UltimateReceiver: errorSender,
		Originator:       errorOriginator,
		Status:           groupStatusUpdate,
		AsOfDate:         rc.fileDate(),
		Currency:         currencyUSD,
	})
	b.openAccount(AccountIdentifier{
		Account:   errorSender,
		TypeCode:  CodeOpeningLedger,
		Amount:    Cents(0),
		FundsType: fundsSameDay,
	})
	b.add(Continuation{TypeCode: CodeDiagnostic, Text: string(code), FundsType: fundsSameDay})
	if err := b.closeAccount(); err != nil {
		return nil, err
	}
	if err := b.closeGroup(); err != nil {
		return nil, err
	}
	return b.finish()
}

// ErrorFile renders the error file for code.
func ErrorFile(code domain.ErrorCode, rc RunContext, eol LineEnding) []byte {
	f, err := BuildErrorFile(code, rc)
	if err != nil {
		// the fixed layout above always closes its sections
		panic(err)
	}
	return f.Render(eol)
}

// DiagnosticCode returns the code carried by an error file's 88,999 record, or "" for a normal file.
func (f *File) DiagnosticCode() domain.ErrorCode {
	for _, r := range f.Records {
		if c, ok := r.(Continuation); ok && c.TypeCode == CodeDiagnostic {
			return domain.ErrorCode(c.Text)
		}
	}
	return ""
}
