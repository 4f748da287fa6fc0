// Package report renders a reconciliation workbook for people reviewing a conversion.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"bai2-engine/internal/classifier"
	"bai2-engine/internal/domain"
)

const (
	SummarySheet      = "Summary"
	TransactionsSheet = "Transactions"

	moneyFormat = 4 // #,##0.00
)

// Input is everything the workbook shows.
type Input struct {
	RunID          string
	OutputFilename string
	Statement      *domain.Statement
	Result         *domain.ReconciliationResult
	Classifier     *classifier.Classifier
}

// WriteWorkbook writes an .xlsx with a Summary sheet and a Transactions sheet to w.
// A nil Statement, as left by an unreadable input, yields empty statement fields.
func WriteWorkbook(w io.Writer, in Input) error {
	if in.Statement == nil {
		in.Statement = &domain.Statement{}
	}
	if in.Result == nil {
		in.Result = domain.NewReconciliationResult()
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(TransactionsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeSummary(f, in, bold, money); err != nil {
		return err
	}
	if err := writeTransactions(f, in, bold, money); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, in Input, bold, money int) error {
	stmt, res := in.Statement, in.Result
	rows := [][]interface{}{
		{"Run ID", in.RunID},
		{"Output file", in.OutputFilename},
		{"Source file", stmt.SourceFilename},
		{"Bank", stmt.BankName},
		{"Routing number", stmt.RoutingNumber},
		{"Account number", stmt.AccountNumber},
		{"Status", string(res.Status)},
		{"Opening balance", balanceCell(stmt.OpeningBalance, res.OpeningBalanceKnown)},
		{"Closing balance", balanceCell(stmt.ClosingBalance, res.ClosingBalanceKnown)},
		{"Total credits", dollars(res.TotalCreditsCents)},
		{"Credit count", res.CreditCount},
		{"Total debits", dollars(res.TotalDebitsCents)},
		{"Debit count", res.DebitCount},
		{"Expected closing", optionalDollars(res.ExpectedClosingCents)},
		{"Derived opening", optionalDollars(res.DerivedOpeningCents)},
		{"Difference", dollars(res.DifferenceCents)},
	}
	codes := ""
	for i, c := range res.Codes() {
		if i > 0 {
			codes += ", "
		}
		codes += string(c)
	}
	rows = append(rows, []interface{}{"Error codes", codes})
	for _, warning := range res.Warnings {
		rows = append(rows, []interface{}{"Warning", warning})
	}

	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(SummarySheet, cell, v); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
			if _, isNumber := v.(float64); isNumber {
				if err := f.SetCellStyle(SummarySheet, cell, cell, money); err != nil {
					return err
				}
			}
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "A", "B", 24)
}

func writeTransactions(f *excelize.File, in Input, bold, money int) error {
	header := []string{"Date", "Type code", "Amount", "Description", "Reference", "Bank reference", "Hint"}
	if err := f.SetSheetRow(TransactionsSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(TransactionsSheet, "A1", "G1", bold); err != nil {
		return err
	}

	for i, tx := range in.Statement.Transactions {
		code := ""
		if in.Classifier != nil {
			code = in.Classifier.Classify(tx)
		}
		row := []interface{}{tx.Date, code, dollars(tx.Amount), tx.Description, tx.ReferenceNumber, tx.BankReference, string(tx.TypeHint)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(TransactionsSheet, cell, &row); err != nil {
			return err
		}
	}
	if n := len(in.Statement.Transactions); n > 0 {
		if err := f.SetCellStyle(TransactionsSheet, "C2", fmt.Sprintf("C%d", n+1), money); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(TransactionsSheet, "A", "C", 12); err != nil {
		return err
	}
	return f.SetColWidth(TransactionsSheet, "D", "D", 52)
}

func dollars(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

func optionalDollars(cents *int64) interface{} {
	if cents == nil {
		return ""
	}
	return dollars(*cents)
}

func balanceCell(b *domain.Balance, known bool) interface{} {
	if b == nil {
		return "unknown"
	}
	if !known {
		return fmt.Sprintf("%.2f (not trusted)", dollars(b.Amount))
	}
	return dollars(b.Amount)
}
