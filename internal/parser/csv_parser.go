package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"bai2-engine/internal/domain"
	"bai2-engine/internal/normalize"
	"bai2-engine/pkg/logger"
)

// TransactionCSVParser streams statement transactions from CSV in batches.
//
// Recognised columns (case-insensitive): date, amount, description, reference_number,
// bank_reference, type. Statements that split money into debit and credit columns may
// supply those instead of amount.
type TransactionCSVParser struct {
	dc normalize.DateContext
}

func NewTransactionCSVParser(dc normalize.DateContext) *TransactionCSVParser {
	return &TransactionCSVParser{dc: dc}
}

// ParseFile opens filePath and streams it through Parse.
func (p *TransactionCSVParser) ParseFile(filePath string, batchSize int, callback func([]domain.Transaction) error) (int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("file", filePath).Error("Failed to open file")
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file, batchSize, callback)
}

// Parse reads r row by row, handing batches of at most batchSize transactions to callback.
// Rows that cannot be read are skipped; the number skipped is returned.
func (p *TransactionCSVParser) Parse(r io.Reader, batchSize int, callback func([]domain.Transaction) error) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to read CSV header")
		return 0, fmt.Errorf("failed to read header: %w", err)
	}

	columnMap := mapColumns(header)
	if !validateTransactionColumns(columnMap) {
		return 0, fmt.Errorf("invalid CSV format: need a date column and an amount, debit or credit column")
	}

	batch := make([]domain.Transaction, 0, batchSize)
	lineNumber := 1
	skipped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNumber++
		if err != nil {
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("Failed to read CSV row, skipping")
			skipped++
			continue
		}

		tx, err := p.parseTransactionRecord(record, columnMap)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("Failed to parse record, skipping")
			skipped++
			continue
		}

		batch = append(batch, *tx)

		if len(batch) >= batchSize {
			if err := callback(batch); err != nil {
				return skipped, err
			}
			batch = make([]domain.Transaction, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := callback(batch); err != nil {
			return skipped, err
		}
	}

	return skipped, nil
}

// ReadAll collects every transaction from r.
func (p *TransactionCSVParser) ReadAll(r io.Reader) ([]domain.Transaction, int, error) {
	var all []domain.Transaction
	skipped, err := p.Parse(r, 0, func(batch []domain.Transaction) error {
		all = append(all, batch...)
		return nil
	})
	return all, skipped, err
}

func (p *TransactionCSVParser) parseTransactionRecord(record []string, columnMap map[string]int) (*domain.Transaction, error) {
	amount, err := rowAmount(record, columnMap)
	if err != nil {
		return nil, err
	}

	// An unreadable date keeps the row; the assembler files it under the earliest day.
	date := ""
	if raw := column(record, columnMap, "date"); raw != "" {
		date, err = normalize.NormalizeDate(raw, p.dc)
		if err != nil {
			logger.GetLogger().WithError(err).Debug("Keeping transaction without a usable date")
			date = ""
		}
	}

	return &domain.Transaction{
		Date:            date,
		Amount:          amount,
		Description:     column(record, columnMap, "description"),
		ReferenceNumber: column(record, columnMap, "reference_number"),
		BankReference:   column(record, columnMap, "bank_reference"),
		TypeHint:        domain.ParseTypeHint(strings.ToLower(column(record, columnMap, "type"))),
	}, nil
}

func rowAmount(record []string, columnMap map[string]int) (int64, error) {
	if raw := column(record, columnMap, "amount"); raw != "" {
		amount, err := normalize.ParseCents(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid amount: %w", err)
		}
		return amount, nil
	}

	debitRaw, creditRaw := column(record, columnMap, "debit"), column(record, columnMap, "credit")
	if debitRaw == "" && creditRaw == "" {
		return 0, fmt.Errorf("row has no amount")
	}
	var amount int64
	if creditRaw != "" {
		c, err := normalize.ParseCents(creditRaw)
		if err != nil {
			return 0, fmt.Errorf("invalid credit: %w", err)
		}
		amount += normalize.Abs(c)
	}
	if debitRaw != "" {
		d, err := normalize.ParseCents(debitRaw)
		if err != nil {
			return 0, fmt.Errorf("invalid debit: %w", err)
		}
		amount -= normalize.Abs(d)
	}
	return amount, nil
}

func column(record []string, columnMap map[string]int, name string) string {
	i, ok := columnMap[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func mapColumns(header []string) map[string]int {
	columnMap := make(map[string]int)
	for i, col := range header {
		normalized := strings.ToLower(strings.TrimSpace(col))
		normalized = strings.TrimPrefix(normalized, "\ufeff")
		columnMap[normalized] = i
	}
	return columnMap
}

func validateTransactionColumns(columnMap map[string]int) bool {
	if _, ok := columnMap["date"]; !ok {
		return false
	}
	for _, col := range []string{"amount", "debit", "credit"} {
		if _, ok := columnMap[col]; ok {
			return true
		}
	}
	return false
}
