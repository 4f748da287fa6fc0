package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"bai2-engine/internal/domain"
	"bai2-engine/pkg/logger"
)

// ErrRunNotFound is returned when no run carries the requested run id.
var ErrRunNotFound = errors.New("conversion run not found")

const defaultListLimit = 50

type ConversionRepository interface {
	Create(run *domain.ConversionRun) error
	GetByRunID(runID string) (*domain.ConversionRun, error)
	List(filter domain.RunFilter) ([]domain.ConversionRun, error)
}

type conversionRepository struct {
	db *sql.DB
}

func NewConversionRepository(db *sql.DB) ConversionRepository {
	return &conversionRepository{db: db}
}

func (r *conversionRepository) Create(run *domain.ConversionRun) error {
	query := `
		INSERT INTO conversion_runs (
			run_id, source_filename, routing_number, account_number, status,
			error_codes, warnings, total_credits_cents, total_debits_cents,
			credit_count, debit_count, difference_cents, output_filename,
			error_file, output, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		query,
		run.RunID,
		run.SourceFilename,
		run.RoutingNumber,
		run.AccountNumber,
		run.Status,
		pq.Array(codeStrings(run.ErrorCodes)),
		pq.Array(run.Warnings),
		run.TotalCreditsCents,
		run.TotalDebitsCents,
		run.CreditCount,
		run.DebitCount,
		run.DifferenceCents,
		run.OutputFilename,
		run.ErrorFile,
		run.Output,
		run.ErrorMessage,
	).Scan(&run.ID, &run.CreatedAt)

	if err != nil {
		logger.GetLogger().WithError(err).WithField("run_id", run.RunID).Error("Failed to create conversion run")
		return err
	}

	return nil
}

func (r *conversionRepository) GetByRunID(runID string) (*domain.ConversionRun, error) {
	query := `
		SELECT id, run_id, source_filename, routing_number, account_number, status,
			   error_codes, warnings, total_credits_cents, total_debits_cents,
			   credit_count, debit_count, difference_cents, output_filename,
			   error_file, output, error_message, created_at
		FROM conversion_runs
		WHERE run_id = $1
	`

	run, err := scanRun(r.db.QueryRow(query, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get conversion run")
		return nil, err
	}

	return run, nil
}

func (r *conversionRepository) List(filter domain.RunFilter) ([]domain.ConversionRun, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, run_id, source_filename, routing_number, account_number, status,
			   error_codes, warnings, total_credits_cents, total_debits_cents,
			   credit_count, debit_count, difference_cents, output_filename,
			   error_file, output, error_message, created_at
		FROM conversion_runs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(query, string(filter.Status), limit, offset)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query conversion runs")
		return nil, err
	}
	defer rows.Close()

	runs := make([]domain.ConversionRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan conversion run")
			continue
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.ConversionRun, error) {
	var run domain.ConversionRun
	var codes, warnings []string
	err := row.Scan(
		&run.ID,
		&run.RunID,
		&run.SourceFilename,
		&run.RoutingNumber,
		&run.AccountNumber,
		&run.Status,
		pq.Array(&codes),
		pq.Array(&warnings),
		&run.TotalCreditsCents,
		&run.TotalDebitsCents,
		&run.CreditCount,
		&run.DebitCount,
		&run.DifferenceCents,
		&run.OutputFilename,
		&run.ErrorFile,
		&run.Output,
		&run.ErrorMessage,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ErrorCodes = make([]domain.ErrorCode, 0, len(codes))
	for _, c := range codes {
		run.ErrorCodes = append(run.ErrorCodes, domain.ErrorCode(c))
	}
	run.Warnings = warnings
	return &run, nil
}

func codeStrings(codes []domain.ErrorCode) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		out = append(out, string(c))
	}
	return out
}
