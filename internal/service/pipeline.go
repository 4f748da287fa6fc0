package service

import (
	"errors"
	"fmt"
	"strings"

	"bai2-engine/internal/bai2"
	"bai2-engine/internal/classifier"
	"bai2-engine/internal/config"
	"bai2-engine/internal/domain"
	"bai2-engine/internal/reconciliation"
	"bai2-engine/internal/validator"
)

// errNoUsableData marks a statement with no transactions and no balances.
var errNoUsableData = errors.New("statement carries no transactions and no balances")

// PipelineResult is what one pass of the pipeline produced.
type PipelineResult struct {
	// Output is always a complete BAI2 file, normal or error variant.
	Output []byte
	Result *domain.ReconciliationResult
	// ErrorCode is set when Output is an error file.
	ErrorCode domain.ErrorCode
	// Err is the cause behind an error file.
	Err error
}

// IsErrorFile reports whether the pipeline fell back to an error file.
func (r *PipelineResult) IsErrorFile() bool {
	return r.ErrorCode != ""
}

// Pipeline validates, reconciles and assembles a single statement. It does no I/O and keeps no
// per-run state, so one Pipeline may serve concurrent conversions.
type Pipeline struct {
	engine     *reconciliation.ReconciliationEngine
	assembler  *bai2.Assembler
	classifier *classifier.Classifier
}

func NewPipeline(cfg config.BAI2Config) *Pipeline {
	c := classifier.NewClassifier(cfg.DefaultCreditCode, cfg.DefaultDebitCode)
	return &Pipeline{
		engine:     reconciliation.NewReconciliationEngine(cfg.MismatchToleranceCents),
		classifier: c,
		assembler: bai2.NewAssembler(bai2.Options{
			FundsType:            cfg.FundsType,
			DescriptionMaxLength: cfg.DescriptionMaxLength,
			EmitEmptyWhenUnknown: cfg.EmitEmptyWhenUnknown,
			DatePivot:            cfg.DateTwoDigitPivot,
			LineEnding:           bai2.ParseLineEnding(cfg.LineEnding),
		}, c),
	}
}

// Classifier exposes the type-code classifier the assembler uses.
func (p *Pipeline) Classifier() *classifier.Classifier {
	return p.classifier
}

// Run converts stmt. It never returns partial bytes: validation failures, empty statements and
// assembly failures all come back as an error file with the matching code.
func (p *Pipeline) Run(stmt *domain.Statement, rc bai2.RunContext) *PipelineResult {
	if stmt == nil {
		return p.fail(domain.ErrParsingFailed, nil, errNoUsableData, rc)
	}
	if err := validator.ValidateRoutingNumber(stmt.RoutingNumber); err != nil {
		return p.fail(domain.ErrNoRouting, nil, err, rc)
	}
	if err := validator.ValidateAccountNumber(stmt.AccountNumber); err != nil {
		return p.fail(domain.ErrNoAccount, nil, err, rc)
	}
	if len(stmt.Transactions) == 0 && stmt.OpeningBalance == nil && stmt.ClosingBalance == nil {
		return p.fail(domain.ErrParsingFailed, nil, errNoUsableData, rc)
	}

	// The assembler borrows a cleaned copy; the caller's statement is left as given.
	clean := *stmt
	clean.RoutingNumber = strings.TrimSpace(stmt.RoutingNumber)
	clean.AccountNumber = validator.NormalizeAccountNumber(stmt.AccountNumber)

	result := p.engine.Reconcile(&clean)

	output, err := p.assemble(&clean, result, rc)
	if err != nil {
		return p.fail(domain.ErrProcessingFailed, result, err, rc)
	}
	return &PipelineResult{Output: output, Result: result}
}

// assemble builds, renders and re-reads the file, turning panics into errors.
func (p *Pipeline) assemble(stmt *domain.Statement, result *domain.ReconciliationResult, rc bai2.RunContext) (output []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			output, err = nil, fmt.Errorf("assembler panic: %v", r)
		}
	}()

	f, err := p.assembler.Build(stmt, result, rc)
	if err != nil {
		return nil, fmt.Errorf("failed to build file: %w", err)
	}
	output = f.Render(p.assembler.Options().LineEnding)

	parsed, err := bai2.Parse(output)
	if err != nil {
		return nil, fmt.Errorf("rendered file does not parse: %w", err)
	}
	if err := bai2.Verify(parsed); err != nil {
		return nil, fmt.Errorf("rendered file failed verification: %w", err)
	}
	return output, nil
}

func (p *Pipeline) fail(code domain.ErrorCode, result *domain.ReconciliationResult, cause error, rc bai2.RunContext) *PipelineResult {
	if result == nil {
		result = domain.NewReconciliationResult()
	}
	result.Status = result.Status.Worse(domain.StatusError)
	result.AddCode(code)
	if cause != nil {
		result.Warn(cause.Error())
	}
	return &PipelineResult{
		Output:    bai2.ErrorFile(code, rc, p.assembler.Options().LineEnding),
		Result:    result,
		ErrorCode: code,
		Err:       cause,
	}
}
