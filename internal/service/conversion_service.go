package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"bai2-engine/internal/bai2"
	"bai2-engine/internal/config"
	"bai2-engine/internal/domain"
	"bai2-engine/internal/extract"
	"bai2-engine/internal/parser"
	"bai2-engine/internal/repository"
	"bai2-engine/internal/storage"
	"bai2-engine/pkg/logger"
)

var (
	ErrExtractorUnavailable = errors.New("pdf extraction is not configured")
	ErrStoreUnavailable     = errors.New("object storage is not configured")
	ErrNoOutputDestination  = errors.New("no output destination given and no default configured")
	ErrUploadFailed         = errors.New("failed to upload output")
)

const bai2ContentType = "text/plain; charset=us-ascii"

// Conversion is the outcome of one run: the persisted record plus the in-memory artifacts.
type Conversion struct {
	Run       *domain.ConversionRun        `json:"run"`
	Result    *domain.ReconciliationResult `json:"result"`
	Statement *domain.Statement            `json:"-"`
	Output    []byte                       `json:"-"`
	OutputURI string                       `json:"output_uri,omitempty"`
}

type ConversionService interface {
	Convert(ctx context.Context, stmt *domain.Statement) (*Conversion, error)
	ConvertJSON(ctx context.Context, data []byte, sourceFilename string) (*Conversion, error)
	ConvertPDF(ctx context.Context, pdf []byte, filename string) (*Conversion, error)
	ConvertObject(ctx context.Context, inputURI, outputDest string) (*Conversion, error)
	GetRun(runID string) (*domain.ConversionRun, error)
	ListRuns(filter domain.RunFilter) ([]domain.ConversionRun, error)
	Pipeline() *Pipeline
}

type Option func(*conversionService)

// WithExtractor enables PDF conversion.
func WithExtractor(e extract.Extractor) Option {
	return func(s *conversionService) { s.extractor = e }
}

// WithObjectStore enables object conversion. defaultDest is used when a request names no output.
func WithObjectStore(store storage.ObjectStore, defaultDest string) Option {
	return func(s *conversionService) {
		s.store = store
		s.defaultDest = defaultDest
	}
}

// WithClock replaces time.Now, which fixes file dates and ids for reproducible output.
func WithClock(now func() time.Time) Option {
	return func(s *conversionService) { s.now = now }
}

type conversionService struct {
	repo        repository.ConversionRepository
	pipeline    *Pipeline
	cfg         config.BAI2Config
	extractor   extract.Extractor
	store       storage.ObjectStore
	defaultDest string
	now         func() time.Time
	names       *dailyCounter
}

func NewConversionService(repo repository.ConversionRepository, cfg config.BAI2Config, opts ...Option) ConversionService {
	s := &conversionService{
		repo:     repo,
		pipeline: NewPipeline(cfg),
		cfg:      cfg,
		now:      time.Now,
		names:    &dailyCounter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *conversionService) Pipeline() *Pipeline {
	return s.pipeline
}

func (s *conversionService) Convert(ctx context.Context, stmt *domain.Statement) (*Conversion, error) {
	conv := s.run(stmt, nil, sourceOf(stmt))
	return conv, s.record(conv)
}

func (s *conversionService) ConvertJSON(ctx context.Context, data []byte, sourceFilename string) (*Conversion, error) {
	conv := s.fromJSON(data, sourceFilename)
	return conv, s.record(conv)
}

func (s *conversionService) ConvertPDF(ctx context.Context, pdf []byte, filename string) (*Conversion, error) {
	conv, err := s.fromPDF(ctx, pdf, filename)
	if err != nil {
		return nil, err
	}
	return conv, s.record(conv)
}

func (s *conversionService) ConvertObject(ctx context.Context, inputURI, outputDest string) (*Conversion, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	if outputDest == "" {
		outputDest = s.defaultDest
	}
	if outputDest == "" {
		return nil, ErrNoOutputDestination
	}

	data, err := s.store.Fetch(ctx, inputURI)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", inputURI, err)
	}

	filename := storage.FilenameFromURI(inputURI)
	var conv *Conversion
	if strings.EqualFold(path.Ext(filename), ".pdf") {
		if conv, err = s.fromPDF(ctx, data, filename); err != nil {
			return nil, err
		}
	} else {
		conv = s.fromJSON(data, filename)
	}

	conv.OutputURI = storage.OutputURI(outputDest, conv.Run.OutputFilename)
	if err := s.store.Put(ctx, conv.OutputURI, conv.Output, bai2ContentType); err != nil {
		msg := fmt.Sprintf("upload to %s failed: %v", conv.OutputURI, err)
		conv.Run.ErrorMessage = &msg
		conv.OutputURI = ""
		if recErr := s.record(conv); recErr != nil {
			logger.GetLogger().WithError(recErr).Error("Failed to record conversion run after upload failure")
		}
		return conv, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return conv, s.record(conv)
}

func (s *conversionService) GetRun(runID string) (*domain.ConversionRun, error) {
	return s.repo.GetByRunID(runID)
}

func (s *conversionService) ListRuns(filter domain.RunFilter) ([]domain.ConversionRun, error) {
	return s.repo.List(filter)
}

func (s *conversionService) fromJSON(data []byte, sourceFilename string) *Conversion {
	p := parser.NewStatementParser(s.cfg.DateTwoDigitPivot).WithClock(s.now)
	stmt, err := p.ParseBytes(data)
	if err != nil {
		return s.run(nil, err, sourceFilename)
	}
	if stmt.SourceFilename == "" {
		stmt.SourceFilename = sourceFilename
	}
	return s.run(stmt, nil, stmt.SourceFilename)
}

func (s *conversionService) fromPDF(ctx context.Context, pdf []byte, filename string) (*Conversion, error) {
	if s.extractor == nil {
		return nil, ErrExtractorUnavailable
	}
	data, err := s.extractor.Extract(ctx, pdf, filename)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return s.run(nil, err, filename), nil
	}
	return s.fromJSON(data, filename), nil
}

// run drives the pipeline. A non-nil parseErr short-circuits to a parsing-failed error file.
func (s *conversionService) run(stmt *domain.Statement, parseErr error, source string) *Conversion {
	now := s.now()
	rc := bai2.NewRunContext(now)

	var out *PipelineResult
	if parseErr != nil {
		out = s.pipeline.fail(domain.ErrParsingFailed, nil, parseErr, rc)
	} else {
		out = s.pipeline.Run(stmt, rc)
	}

	nameStmt := stmt
	if nameStmt == nil {
		nameStmt = &domain.Statement{}
	}
	filename := bai2.OutputFilename(nameStmt, s.cfg.BankTags, now, s.names.next(now), s.cfg.DateTwoDigitPivot)

	run := &domain.ConversionRun{
		RunID:             uuid.New().String(),
		SourceFilename:    source,
		RoutingNumber:     strings.TrimSpace(nameStmt.RoutingNumber),
		AccountNumber:     strings.TrimSpace(nameStmt.AccountNumber),
		Status:            out.Result.Status,
		ErrorCodes:        out.Result.Codes(),
		Warnings:          out.Result.Warnings,
		TotalCreditsCents: out.Result.TotalCreditsCents,
		TotalDebitsCents:  out.Result.TotalDebitsCents,
		CreditCount:       out.Result.CreditCount,
		DebitCount:        out.Result.DebitCount,
		DifferenceCents:   out.Result.DifferenceCents,
		OutputFilename:    filename,
		ErrorFile:         out.IsErrorFile(),
		Output:            out.Output,
		CreatedAt:         now.UTC(),
	}
	if out.Err != nil {
		msg := out.Err.Error()
		run.ErrorMessage = &msg
	}

	entry := logger.GetLogger().WithFields(logrus.Fields{
		"run_id":       run.RunID,
		"source":       source,
		"status":       run.Status,
		"error_codes":  run.ErrorCodes,
		"credit_count": run.CreditCount,
		"debit_count":  run.DebitCount,
		"difference":   run.DifferenceCents,
		"output":       filename,
	})
	if out.IsErrorFile() {
		entry.WithError(out.Err).Warn("Conversion produced an error file")
	} else {
		entry.Info("Conversion completed")
	}

	return &Conversion{Run: run, Result: out.Result, Statement: stmt, Output: out.Output}
}

func (s *conversionService) record(conv *Conversion) error {
	if err := s.repo.Create(conv.Run); err != nil {
		return fmt.Errorf("failed to record conversion run: %w", err)
	}
	return nil
}

func sourceOf(stmt *domain.Statement) string {
	if stmt == nil {
		return ""
	}
	return stmt.SourceFilename
}

// dailyCounter numbers output files within a calendar day.
type dailyCounter struct {
	mu  sync.Mutex
	day string
	n   int
}

func (c *dailyCounter) next(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	day := now.Format("20060102")
	if day != c.day {
		c.day, c.n = day, 0
	}
	c.n++
	return c.n
}
