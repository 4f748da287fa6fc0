// Command convert turns one bank statement into a BAI2 file.
//
// Usage:
//
//	convert -in statement.json [-csv extra.csv] [-out file.bai|dir/|gs://bucket/prefix/|-] [-report run.xlsx]
//	convert -pdf statement.pdf ...
//	convert -csv transactions.csv -routing 083000564 -account 2375133 -opening 1000.00 -closing 1150.00
//
// Exit status is 0 for COMPLETE and PARTIAL runs, 2 for FAILED, 3 for ERROR, and 1 when the
// command itself could not run.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"bai2-engine/internal/config"
	"bai2-engine/internal/domain"
	"bai2-engine/internal/extract"
	"bai2-engine/internal/normalize"
	"bai2-engine/internal/parser"
	"bai2-engine/internal/report"
	"bai2-engine/internal/repository"
	"bai2-engine/internal/service"
	"bai2-engine/internal/storage"
	"bai2-engine/pkg/logger"
)

const (
	exitOK = iota
	exitUsage
	exitFailed
	exitError
)

type options struct {
	in, pdf, csv string
	out, report  string
	now          string
	routing      string
	account      string
	bank         string
	opening      string
	closing      string
	logLevel     string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var o options
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.in, "in", "", "Statement JSON, local path or gs:// URI.")
	fs.StringVar(&o.pdf, "pdf", "", "Statement PDF, local path or gs:// URI. Needs GEMINI_API_KEY.")
	fs.StringVar(&o.csv, "csv", "", "Transactions CSV appended to the statement's transactions.")
	fs.StringVar(&o.out, "out", "", "Output file, directory (trailing /), gs:// destination, or - for stdout. Defaults to the generated name.")
	fs.StringVar(&o.report, "report", "", "Write a reconciliation workbook (.xlsx) to this path.")
	fs.StringVar(&o.now, "now", "", "RFC3339 clock override for reproducible output.")
	fs.StringVar(&o.routing, "routing", "", "Routing number when no statement JSON is given.")
	fs.StringVar(&o.account, "account", "", "Account number when no statement JSON is given.")
	fs.StringVar(&o.bank, "bank", "", "Bank name when no statement JSON is given.")
	fs.StringVar(&o.opening, "opening", "", "Opening ledger balance when no statement JSON is given.")
	fs.StringVar(&o.closing, "closing", "", "Closing ledger balance when no statement JSON is given.")
	fs.StringVar(&o.logLevel, "log", "warn", "Log level.")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	logger.SetOutput(stderr)
	logger.Init(o.logLevel)

	if err := o.validate(); err != nil {
		fmt.Fprintln(stderr, "convert:", err)
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "convert:", err)
		return exitUsage
	}

	now := time.Now
	if o.now != "" {
		t, err := time.Parse(time.RFC3339, o.now)
		if err != nil {
			fmt.Fprintln(stderr, "convert: invalid -now:", err)
			return exitUsage
		}
		now = func() time.Time { return t }
	}

	c := &converter{opts: o, cfg: cfg, now: now, stdout: stdout}
	defer c.close()

	conv, err := c.convert(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "convert:", err)
		return exitUsage
	}

	dest, err := c.write(ctx, conv)
	if err != nil {
		fmt.Fprintln(stderr, "convert:", err)
		return exitUsage
	}

	if o.report != "" {
		if err := c.writeReport(conv); err != nil {
			fmt.Fprintln(stderr, "convert:", err)
			return exitUsage
		}
	}

	printStatus(stderr, conv, dest)

	switch conv.Run.Status {
	case domain.StatusFailed:
		return exitFailed
	case domain.StatusError:
		return exitError
	}
	return exitOK
}

func (o options) validate() error {
	if o.in != "" && o.pdf != "" {
		return errors.New("use either -in or -pdf, not both")
	}
	if o.pdf != "" && o.csv != "" {
		return errors.New("-csv cannot be combined with -pdf")
	}
	if o.in == "" && o.pdf == "" && o.csv == "" {
		return errors.New("one of -in, -pdf or -csv is required")
	}
	return nil
}

type converter struct {
	opts   options
	cfg    *config.Config
	now    func() time.Time
	stdout io.Writer

	gcs *storage.GCSStore
	svc service.ConversionService
}

func (c *converter) close() {
	if c.gcs != nil {
		c.gcs.Close()
	}
}

// service builds the conversion service on first use, adding GCS and extraction only when needed.
func (c *converter) service(ctx context.Context) (service.ConversionService, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	opts := []service.Option{service.WithClock(c.now)}
	if c.opts.pdf != "" {
		extractor, err := extract.NewGeminiExtractor(ctx, c.cfg.Extraction.APIKey, c.cfg.Extraction.Model)
		if err != nil {
			return nil, err
		}
		opts = append(opts, service.WithExtractor(extractor))
	}
	c.svc = service.NewConversionService(repository.NewMemoryConversionRepository(), c.cfg.BAI2, opts...)
	return c.svc, nil
}

func (c *converter) store(ctx context.Context) (storage.ObjectStore, error) {
	if c.gcs == nil {
		s, err := storage.NewGCSStore(ctx)
		if err != nil {
			return nil, err
		}
		c.gcs = s
	}
	return c.gcs, nil
}

func (c *converter) read(ctx context.Context, location string) ([]byte, error) {
	if storage.IsGCSURI(location) {
		s, err := c.store(ctx)
		if err != nil {
			return nil, err
		}
		return s.Fetch(ctx, location)
	}
	return os.ReadFile(location)
}

func (c *converter) convert(ctx context.Context) (*service.Conversion, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case c.opts.pdf != "":
		pdf, err := c.read(ctx, c.opts.pdf)
		if err != nil {
			return nil, err
		}
		return svc.ConvertPDF(ctx, pdf, baseName(c.opts.pdf))

	case c.opts.csv == "":
		data, err := c.read(ctx, c.opts.in)
		if err != nil {
			return nil, err
		}
		return svc.ConvertJSON(ctx, data, baseName(c.opts.in))
	}

	var stmt *domain.Statement
	if c.opts.in != "" {
		data, err := c.read(ctx, c.opts.in)
		if err != nil {
			return nil, err
		}
		stmt, err = parser.NewStatementParser(c.cfg.BAI2.DateTwoDigitPivot).WithClock(c.now).ParseBytes(data)
		if err != nil {
			// An unreadable statement still yields its error file.
			return svc.ConvertJSON(ctx, data, baseName(c.opts.in))
		}
		if stmt.SourceFilename == "" {
			stmt.SourceFilename = baseName(c.opts.in)
		}
	} else {
		if stmt, err = c.flagStatement(); err != nil {
			return nil, err
		}
	}

	if err := c.appendCSV(ctx, stmt); err != nil {
		return nil, err
	}
	return svc.Convert(ctx, stmt)
}

func (c *converter) flagStatement() (*domain.Statement, error) {
	stmt := &domain.Statement{
		RoutingNumber:  c.opts.routing,
		AccountNumber:  c.opts.account,
		BankName:       c.opts.bank,
		SourceFilename: baseName(c.opts.csv),
	}
	for _, b := range []struct {
		flag, value string
		dst         **domain.Balance
	}{
		{"-opening", c.opts.opening, &stmt.OpeningBalance},
		{"-closing", c.opts.closing, &stmt.ClosingBalance},
	} {
		if b.value == "" {
			continue
		}
		cents, err := normalize.ParseCents(b.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", b.flag, err)
		}
		*b.dst = &domain.Balance{Amount: cents}
	}
	return stmt, nil
}

func (c *converter) appendCSV(ctx context.Context, stmt *domain.Statement) error {
	data, err := c.read(ctx, c.opts.csv)
	if err != nil {
		return err
	}

	dc := normalize.DateContext{Pivot: c.cfg.BAI2.DateTwoDigitPivot, Today: c.now()}
	if stmt.Period != nil {
		if t, err := normalize.ParseYYMMDD(stmt.Period.StartDate, dc.Pivot); err == nil {
			dc.PeriodStart = t
		}
		if t, err := normalize.ParseYYMMDD(stmt.Period.EndDate, dc.Pivot); err == nil {
			dc.PeriodEnd = t
		}
	}

	txs, skipped, err := parser.NewTransactionCSVParser(dc).ReadAll(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("read %s: %w", c.opts.csv, err)
	}
	stmt.Transactions = append(stmt.Transactions, txs...)
	stmt.DroppedTransactions += skipped
	return nil
}

// write stores the output and returns where it went.
func (c *converter) write(ctx context.Context, conv *service.Conversion) (string, error) {
	name := conv.Run.OutputFilename
	dest := c.opts.out

	switch {
	case dest == "-":
		_, err := c.stdout.Write(conv.Output)
		return "stdout", err

	case storage.IsGCSURI(dest):
		s, err := c.store(ctx)
		if err != nil {
			return "", err
		}
		uri := storage.OutputURI(dest, name)
		return uri, s.Put(ctx, uri, conv.Output, "text/plain; charset=us-ascii")

	case dest == "":
		dest = name

	case strings.HasSuffix(dest, "/") || isDir(dest):
		dest = filepath.Join(dest, name)
	}

	if err := os.WriteFile(dest, conv.Output, 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

func (c *converter) writeReport(conv *service.Conversion) error {
	f, err := os.Create(c.opts.report)
	if err != nil {
		return err
	}
	defer f.Close()

	svc, _ := c.service(context.Background())
	return report.WriteWorkbook(f, report.Input{
		RunID:          conv.Run.RunID,
		OutputFilename: conv.Run.OutputFilename,
		Statement:      conv.Statement,
		Result:         conv.Result,
		Classifier:     svc.Pipeline().Classifier(),
	})
}

func printStatus(w io.Writer, conv *service.Conversion, dest string) {
	run := conv.Run

	var badge *color.Color
	switch run.Status {
	case domain.StatusComplete:
		badge = color.New(color.BgGreen, color.FgBlack)
	case domain.StatusPartial:
		badge = color.New(color.BgHiYellow, color.FgBlack)
	default:
		badge = color.New(color.BgRed, color.FgWhite)
	}

	badge.Fprintf(w, " %-8s ", run.Status)
	fmt.Fprintf(w, " %s -> %s\n", displaySource(run.SourceFilename), dest)
	fmt.Fprintf(w, "  credits %s (%d)  debits %s (%d)  difference %s\n",
		normalize.FormatDollars(run.TotalCreditsCents), run.CreditCount,
		normalize.FormatDollars(run.TotalDebitsCents), run.DebitCount,
		normalize.FormatDollars(run.DifferenceCents))
	if len(run.ErrorCodes) > 0 {
		codes := make([]string, len(run.ErrorCodes))
		for i, code := range run.ErrorCodes {
			codes[i] = string(code)
		}
		color.New(color.FgYellow).Fprintf(w, "  codes: %s\n", strings.Join(codes, ", "))
	}
	for _, warning := range run.Warnings {
		color.New(color.FgYellow).Fprintf(w, "  warning: %s\n", warning)
	}
}

func displaySource(s string) string {
	if s == "" {
		return "(statement)"
	}
	return s
}

func baseName(location string) string {
	if storage.IsGCSURI(location) {
		return storage.FilenameFromURI(location)
	}
	return filepath.Base(location)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
