package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/lazear/census2csv/internal/dataprocessing"
	apperrors "github.com/lazear/census2csv/internal/errors"
	"github.com/lazear/census2csv/internal/exporter"
	"github.com/lazear/census2csv/internal/infrastructure"
	"github.com/lazear/census2csv/internal/validation"
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// ConversionOptions configures a ConversionService
type ConversionOptions struct {
	Processing dataprocessing.ProcessingOptions
	Filter     *domain.Filter
	Writer     exporter.TableWriter
	OutputDir  string
	Workers    int
	Metrics    *infrastructure.PipelineMetrics
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

// Job is one in-memory conversion: a filter and the options to apply it with
type Job struct {
	Options dataprocessing.ProcessingOptions
	Filter  *domain.Filter
}

// FileResult reports the outcome of converting one census file
type FileResult struct {
	Input    string                          `json:"input"`
	Output   string                          `json:"output,omitempty"`
	Rows     int                             `json:"rows"`
	Stats    dataprocessing.FilterStatistics `json:"stats"`
	Duration time.Duration                   `json:"duration"`
	Err      error                           `json:"-"`
}

// BatchReport collects file results in input order
type BatchReport struct {
	// RunID is the trace ID shared by every log line of the batch
	RunID   string
	Results []FileResult
	Failed  int
}

// Err returns a summary error when any file failed
func (b *BatchReport) Err() error {
	if b.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", b.Failed, len(b.Results))
}

// ConversionTotals are the running counters exposed by the health endpoint
type ConversionTotals struct {
	FilesConverted int64 `json:"files_converted"`
	FilesFailed    int64 `json:"files_failed"`
	RowsWritten    int64 `json:"rows_written"`
}

// ConversionService runs the parse, filter, aggregate and write pipeline
type ConversionService struct {
	opts        ConversionOptions
	pipeline    *dataprocessing.Pipeline
	validator   *validation.FileValidator
	fingerprint string

	filesConverted atomic.Int64
	filesFailed    atomic.Int64
	rowsWritten    atomic.Int64
}

// NewConversionService validates the filter and prepares the pipeline
func NewConversionService(opts ConversionOptions) (*ConversionService, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = infrastructure.WithComponent(opts.Logger, "conversion")
	if opts.Tracer == nil {
		opts.Tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Writer == nil {
		opts.Writer = exporter.NewCSVWriter(false)
	}
	if opts.Processing.Mode == "" {
		opts.Processing.Mode = dataprocessing.ModeProtein
	}
	if opts.Metrics == nil {
		metrics, err := infrastructure.CreatePipelineMetrics(infrastructure.NewNoopProviders(opts.Logger).Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
		opts.Metrics = metrics
	}

	if err := opts.Filter.Validate(); err != nil {
		return nil, apperrors.NewConfigError("invalid filter", err)
	}
	fingerprint, err := opts.Filter.Fingerprint()
	if err != nil {
		return nil, apperrors.NewConfigError("invalid filter", err)
	}

	opts.Logger.Info("Conversion service ready",
		slog.String("mode", string(opts.Processing.Mode)),
		slog.String("format", opts.Writer.Format()),
		slog.Int("workers", opts.Workers),
		slog.String("filter_name", filterName(opts.Filter)),
		slog.Bool("filter_identity", opts.Filter.IsIdentity()),
		slog.String("filter_fingerprint", fingerprint))

	return &ConversionService{
		opts:        opts,
		pipeline:    dataprocessing.NewPipeline(opts.Processing),
		validator:   validation.NewFileValidator(opts.Logger),
		fingerprint: fingerprint,
	}, nil
}

// Fingerprint returns the digest of the service's filter
func (s *ConversionService) Fingerprint() string {
	return s.fingerprint
}

// Processing returns the options files are converted with
func (s *ConversionService) Processing() dataprocessing.ProcessingOptions {
	return s.opts.Processing
}

// Totals returns the counters accumulated since the service was created
func (s *ConversionService) Totals() ConversionTotals {
	return ConversionTotals{
		FilesConverted: s.filesConverted.Load(),
		FilesFailed:    s.filesFailed.Load(),
		RowsWritten:    s.rowsWritten.Load(),
	}
}

// Convert parses a census stream and runs a job over it without writing
// anything. It backs the HTTP API.
func (s *ConversionService) Convert(ctx context.Context, r io.Reader, job Job) (*dataprocessing.Result, error) {
	ctx, span := s.opts.Tracer.Start(ctx, "census.convert",
		trace.WithAttributes(attribute.String("census.mode", string(job.Options.Mode))))
	defer span.End()

	start := time.Now()
	result, err := s.run(ctx, job, func() (*domain.Dataset, error) {
		return dataprocessing.ParseCensus(r, job.Options.Parser)
	})
	s.record(ctx, string(job.Options.Mode), result, time.Since(start), err)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	return result, nil
}

// run parses, checks channels and processes. parse is invoked once.
func (s *ConversionService) run(ctx context.Context, job Job, parse func() (*domain.Dataset, error)) (*dataprocessing.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds, err := parse()
	if err != nil {
		return nil, err
	}

	if err := job.Filter.CheckChannels(ds.Channels); err != nil {
		s.opts.Logger.WarnContext(ctx, "Filter references missing channels; affected rules reject every peptide",
			slog.String("warning", err.Error()))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pipeline := s.pipeline
	if job.Options != s.pipeline.Options() {
		pipeline = dataprocessing.NewPipeline(job.Options)
	}
	return pipeline.Process(ds, job.Filter)
}

// ConvertFile converts one census file and writes the table next to it
// (or into the output directory).
func (s *ConversionService) ConvertFile(ctx context.Context, path string) FileResult {
	ctx, span := s.opts.Tracer.Start(ctx, "census.convert_file",
		trace.WithAttributes(
			attribute.String("census.file", path),
			attribute.String("census.mode", string(s.opts.Processing.Mode)),
		))
	defer span.End()

	logger := infrastructure.WithFile(s.opts.Logger, path)
	start := time.Now()
	res := FileResult{Input: path}

	s.opts.Metrics.ActiveConversions.Add(ctx, 1)
	defer s.opts.Metrics.ActiveConversions.Add(ctx, -1)

	result, err := s.convertFile(ctx, path, &res)
	res.Duration = time.Since(start)
	res.Err = err
	s.record(ctx, string(s.opts.Processing.Mode), result, res.Duration, err)

	if err != nil {
		infrastructure.RecordError(ctx, err)
		logger.ErrorContext(ctx, "Conversion failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", res.Duration))
		return res
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"census.rows":         res.Rows,
		"census.peptides_out": res.Stats.PeptidesOut,
	})
	logger.InfoContext(ctx, "Converted census file",
		slog.String("output", res.Output),
		slog.Int("rows", res.Rows),
		slog.Int("proteins_kept", res.Stats.ProteinsOut),
		slog.Int("proteins_dropped", res.Stats.ProteinsDropped()),
		slog.Int("peptides_kept", res.Stats.PeptidesOut),
		slog.Int("peptides_dropped", res.Stats.PeptidesDropped()),
		slog.Duration("duration", res.Duration))
	return res
}

func (s *ConversionService) convertFile(ctx context.Context, path string, res *FileResult) (*dataprocessing.Result, error) {
	if err := s.validator.ValidateInputFile(path); err != nil {
		return nil, err
	}

	job := Job{Options: s.opts.Processing, Filter: s.opts.Filter}
	result, err := s.run(ctx, job, func() (*domain.Dataset, error) {
		return dataprocessing.ParseFile(path, s.opts.Processing.Parser)
	})
	if err != nil {
		return nil, err
	}
	res.Stats = result.Stats
	res.Rows = result.Table.Len()

	out := exporter.OutputPath(path, s.opts.OutputDir, s.opts.Writer.Format())
	if out == path {
		return nil, apperrors.NewAppValidationError("output would overwrite the census file").WithContext("path", path)
	}
	if err := s.opts.Writer.WriteTable(out, result.Table); err != nil {
		return nil, apperrors.NewStorageError("failed to write output", err).WithContext("path", out)
	}
	res.Output = out
	return result, nil
}

// ConvertFiles converts every path with at most Workers files in flight.
// One failed file does not stop the others; cancelling ctx stops new files
// from starting and marks them as failed with the context error.
func (s *ConversionService) ConvertFiles(ctx context.Context, paths []string) *BatchReport {
	ctx = infrastructure.EnsureTraceID(ctx)
	report := &BatchReport{
		RunID:   infrastructure.GetTraceID(ctx),
		Results: make([]FileResult, len(paths)),
	}

	collisions := s.outputCollisions(paths)

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			report.Results[i] = FileResult{Input: path, Err: err}
			continue
		}
		if err := collisions[i]; err != nil {
			s.record(ctx, string(s.opts.Processing.Mode), nil, 0, err)
			infrastructure.WithFile(s.opts.Logger, path).ErrorContext(ctx, "Conversion failed",
				slog.String("error", err.Error()))
			report.Results[i] = FileResult{Input: path, Err: err}
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.Results[i] = FileResult{Input: path, Err: err}
				return nil
			}
			report.Results[i] = s.ConvertFile(ctx, path)
			return nil
		})
	}
	g.Wait()

	for _, r := range report.Results {
		if r.Err != nil {
			report.Failed++
		}
	}

	s.opts.Logger.InfoContext(ctx, "Batch finished",
		slog.Int("files", len(paths)),
		slog.Int("failed", report.Failed),
		slog.Bool("cancelled", errors.Is(ctx.Err(), context.Canceled)))
	return report
}

// outputCollisions maps the index of every path whose output file was
// already claimed by an earlier path to a VALIDATION error. The first
// claimant keeps the output.
func (s *ConversionService) outputCollisions(paths []string) map[int]error {
	claimed := make(map[string]string, len(paths))
	collisions := make(map[int]error)
	for i, path := range paths {
		out := filepath.Clean(exporter.OutputPath(path, s.opts.OutputDir, s.opts.Writer.Format()))
		if first, ok := claimed[out]; ok {
			collisions[i] = apperrors.NewAppValidationError("output file is already written by another input").
				WithContext("path", out).
				WithContext("input", first)
			continue
		}
		claimed[out] = path
	}
	return collisions
}

func (s *ConversionService) record(ctx context.Context, mode string, result *dataprocessing.Result, d time.Duration, err error) {
	outcome := infrastructure.FileOutcome{Mode: mode, Duration: d, Err: err}
	if err != nil {
		s.filesFailed.Add(1)
	} else if result != nil {
		s.filesConverted.Add(1)
		s.rowsWritten.Add(int64(result.Table.Len()))
		outcome.Rows = result.Table.Len()
		outcome.PeptidesIn = result.Stats.PeptidesIn
		outcome.PeptidesOut = result.Stats.PeptidesOut
		outcome.ProteinsIn = result.Stats.ProteinsIn
		outcome.ProteinsOut = result.Stats.ProteinsOut
	}
	infrastructure.RecordFileMetrics(ctx, s.opts.Metrics, outcome)
}

func filterName(f *domain.Filter) string {
	if f == nil || f.Name == "" {
		return "unnamed"
	}
	return f.Name
}
