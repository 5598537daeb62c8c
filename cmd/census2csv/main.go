// Command census2csv converts census_out files into CSV or XLSX tables,
// combined by protein, by peptide sequence, or flat.
//
//	census2csv -protein -filter filter.json run1.txt run2.txt
//	census2csv -e -a -out converted/ data/
//	census2csv -example filter.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazear/census2csv/internal/config"
	"github.com/lazear/census2csv/internal/dataprocessing"
	"github.com/lazear/census2csv/internal/exporter"
	"github.com/lazear/census2csv/internal/files"
	"github.com/lazear/census2csv/internal/infrastructure"
	"github.com/lazear/census2csv/internal/services"
	"github.com/lazear/census2csv/pkg/contracts"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

// exampleFlag is an optional-value flag: bare -example writes the default
// file unless a single positional argument names it, -example=path writes path
type exampleFlag struct {
	set  bool
	bare bool
	path string
}

func (e *exampleFlag) String() string { return e.path }

func (e *exampleFlag) Set(v string) error {
	e.set = true
	e.bare = false
	if v == "true" {
		e.bare = true
		e.path = config.ExampleFilterFile
		return nil
	}
	if v == "false" {
		e.set = false
		return nil
	}
	e.path = v
	return nil
}

func (e *exampleFlag) IsBoolFlag() bool { return true }

// target resolves the file to write. The flag parser treats "-example FILE"
// as a bare flag followed by a positional argument, so a bare flag takes
// its path from the single remaining argument.
func (e *exampleFlag) target(args []string) (string, error) {
	switch {
	case len(args) == 0:
		return e.path, nil
	case e.bare && len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("-example takes a single file, got extra arguments %q", args)
	}
}

type options struct {
	peptide, protein, flat bool

	filterFile string
	average    bool
	float      bool
	specCount  string
	counts     string
	keepEmpty  bool
	format     string
	outDir     string
	workers    int
	bom        bool
	configFile string
	example    exampleFlag
	version    bool
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&opts.peptide, "peptide", false, "output peptide-level data (one row per sequence per protein)")
	fs.BoolVar(&opts.peptide, "e", false, "shorthand for -peptide")
	fs.BoolVar(&opts.protein, "protein", false, "output protein-level data")
	fs.BoolVar(&opts.protein, "r", false, "shorthand for -protein")
	fs.BoolVar(&opts.flat, "flat", false, "output one row per peptide entry")
	fs.BoolVar(&opts.flat, "F", false, "shorthand for -flat")

	fs.StringVar(&opts.filterFile, "filter", "", "JSON or YAML `file` containing filters to apply")
	fs.StringVar(&opts.filterFile, "f", "", "shorthand for -filter")
	fs.BoolVar(&opts.average, "avg", false, "average intensities by contributing peptide entries (default is sum)")
	fs.BoolVar(&opts.average, "a", false, "shorthand for -avg")
	fs.BoolVar(&opts.float, "float", false, "use floating point division when averaging")
	fs.StringVar(&opts.specCount, "spec-count", "", "peptide-mode spectral_count column: merged or protein")
	fs.StringVar(&opts.counts, "counts", "", "protein counts after filtering: original or filtered")
	fs.BoolVar(&opts.keepEmpty, "keep-empty", false, "keep proteins left without peptides by the filter")
	fs.StringVar(&opts.format, "format", "", "output format: csv or xlsx")
	fs.StringVar(&opts.outDir, "out", "", "write output files into `dir` instead of next to the inputs")
	fs.IntVar(&opts.workers, "workers", 0, "number of files converted concurrently")
	fs.BoolVar(&opts.bom, "bom", false, "prefix CSV output with a UTF-8 byte order mark")
	fs.StringVar(&opts.configFile, "config", "", "YAML configuration `file`")
	fs.BoolVar(&opts.version, "version", false, "print version information and exit")
	fs.Var(&opts.example, "example", "write the example filter to `file` (-example [FILE], default "+config.ExampleFilterFile+") and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s (-protein | -peptide | -flat) [options] INPUT...\n", config.AppName)
		fmt.Fprintf(stderr, "       %s -example [FILE]\n\n", config.AppName)
		fmt.Fprintln(stderr, "INPUT may be files, directories (expanded to *.txt) or glob patterns.")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}
	return fs
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	if opts.example.set {
		path, err := opts.example.target(fs.Args())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			fs.Usage()
			return exitUsage
		}
		if err := config.WriteExampleFilter(path); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFail
		}
		fmt.Fprintf(stdout, "Wrote example filter to %s\n", path)
		return exitOK
	}

	mode, err := opts.mode()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return exitUsage
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: no input files")
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}
	opts.apply(cfg, mode)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: invalid options: %v\n", err)
		return exitUsage
	}

	logger, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}
	defer infrastructure.CloseLogFile()

	return convert(ctx, cfg, fs.Args(), logger, stdout, stderr)
}

// mode returns the aggregation mode selected by exactly one mode flag
func (o *options) mode() (dataprocessing.Mode, error) {
	var selected []dataprocessing.Mode
	if o.protein {
		selected = append(selected, dataprocessing.ModeProtein)
	}
	if o.peptide {
		selected = append(selected, dataprocessing.ModePeptide)
	}
	if o.flat {
		selected = append(selected, dataprocessing.ModeFlat)
	}
	if len(selected) != 1 {
		return "", errors.New("exactly one of -protein, -peptide or -flat is required")
	}
	return selected[0], nil
}

// apply overlays command line flags onto the loaded configuration
func (o *options) apply(cfg *config.Config, mode dataprocessing.Mode) {
	p := &cfg.Processing
	p.Mode = string(mode)
	if o.filterFile != "" {
		p.FilterFile = o.filterFile
	}
	if o.average {
		p.Average = true
	}
	if o.float {
		p.Division = string(dataprocessing.DivisionFloat)
	}
	if o.specCount != "" {
		p.SpecCount = o.specCount
	}
	if o.counts != "" {
		p.Counts = o.counts
	}
	if o.keepEmpty {
		p.KeepEmpty = true
	}
	if o.workers > 0 {
		p.Workers = o.workers
	}
	if o.format != "" {
		cfg.Output.Format = o.format
	}
	if o.outDir != "" {
		cfg.Output.Dir = o.outDir
	}
	if o.bom {
		cfg.Output.BOM = true
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// convert runs the batch and prints one line per file
func convert(ctx context.Context, cfg *config.Config, args []string, logger *slog.Logger, stdout, stderr io.Writer) int {
	filter, err := config.LoadFilter(cfg.Processing.FilterFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}

	processing, err := dataprocessing.OptionsFromConfig(cfg.Processing)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}

	writer, err := exporter.NewTableWriter(cfg.Output.Format, cfg.Output.BOM)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	inputs, err := files.NewDiscovery("").ExpandInputs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}
	if len(inputs) == 0 {
		fmt.Fprintln(stderr, "Error: no census files found")
		return exitFail
	}

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		providers.Shutdown(shutdownCtx)
	}()
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}

	svc, err := services.NewConversionService(services.ConversionOptions{
		Processing: processing,
		Filter:     filter,
		Writer:     writer,
		OutputDir:  cfg.Output.Dir,
		Workers:    cfg.Processing.Workers,
		Metrics:    metrics,
		Tracer:     providers.Tracer,
		Logger:     logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}

	report := svc.ConvertFiles(ctx, inputs)
	for _, r := range report.Results {
		if r.Err != nil {
			fmt.Fprintf(stderr, "Error during processing of file %s: %v\n", r.Input, r.Err)
			continue
		}
		fmt.Fprintf(stdout, "%s -> %s (%d rows)\n", r.Input, r.Output, r.Rows)
	}

	if err := report.Err(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFail
	}
	return exitOK
}
