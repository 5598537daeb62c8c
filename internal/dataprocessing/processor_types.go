package dataprocessing

import (
	"github.com/lazear/census2csv/internal/config"
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// Processor turns a parsed dataset into an output table
type Processor interface {
	Process(ds *domain.Dataset, filter *domain.Filter) (*Result, error)
}

// ProcessingOptions configures a full filter-and-aggregate run
type ProcessingOptions struct {
	Mode      Mode             `json:"mode" yaml:"mode" validate:"required,oneof=protein peptide flat"`
	Parser    ParserOptions    `json:"parser" yaml:"parser"`
	Filter    FilterOptions    `json:"filter" yaml:"filter"`
	Aggregate AggregateOptions `json:"aggregate" yaml:"aggregate"`
}

// DefaultOptions returns protein-level sums with parser counts
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{
		Mode:      ModeProtein,
		Parser:    DefaultParserOptions(),
		Filter:    DefaultFilterOptions(),
		Aggregate: DefaultAggregateOptions(),
	}
}

// OptionsFromConfig maps the processing section of the configuration onto
// pipeline options
func OptionsFromConfig(cfg config.ProcessingConfig) (ProcessingOptions, error) {
	opts := DefaultOptions()

	if cfg.Mode != "" {
		mode, err := ParseMode(cfg.Mode)
		if err != nil {
			return ProcessingOptions{}, err
		}
		opts.Mode = mode
	}
	opts.Parser.DecoyPrefix = cfg.DecoyPrefix
	opts.Aggregate.Average = cfg.Average
	if cfg.Division != "" {
		opts.Aggregate.Division = Division(cfg.Division)
	}
	if cfg.SpecCount != "" {
		opts.Aggregate.SpecCount = SpecCountSource(cfg.SpecCount)
	}
	if cfg.Counts != "" {
		opts.Filter.CountSource = CountSource(cfg.Counts)
	}
	opts.Filter.KeepEmptyProteins = cfg.KeepEmpty
	return opts, nil
}

// Result is the output of one run
type Result struct {
	Table    *domain.Table    `json:"table"`
	Stats    FilterStatistics `json:"stats"`
	Channels int              `json:"channels"`
}

// Pipeline applies a filter and one aggregation mode
type Pipeline struct {
	opts   ProcessingOptions
	engine *FilterEngine
}

// NewPipeline creates a pipeline for the given options
func NewPipeline(opts ProcessingOptions) *Pipeline {
	return &Pipeline{
		opts:   opts,
		engine: NewFilterEngine(opts.Filter),
	}
}

// Options returns the options the pipeline was built with
func (p *Pipeline) Options() ProcessingOptions {
	return p.opts
}

// Process filters ds and reduces it to a table
func (p *Pipeline) Process(ds *domain.Dataset, filter *domain.Filter) (*Result, error) {
	filtered, stats := p.engine.ApplyWithStats(ds, filter)

	table, err := Aggregate(p.opts.Mode, filtered, p.opts.Aggregate)
	if err != nil {
		return nil, err
	}

	return &Result{
		Table:    table,
		Stats:    stats,
		Channels: filtered.Channels,
	}, nil
}
