package dataprocessing

import (
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// CountSource selects where protein spectral/sequence counts come from after filtering
type CountSource string

const (
	// CountsOriginal keeps the counts reported by the census file
	CountsOriginal CountSource = "original"
	// CountsFiltered recomputes the counts from the retained peptides
	CountsFiltered CountSource = "filtered"
)

// FilterOptions tune how a filter is applied to a dataset
type FilterOptions struct {
	CountSource       CountSource `json:"count_source" yaml:"count_source" validate:"omitempty,oneof=original filtered"`
	KeepEmptyProteins bool        `json:"keep_empty_proteins" yaml:"keep_empty_proteins"`
}

// DefaultFilterOptions keeps parser counts and drops proteins left without peptides
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{CountSource: CountsOriginal}
}

// FilterEngine applies peptide and protein rules to a dataset
type FilterEngine struct {
	opts FilterOptions
}

// NewFilterEngine creates a filter engine
func NewFilterEngine(opts FilterOptions) *FilterEngine {
	if opts.CountSource == "" {
		opts.CountSource = CountsOriginal
	}
	return &FilterEngine{opts: opts}
}

// Apply returns a new dataset containing only the peptides and proteins
// accepted by filter. The input dataset is left untouched. A nil filter
// is the identity filter.
func (e *FilterEngine) Apply(ds *domain.Dataset, filter *domain.Filter) *domain.Dataset {
	out := &domain.Dataset{
		Channels: ds.Channels,
		Proteins: make([]domain.Protein, 0, len(ds.Proteins)),
	}

	for i := range ds.Proteins {
		src := &ds.Proteins[i]

		pruned := domain.Protein{
			Accession:     src.Accession,
			Description:   src.Description,
			SpectralCount: src.SpectralCount,
			SequenceCount: src.SequenceCount,
			Reverse:       src.Reverse,
			Peptides:      make([]domain.Peptide, 0, len(src.Peptides)),
		}
		for j := range src.Peptides {
			if filter.PassesPeptide(&src.Peptides[j]) {
				pruned.Peptides = append(pruned.Peptides, src.Peptides[j].Clone())
			}
		}

		if len(pruned.Peptides) == 0 && !e.opts.KeepEmptyProteins {
			continue
		}
		if !filter.PassesProtein(&pruned) {
			continue
		}

		if e.opts.CountSource == CountsFiltered {
			pruned.SpectralCount = uint32(len(pruned.Peptides))
			pruned.SequenceCount = uint32(pruned.DistinctSequences())
		}

		out.Proteins = append(out.Proteins, pruned)
	}

	return out
}

// FilterStatistics summarizes one filter run
type FilterStatistics struct {
	ProteinsIn  int `json:"proteins_in"`
	ProteinsOut int `json:"proteins_out"`
	PeptidesIn  int `json:"peptides_in"`
	PeptidesOut int `json:"peptides_out"`
}

// PeptidesDropped returns the number of peptide entries removed by the filter
func (s FilterStatistics) PeptidesDropped() int {
	return s.PeptidesIn - s.PeptidesOut
}

// ProteinsDropped returns the number of proteins removed by the filter
func (s FilterStatistics) ProteinsDropped() int {
	return s.ProteinsIn - s.ProteinsOut
}

// ApplyWithStats applies the filter and reports before/after counts
func (e *FilterEngine) ApplyWithStats(ds *domain.Dataset, filter *domain.Filter) (*domain.Dataset, FilterStatistics) {
	filtered := e.Apply(ds, filter)

	stats := FilterStatistics{
		ProteinsIn:  len(ds.Proteins),
		ProteinsOut: len(filtered.Proteins),
		PeptidesIn:  ds.PeptideCount(),
		PeptidesOut: filtered.PeptideCount(),
	}

	return filtered, stats
}
