package dataprocessing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// Mode selects the aggregation reducer
type Mode string

const (
	ModeProtein Mode = "protein"
	ModePeptide Mode = "peptide"
	ModeFlat    Mode = "flat"
)

// ParseMode converts a mode name into a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeProtein:
		return ModeProtein, nil
	case ModePeptide:
		return ModePeptide, nil
	case ModeFlat:
		return ModeFlat, nil
	default:
		return "", fmt.Errorf("unknown aggregation mode %q (want protein, peptide or flat)", s)
	}
}

// Division selects how averaged intensities are computed
type Division string

const (
	// DivisionTruncate uses integer division, matching earlier census2csv output
	DivisionTruncate Division = "truncate"
	// DivisionFloat uses floating point division
	DivisionFloat Division = "float"
)

// SpecCountSource selects the spectral_count column in peptide mode
type SpecCountSource string

const (
	// SpecCountMerged reports how many peptide entries were merged into the sequence row
	SpecCountMerged SpecCountSource = "merged"
	// SpecCountProtein reports the protein's spectral count
	SpecCountProtein SpecCountSource = "protein"
)

// AggregateOptions configures the reducers
type AggregateOptions struct {
	Average   bool            `json:"average" yaml:"average"`
	Division  Division        `json:"division" yaml:"division" validate:"omitempty,oneof=truncate float"`
	SpecCount SpecCountSource `json:"spec_count" yaml:"spec_count" validate:"omitempty,oneof=merged protein"`
}

// DefaultAggregateOptions returns summed, truncating, merged-count options
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{
		Division:  DivisionTruncate,
		SpecCount: SpecCountMerged,
	}
}

// Aggregate reduces a filtered dataset to a table using the given mode
func Aggregate(mode Mode, ds *domain.Dataset, opts AggregateOptions) (*domain.Table, error) {
	switch mode {
	case ModeProtein:
		return CombineProtein(ds, opts), nil
	case ModePeptide:
		return CombinePeptide(ds, opts), nil
	case ModeFlat:
		return Flat(ds), nil
	default:
		return nil, fmt.Errorf("unknown aggregation mode %q", mode)
	}
}

// CombineProtein emits one row per protein with the summed (or averaged)
// intensities of its peptides.
func CombineProtein(ds *domain.Dataset, opts AggregateOptions) *domain.Table {
	table := &domain.Table{
		Header: header(ds.Channels, "spectral_count", "sequence_count"),
		Rows:   make([][]string, 0, len(ds.Proteins)),
	}

	for i := range ds.Proteins {
		prot := &ds.Proteins[i]
		row := []string{
			prot.Accession,
			sanitizeDescription(prot.Description),
			strconv.FormatUint(uint64(prot.SpectralCount), 10),
			strconv.FormatUint(uint64(prot.SequenceCount), 10),
		}
		row = appendChannels(row, prot.Total(ds.Channels), uint64(len(prot.Peptides)), opts)
		table.Rows = append(table.Rows, row)
	}

	return table
}

// sequenceGroup holds the merged intensities of one peptide sequence
type sequenceGroup struct {
	sequence string
	values   []uint64
	count    uint64
}

// groupBySequence merges peptides sharing a sequence. Groups are returned
// in order of first appearance.
func groupBySequence(peptides []domain.Peptide, channels int) []*sequenceGroup {
	index := make(map[string]*sequenceGroup, len(peptides))
	groups := make([]*sequenceGroup, 0, len(peptides))

	for _, pep := range peptides {
		g, ok := index[pep.Sequence]
		if !ok {
			g = &sequenceGroup{sequence: pep.Sequence, values: make([]uint64, channels)}
			index[pep.Sequence] = g
			groups = append(groups, g)
		}
		for i, v := range pep.Values {
			if i < channels {
				g.values[i] += v
			}
		}
		g.count++
	}

	return groups
}

// CombinePeptide emits one row per distinct sequence within each protein.
// Identical sequences in different proteins produce separate rows.
func CombinePeptide(ds *domain.Dataset, opts AggregateOptions) *domain.Table {
	table := &domain.Table{
		Header: header(ds.Channels, "spectral_count", "sequence"),
		Rows:   make([][]string, 0, ds.PeptideCount()),
	}

	for i := range ds.Proteins {
		prot := &ds.Proteins[i]
		description := sanitizeDescription(prot.Description)

		for _, g := range groupBySequence(prot.Peptides, ds.Channels) {
			spec := g.count
			if opts.SpecCount == SpecCountProtein {
				spec = uint64(prot.SpectralCount)
			}
			row := []string{
				prot.Accession,
				description,
				strconv.FormatUint(spec, 10),
				g.sequence,
			}
			row = appendChannels(row, g.values, g.count, opts)
			table.Rows = append(table.Rows, row)
		}
	}

	return table
}

// Flat emits one row per peptide with its raw intensities. Averaging does
// not apply at this level.
func Flat(ds *domain.Dataset) *domain.Table {
	table := &domain.Table{
		Header: header(ds.Channels, "sequence"),
		Rows:   make([][]string, 0, ds.PeptideCount()),
	}

	for i := range ds.Proteins {
		prot := &ds.Proteins[i]
		description := sanitizeDescription(prot.Description)

		for _, pep := range prot.Peptides {
			row := []string{prot.Accession, description, pep.Sequence}
			for _, v := range pep.Values {
				row = append(row, strconv.FormatUint(v, 10))
			}
			table.Rows = append(table.Rows, row)
		}
	}

	return table
}

// header builds accession,description,<fields>,channel_1..channel_N
func header(channels int, fields ...string) []string {
	h := make([]string, 0, 2+len(fields)+channels)
	h = append(h, "accession", "description")
	h = append(h, fields...)
	for i := 1; i <= channels; i++ {
		h = append(h, fmt.Sprintf("channel_%d", i))
	}
	return h
}

// appendChannels formats channel values, dividing by count when averaging.
// A zero count yields 0 for every channel.
func appendChannels(row []string, values []uint64, count uint64, opts AggregateOptions) []string {
	for _, v := range values {
		switch {
		case !opts.Average:
			row = append(row, strconv.FormatUint(v, 10))
		case count == 0:
			row = append(row, "0")
		case opts.Division == DivisionFloat:
			row = append(row, formatFloat(float64(v)/float64(count)))
		default:
			row = append(row, strconv.FormatUint(v/count, 10))
		}
	}
	return row
}

// sanitizeDescription replaces commas so free text cannot break the column layout
func sanitizeDescription(s string) string {
	return strings.ReplaceAll(s, ",", ";")
}

// formatFloat formats an averaged intensity with exactly 2 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
