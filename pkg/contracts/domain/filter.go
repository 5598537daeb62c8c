package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/blake2b"
)

// PeptideFilterKind identifies a peptide-level rule
type PeptideFilterKind string

const (
	PeptideFilterUnique           PeptideFilterKind = "Unique"
	PeptideFilterTryptic          PeptideFilterKind = "Tryptic"
	PeptideFilterTotalIntensity   PeptideFilterKind = "TotalIntensity"
	PeptideFilterChannelIntensity PeptideFilterKind = "ChannelIntensity"
	PeptideFilterChannelCV        PeptideFilterKind = "ChannelCV"
)

// ProteinFilterKind identifies a protein-level rule
type ProteinFilterKind string

const (
	ProteinFilterExcludeReverse ProteinFilterKind = "ExcludeReverse"
	ProteinFilterSequenceCounts ProteinFilterKind = "SequenceCounts"
)

// PeptideFilter is a predicate over a single peptide. Only the parameters
// belonging to Kind are meaningful; Channel and Channels are 1-based.
type PeptideFilter struct {
	Kind      PeptideFilterKind `validate:"required,oneof=Unique Tryptic TotalIntensity ChannelIntensity ChannelCV"`
	Threshold float64           `validate:"gte=0"`
	Channel   int               `validate:"gte=0"`
	Channels  []int             `validate:"dive,min=1"`
}

// ProteinFilter is a predicate over a protein whose peptides were already pruned
type ProteinFilter struct {
	Kind      ProteinFilterKind `validate:"required,oneof=ExcludeReverse SequenceCounts"`
	Threshold uint32
}

// Filter is an ordered, serializable set of peptide and protein rules.
// The zero value passes everything.
type Filter struct {
	Name           string          `json:"name,omitempty" yaml:"name,omitempty"`
	PeptideFilters []PeptideFilter `json:"peptide_filters" yaml:"peptide_filters" validate:"dive"`
	ProteinFilters []ProteinFilter `json:"protein_filters" yaml:"protein_filters" validate:"dive"`
}

var filterValidator = validator.New()

// UniqueFilter keeps peptides whose sequence maps to a single protein
func UniqueFilter() PeptideFilter {
	return PeptideFilter{Kind: PeptideFilterUnique}
}

// TrypticFilter keeps fully tryptic peptides
func TrypticFilter() PeptideFilter {
	return PeptideFilter{Kind: PeptideFilterTryptic}
}

// TotalIntensityFilter keeps peptides whose summed intensity reaches threshold
func TotalIntensityFilter(threshold float64) PeptideFilter {
	return PeptideFilter{Kind: PeptideFilterTotalIntensity, Threshold: threshold}
}

// ChannelIntensityFilter keeps peptides whose intensity in channel reaches threshold
func ChannelIntensityFilter(channel int, threshold float64) PeptideFilter {
	return PeptideFilter{Kind: PeptideFilterChannelIntensity, Channel: channel, Threshold: threshold}
}

// ChannelCVFilter keeps peptides whose coefficient of variation across
// channels does not exceed threshold
func ChannelCVFilter(channels []int, threshold float64) PeptideFilter {
	chs := make([]int, len(channels))
	copy(chs, channels)
	return PeptideFilter{Kind: PeptideFilterChannelCV, Channels: chs, Threshold: threshold}
}

// ExcludeReverseFilter drops decoy proteins
func ExcludeReverseFilter() ProteinFilter {
	return ProteinFilter{Kind: ProteinFilterExcludeReverse}
}

// SequenceCountsFilter keeps proteins with at least threshold distinct retained sequences
func SequenceCountsFilter(threshold uint32) ProteinFilter {
	return ProteinFilter{Kind: ProteinFilterSequenceCounts, Threshold: threshold}
}

// NewFilter returns the identity filter
func NewFilter() *Filter {
	return &Filter{
		PeptideFilters: []PeptideFilter{},
		ProteinFilters: []ProteinFilter{},
	}
}

// AddPeptideFilter appends a peptide rule and returns the filter for chaining
func (f *Filter) AddPeptideFilter(pf PeptideFilter) *Filter {
	f.PeptideFilters = append(f.PeptideFilters, pf)
	return f
}

// AddProteinFilter appends a protein rule and returns the filter for chaining
func (f *Filter) AddProteinFilter(pf ProteinFilter) *Filter {
	f.ProteinFilters = append(f.ProteinFilters, pf)
	return f
}

// IsIdentity reports whether the filter has no rules
func (f *Filter) IsIdentity() bool {
	return f == nil || (len(f.PeptideFilters) == 0 && len(f.ProteinFilters) == 0)
}

// Passes evaluates the rule against one peptide
func (pf PeptideFilter) Passes(p *Peptide) bool {
	switch pf.Kind {
	case PeptideFilterUnique:
		return p.Unique
	case PeptideFilterTryptic:
		return p.Tryptic
	case PeptideFilterTotalIntensity:
		return float64(p.Sum()) >= pf.Threshold
	case PeptideFilterChannelIntensity:
		if pf.Channel < 1 || pf.Channel > len(p.Values) {
			return false
		}
		return float64(p.Values[pf.Channel-1]) >= pf.Threshold
	case PeptideFilterChannelCV:
		cv, ok := coefficientOfVariation(p.Values, pf.Channels)
		return ok && cv <= pf.Threshold
	default:
		return false
	}
}

// coefficientOfVariation computes population stddev / mean over the selected
// 1-based channels. ok is false when the CV is undefined.
func coefficientOfVariation(values []uint64, channels []int) (float64, bool) {
	if len(channels) == 0 {
		return 0, false
	}
	var sum float64
	for _, ch := range channels {
		if ch < 1 || ch > len(values) {
			return 0, false
		}
		sum += float64(values[ch-1])
	}
	n := float64(len(channels))
	mean := sum / n
	if mean == 0 {
		return 0, false
	}
	var sq float64
	for _, ch := range channels {
		d := float64(values[ch-1]) - mean
		sq += d * d
	}
	return math.Sqrt(sq/n) / mean, true
}

// Passes evaluates the rule against a protein after peptide pruning
func (pf ProteinFilter) Passes(p *Protein) bool {
	switch pf.Kind {
	case ProteinFilterExcludeReverse:
		return !p.Reverse
	case ProteinFilterSequenceCounts:
		return p.DistinctSequences() >= int(pf.Threshold)
	default:
		return false
	}
}

// PassesPeptide reports whether every peptide rule accepts p
func (f *Filter) PassesPeptide(p *Peptide) bool {
	if f == nil {
		return true
	}
	for _, pf := range f.PeptideFilters {
		if !pf.Passes(p) {
			return false
		}
	}
	return true
}

// PassesProtein reports whether every protein rule accepts p
func (f *Filter) PassesProtein(p *Protein) bool {
	if f == nil {
		return true
	}
	for _, pf := range f.ProteinFilters {
		if !pf.Passes(p) {
			return false
		}
	}
	return true
}

// Validate checks rule parameters. It does not know the channel count of
// the data the filter will be applied to; see CheckChannels.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	if err := filterValidator.Struct(f); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}
	for i, pf := range f.PeptideFilters {
		if math.IsInf(pf.Threshold, 0) || math.IsNaN(pf.Threshold) {
			return fmt.Errorf("peptide filter %d (%s): threshold must be finite", i, pf.Kind)
		}
		switch pf.Kind {
		case PeptideFilterChannelIntensity:
			if pf.Channel < 1 {
				return fmt.Errorf("peptide filter %d (%s): channel must be >= 1, got %d", i, pf.Kind, pf.Channel)
			}
		case PeptideFilterChannelCV:
			if len(pf.Channels) == 0 {
				return fmt.Errorf("peptide filter %d (%s): at least one channel is required", i, pf.Kind)
			}
		}
	}
	return nil
}

// CheckChannels reports rules that reference channels beyond the given
// channel count. Such rules reject every peptide.
func (f *Filter) CheckChannels(channels int) error {
	if f == nil {
		return nil
	}
	var problems []string
	for i, pf := range f.PeptideFilters {
		switch pf.Kind {
		case PeptideFilterChannelIntensity:
			if pf.Channel > channels {
				problems = append(problems, fmt.Sprintf("peptide filter %d (%s) uses channel %d", i, pf.Kind, pf.Channel))
			}
		case PeptideFilterChannelCV:
			for _, ch := range pf.Channels {
				if ch > channels {
					problems = append(problems, fmt.Sprintf("peptide filter %d (%s) uses channel %d", i, pf.Kind, ch))
					break
				}
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("dataset has %d channels: %s", channels, strings.Join(problems, "; "))
	}
	return nil
}

// Fingerprint returns a stable digest of the rules (the name is ignored)
func (f *Filter) Fingerprint() (string, error) {
	rules := Filter{}
	if f != nil {
		rules.PeptideFilters = f.PeptideFilters
		rules.ProteinFilters = f.ProteinFilters
	}
	data, err := json.Marshal(&rules)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ExampleFilter returns the sample configuration shipped with the tool
func ExampleFilter() *Filter {
	f := NewFilter()
	f.Name = "example"
	return f.
		AddPeptideFilter(ChannelIntensityFilter(1, 1000)).
		AddPeptideFilter(ChannelCVFilter([]int{1, 2}, 0.6)).
		AddPeptideFilter(UniqueFilter()).
		AddPeptideFilter(TrypticFilter()).
		AddPeptideFilter(TotalIntensityFilter(5000)).
		AddProteinFilter(ExcludeReverseFilter()).
		AddProteinFilter(SequenceCountsFilter(2))
}
