package domain

import (
	"fmt"
)

// Dataset is the parsed content of one census file
type Dataset struct {
	Channels int       `json:"channels" validate:"min=1"`
	Proteins []Protein `json:"proteins"`
}

// Protein is a protein locus together with the peptides quantified for it
type Protein struct {
	Accession     string    `json:"accession"`
	Description   string    `json:"description"`
	SpectralCount uint32    `json:"spectral_count"`
	SequenceCount uint32    `json:"sequence_count"`
	Reverse       bool      `json:"reverse"`
	Peptides      []Peptide `json:"peptides"`
}

// Peptide is one quantified peptide-spectrum match with its reporter ion intensities
type Peptide struct {
	Sequence string   `json:"sequence"`
	Values   []uint64 `json:"values"`
	Unique   bool     `json:"unique"`
	Tryptic  bool     `json:"tryptic"`
}

// Total returns the element-wise sum of all peptide intensity vectors.
// The result always has length channels, even for a protein without peptides.
func (p *Protein) Total(channels int) []uint64 {
	total := make([]uint64, channels)
	for _, pep := range p.Peptides {
		for i, v := range pep.Values {
			if i < channels {
				total[i] += v
			}
		}
	}
	return total
}

// DistinctSequences counts the distinct peptide sequences of the protein
func (p *Protein) DistinctSequences() int {
	seen := make(map[string]struct{}, len(p.Peptides))
	for _, pep := range p.Peptides {
		seen[pep.Sequence] = struct{}{}
	}
	return len(seen)
}

// Sum returns the total intensity across all channels
func (p *Peptide) Sum() uint64 {
	var sum uint64
	for _, v := range p.Values {
		sum += v
	}
	return sum
}

// Clone returns a deep copy of the peptide
func (p Peptide) Clone() Peptide {
	values := make([]uint64, len(p.Values))
	copy(values, p.Values)
	p.Values = values
	return p
}

// PeptideCount returns the number of peptide entries across all proteins
func (d *Dataset) PeptideCount() int {
	n := 0
	for i := range d.Proteins {
		n += len(d.Proteins[i].Peptides)
	}
	return n
}

// Validate checks that every peptide carries exactly Channels intensity values
func (d *Dataset) Validate() error {
	if d.Channels < 1 {
		return fmt.Errorf("dataset must have at least one channel, got %d", d.Channels)
	}
	for _, prot := range d.Proteins {
		for _, pep := range prot.Peptides {
			if len(pep.Values) != d.Channels {
				return fmt.Errorf("peptide %s of %s has %d values, expected %d",
					pep.Sequence, prot.Accession, len(pep.Values), d.Channels)
			}
		}
	}
	return nil
}
