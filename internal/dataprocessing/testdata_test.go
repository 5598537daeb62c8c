package dataprocessing

import (
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// scenarioDataset is the two-channel, single-protein dataset used across tests
func scenarioDataset() *domain.Dataset {
	return &domain.Dataset{
		Channels: 2,
		Proteins: []domain.Protein{
			{
				Accession:     "P1",
				Description:   "Protein one, isoform 2",
				SpectralCount: 3,
				SequenceCount: 2,
				Peptides: []domain.Peptide{
					{Sequence: "AAA", Values: []uint64{10, 20}, Unique: true, Tryptic: true},
					{Sequence: "AAA", Values: []uint64{5, 5}, Unique: true, Tryptic: false},
					{Sequence: "BBB", Values: []uint64{100, 200}, Unique: false, Tryptic: true},
				},
			},
		},
	}
}

// mixedDataset has several proteins including a decoy and a shared sequence
func mixedDataset() *domain.Dataset {
	return &domain.Dataset{
		Channels: 3,
		Proteins: []domain.Protein{
			{
				Accession: "P1", Description: "first", SpectralCount: 4, SequenceCount: 3,
				Peptides: []domain.Peptide{
					{Sequence: "K.AAAK.L", Values: []uint64{100, 110, 90}, Unique: true, Tryptic: true},
					{Sequence: "K.CCCR.L", Values: []uint64{1, 2, 3}, Unique: true, Tryptic: true},
					{Sequence: "K.AAAK.L", Values: []uint64{50, 0, 50}, Unique: true, Tryptic: true},
					{Sequence: "K.DDDF.L", Values: []uint64{1000, 1000, 1000}, Unique: false, Tryptic: false},
				},
			},
			{
				Accession: "Reverse_P2", Description: "decoy", SpectralCount: 1, SequenceCount: 1,
				Peptides: []domain.Peptide{
					{Sequence: "R.EEEK.A", Values: []uint64{500, 500, 500}, Unique: true, Tryptic: true},
				},
			},
			{
				Accession: "P3", Description: "shares a sequence", SpectralCount: 2, SequenceCount: 1,
				Peptides: []domain.Peptide{
					{Sequence: "K.AAAK.L", Values: []uint64{7, 7, 7}, Unique: false, Tryptic: true},
					{Sequence: "K.AAAK.L", Values: []uint64{3, 3, 3}, Unique: false, Tryptic: true},
				},
			},
		},
	}
}
