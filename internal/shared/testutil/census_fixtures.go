package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CensusRow joins tab-separated columns
func CensusRow(cols ...string) string {
	return strings.Join(cols, "\t")
}

// SampleCensus is a two-channel census file with three proteins. The
// decoy and the last protein share the final peptide group.
//
// Protein-mode output without a filter:
//
//	sp|P1|ONE,Protein one; isoform 2,3,2,115,225
//	Reverse_sp|P2|TWO,decoy,1,1,0,7
//	sp|P3|THREE,shares the next peptide,1,1,0,7
func SampleCensus() string {
	lines := []string{
		CensusRow("H", "Census version 2.3"),
		CensusRow("PLINE", "LOCUS", "SPEC_COUNT", "SEQ_COUNT", "DESCRIPTION"),
		CensusRow("SLINE", "UNIQUE", "SEQUENCE", "m/z_126.127726_int", "m/z_127.124761_int"),
		CensusRow("P", "sp|P1|ONE", "3", "2", "Protein one, isoform 2"),
		CensusRow("S", "U", "K.AAAK.L", "10", "20"),
		CensusRow("S", "", "R.AAAK.L", "5", "5"),
		CensusRow("S", "*", "-.BBBR.-", "100", "200"),
		CensusRow("P", "Reverse_sp|P2|TWO", "1", "1", "decoy"),
		CensusRow("P", "sp|P3|THREE", "1", "1", "shares the next peptide"),
		CensusRow("S", "", "K.CCCP.A", "0", "7"),
	}
	return strings.Join(lines, "\n") + "\n"
}

// WriteCensusFile writes content under dir and returns the file path
func WriteCensusFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write census fixture: %v", err)
	}
	return path
}
