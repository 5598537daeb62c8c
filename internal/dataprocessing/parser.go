package dataprocessing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/lazear/census2csv/internal/errors"
	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// Census record types (first column of every line)
const (
	recordHeader        = "H"
	recordProteinHeader = "PLINE"
	recordPeptideHeader = "SLINE"
	recordProtein       = "P"
	recordPeptide       = "S"
)

// Column names used from PLINE / SLINE
const (
	colLocus       = "LOCUS"
	colSpecCount   = "SPEC_COUNT"
	colSeqCount    = "SEQ_COUNT"
	colDescription = "DESCRIPTION"
	colSequence    = "SEQUENCE"
	colUnique      = "UNIQUE"
)

// ParserOptions configures census parsing
type ParserOptions struct {
	// DecoyPrefix marks reverse/decoy accessions. Empty disables decoy detection.
	DecoyPrefix string `json:"decoy_prefix" yaml:"decoy_prefix"`
	// MaxLineBytes bounds the length of a single line
	MaxLineBytes int `json:"max_line_bytes" yaml:"max_line_bytes" validate:"min=0"`
}

// DefaultParserOptions returns the options used for standard census_out files
func DefaultParserOptions() ParserOptions {
	return ParserOptions{
		DecoyPrefix:  "Reverse_",
		MaxLineBytes: 16 * 1024 * 1024,
	}
}

// censusParser holds the state of one parse
type censusParser struct {
	opts ParserOptions
	ds   *domain.Dataset

	proteinCols map[string]int
	peptideCols map[string]int
	intensity   []int

	// indices into ds.Proteins of the current protein group
	group    []int
	lastWasP bool
	line     int
}

// ParseFile reads and parses a census file from disk
func ParseFile(path string, opts ParserOptions) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open census file", err).WithContext("path", path)
	}
	defer f.Close()

	ds, err := ParseCensus(f, opts)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr.WithContext("path", path)
		}
		return nil, err
	}

	slog.Debug("Parsed census file",
		slog.String("path", path),
		slog.Int("channels", ds.Channels),
		slog.Int("proteins", len(ds.Proteins)),
		slog.Int("peptides", ds.PeptideCount()))

	return ds, nil
}

// ParseCensus parses tab-separated census output. Consecutive P rows form a
// protein group; the S rows that follow are attached to every protein of
// the group.
func ParseCensus(r io.Reader, opts ParserOptions) (*domain.Dataset, error) {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = DefaultParserOptions().MaxLineBytes
	}

	p := &censusParser{
		opts: opts,
		ds:   &domain.Dataset{},
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), opts.MaxLineBytes)

	for scanner.Scan() {
		p.line++
		if err := p.parseLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.NewParsingError("failed to read census data", err).WithContext("line", p.line+1)
	}

	if p.proteinCols == nil {
		return nil, apperrors.NewParsingError("no protein section (PLINE) found", nil)
	}
	if p.peptideCols == nil {
		return nil, apperrors.NewParsingError("no peptide section (SLINE) found", nil)
	}

	return p.ds, nil
}

func (p *censusParser) errorf(format string, args ...interface{}) error {
	return apperrors.NewParsingError(fmt.Sprintf(format, args...), nil).
		WithContext("line", p.line)
}

func (p *censusParser) parseLine(line string) error {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}

	fields := strings.Split(line, "\t")
	switch fields[0] {
	case recordHeader:
		return nil
	case recordProteinHeader:
		p.proteinCols = indexColumns(fields)
		if _, ok := p.proteinCols[colLocus]; !ok {
			return p.errorf("PLINE has no %s column", colLocus)
		}
		return nil
	case recordPeptideHeader:
		return p.parsePeptideHeader(fields)
	case recordProtein:
		return p.parseProtein(fields)
	case recordPeptide:
		return p.parsePeptide(fields)
	default:
		// other record types carry nothing we report
		return nil
	}
}

func (p *censusParser) parsePeptideHeader(fields []string) error {
	p.peptideCols = indexColumns(fields)
	if _, ok := p.peptideCols[colSequence]; !ok {
		return p.errorf("SLINE has no %s column", colSequence)
	}

	p.intensity = p.intensity[:0]
	for i, name := range fields {
		if isIntensityColumn(name) {
			p.intensity = append(p.intensity, i)
		}
	}
	if len(p.intensity) == 0 {
		return p.errorf("SLINE has no m/z_<mass>_int intensity columns")
	}
	if p.ds.Channels != 0 && p.ds.Channels != len(p.intensity) {
		return p.errorf("SLINE declares %d channels, previous header declared %d", len(p.intensity), p.ds.Channels)
	}
	p.ds.Channels = len(p.intensity)
	return nil
}

func (p *censusParser) parseProtein(fields []string) error {
	if p.proteinCols == nil {
		return p.errorf("protein row before PLINE")
	}

	accession := column(fields, p.proteinCols, colLocus)
	if accession == "" {
		return p.errorf("protein row without %s", colLocus)
	}

	spec, err := parseCount(column(fields, p.proteinCols, colSpecCount))
	if err != nil {
		return p.errorf("invalid %s: %v", colSpecCount, err)
	}
	seq, err := parseCount(column(fields, p.proteinCols, colSeqCount))
	if err != nil {
		return p.errorf("invalid %s: %v", colSeqCount, err)
	}

	if !p.lastWasP {
		p.group = p.group[:0]
	}
	p.lastWasP = true

	p.ds.Proteins = append(p.ds.Proteins, domain.Protein{
		Accession:     accession,
		Description:   column(fields, p.proteinCols, colDescription),
		SpectralCount: spec,
		SequenceCount: seq,
		Reverse:       p.opts.DecoyPrefix != "" && strings.HasPrefix(accession, p.opts.DecoyPrefix),
		Peptides:      []domain.Peptide{},
	})
	p.group = append(p.group, len(p.ds.Proteins)-1)
	return nil
}

func (p *censusParser) parsePeptide(fields []string) error {
	if p.peptideCols == nil {
		return p.errorf("peptide row before SLINE")
	}
	if len(p.group) == 0 {
		return p.errorf("peptide row before any protein row")
	}
	p.lastWasP = false

	sequence := column(fields, p.peptideCols, colSequence)
	if sequence == "" {
		return p.errorf("peptide row without %s", colSequence)
	}

	values := make([]uint64, len(p.intensity))
	for ch, idx := range p.intensity {
		if idx >= len(fields) {
			return p.errorf("peptide %s has %d columns, expected at least %d", sequence, len(fields), idx+1)
		}
		v, err := parseIntensity(fields[idx])
		if err != nil {
			return p.errorf("peptide %s channel %d: %v", sequence, ch+1, err)
		}
		values[ch] = v
	}

	pep := domain.Peptide{
		Sequence: sequence,
		Values:   values,
		Unique:   isUniqueFlag(column(fields, p.peptideCols, colUnique)),
		Tryptic:  IsTryptic(sequence),
	}
	for _, idx := range p.group {
		p.ds.Proteins[idx].Peptides = append(p.ds.Proteins[idx].Peptides, pep.Clone())
	}
	return nil
}

// indexColumns maps column names to their position in the row
func indexColumns(fields []string) map[string]int {
	cols := make(map[string]int, len(fields))
	for i, name := range fields {
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

// column returns the trimmed value of a named column, or "" if absent
func column(fields []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// isIntensityColumn matches raw reporter ion columns such as m/z_126.127726_int
func isIntensityColumn(name string) bool {
	name = strings.TrimSpace(name)
	return strings.HasPrefix(name, "m/z_") && strings.HasSuffix(name, "_int")
}

func parseCount(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q is not an unsigned integer", s)
	}
	return uint32(v), nil
}

// parseIntensity accepts integer or decimal text and truncates it
func parseIntensity(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative intensity %s", s)
	}
	if f >= math.MaxUint64 {
		return 0, fmt.Errorf("intensity %s out of range", s)
	}
	return uint64(f), nil
}

func isUniqueFlag(s string) bool {
	switch strings.ToLower(s) {
	case "u", "*", "1", "true":
		return true
	default:
		return false
	}
}

// IsTryptic reports whether a flanked peptide (K.PEPTIDER.A) is fully
// tryptic: the preceding residue is K, R or the protein N-terminus, and the
// peptide ends in K or R or at the protein C-terminus. Sequences without
// flanking residues are not considered tryptic.
func IsTryptic(flanked string) bool {
	first := strings.IndexByte(flanked, '.')
	last := strings.LastIndexByte(flanked, '.')
	if first < 0 || first == last {
		return false
	}

	prev := flanked[:first]
	next := flanked[last+1:]
	core := stripModifications(flanked[first+1 : last])
	if core == "" {
		return false
	}

	nTerm := prev == "-" || strings.HasSuffix(prev, "K") || strings.HasSuffix(prev, "R")
	cTerm := next == "-" || core[len(core)-1] == 'K' || core[len(core)-1] == 'R'
	return nTerm && cTerm
}

// stripModifications drops bracketed modification masses and anything that
// is not an amino-acid letter
func stripModifications(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '(' || r == '[':
			depth++
		case r == ')' || r == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0 && r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		}
	}
	return b.String()
}
