package exporter

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// Supported output formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// TableWriter writes an output table to a file or stream
type TableWriter interface {
	Format() string
	WriteTable(filePath string, table *domain.Table) error
	Encode(out io.Writer, table *domain.Table) error
}

// NewTableWriter returns the writer for a format name
func NewTableWriter(format string, bom bool) (TableWriter, error) {
	switch strings.ToLower(format) {
	case "", FormatCSV:
		return NewCSVWriter(bom), nil
	case FormatXLSX:
		return NewXLSXWriter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// OutputPath derives the output file for an input file: the extension is
// replaced by the format's, and the file is moved into outDir when set.
func OutputPath(inputPath, outDir, format string) string {
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + format
	if outDir == "" {
		return base
	}
	return filepath.Join(outDir, filepath.Base(base))
}
