package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lazear/census2csv/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	bom bool
}

// NewCSVWriter creates a new CSV writer instance. bom prefixes files with a
// UTF-8 byte order mark so Excel detects the encoding.
func NewCSVWriter(bom bool) *CSVWriter {
	return &CSVWriter{bom: bom}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// Format returns the file extension produced by the writer
func (w *CSVWriter) Format() string {
	return FormatCSV
}

// WriteTable writes a table to a file, replacing any existing content
func (w *CSVWriter) WriteTable(filePath string, table *domain.Table) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers:   table.Header,
		Records:   table.Rows,
		BOMPrefix: w.bom,
	})
}

// Encode writes a table to an arbitrary writer
func (w *CSVWriter) Encode(out io.Writer, table *domain.Table) error {
	return encodeCSV(out, WriteOptions{
		Headers:   table.Header,
		Records:   table.Rows,
		BOMPrefix: w.bom,
	})
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	slog.Debug("Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	if err := ensureDir(filePath); err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if err := encodeCSV(file, options); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// encodeCSV writes the BOM, header and records
func encodeCSV(out io.Writer, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(out)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func ensureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}
