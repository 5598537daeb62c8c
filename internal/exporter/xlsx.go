package exporter

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/lazear/census2csv/pkg/contracts/domain"
)

// DefaultSheetName is the worksheet that receives the table
const DefaultSheetName = "census"

// XLSXWriter writes tables as Excel workbooks. Numeric cells are stored as
// numbers so the sheet can be used for calculations directly.
type XLSXWriter struct {
	sheet string
}

// NewXLSXWriter creates an Excel writer
func NewXLSXWriter() *XLSXWriter {
	return &XLSXWriter{sheet: DefaultSheetName}
}

// Format returns the file extension produced by the writer
func (w *XLSXWriter) Format() string {
	return FormatXLSX
}

// WriteTable writes the table to a new workbook at filePath
func (w *XLSXWriter) WriteTable(filePath string, table *domain.Table) error {
	slog.Debug("Writing XLSX file",
		slog.String("file_path", filePath),
		slog.Int("record_count", table.Len()))

	if err := ensureDir(filePath); err != nil {
		return err
	}

	f, err := w.build(table)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Encode writes the workbook to out
func (w *XLSXWriter) Encode(out io.Writer, table *domain.Table) error {
	f, err := w.build(table)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (w *XLSXWriter) build(table *domain.Table) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(w.sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}

	// description column
	if err := sw.SetColWidth(2, 2, 48); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	numeric := numericColumns(table.Header)
	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			if j < len(numeric) && numeric[j] {
				values[j] = cellValue(v)
			} else {
				values[j] = v
			}
		}
		if err := sw.SetRow(cell, values); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to flush sheet: %w", err)
	}

	return f, nil
}
