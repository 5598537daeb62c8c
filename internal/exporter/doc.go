// Package exporter writes aggregated census tables.
//
// This package contains two writers behind the TableWriter interface:
//
// CSVWriter: CSV output with optional UTF-8 BOM for Excel compatibility,
// plus a streaming writer for row-at-a-time output.
//
// XLSXWriter: Excel workbooks with a bold header row and numeric cells.
//
// Example usage:
//
//	w, err := exporter.NewTableWriter("csv", false)
//	if err != nil {
//	    return err
//	}
//	out := exporter.OutputPath("run1/census-out.txt", "", w.Format())
//	err = w.WriteTable(out, table)
package exporter
