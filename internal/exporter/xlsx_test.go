package exporter

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestXLSXWriter_WriteTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "census.xlsx")
	require.NoError(t, NewXLSXWriter().WriteTable(path, sampleTable()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(DefaultSheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, sampleTable().Header, rows[0])
	assert.Equal(t, sampleTable().Rows[1], rows[2])

	// channel values are stored as numbers, sequences as text
	cellType, err := f.GetCellType(DefaultSheetName, "E2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	assert.NotEqual(t, excelize.CellTypeInlineString, cellType)

	cellType, err = f.GetCellType(DefaultSheetName, "D2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, cellType)
}

func TestXLSXWriter_Encode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter().Encode(&buf, sampleTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue(DefaultSheetName, "F3")
	require.NoError(t, err)
	assert.Equal(t, "200", value)
}
