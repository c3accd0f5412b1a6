// Package mergetest builds small xlsx fixtures for tests.
package mergetest

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// StaleRows is how many rows of old data the fixture template carries from A7.
const StaleRows = 12

// WriteTemplate creates a base template at path: a Cover sheet with formulas and a
// BS_RE33 sheet with a header block, old data in A7:K18, an out-of-region formula
// column M and a previous date in N4.
func WriteTemplate(t *testing.T, path string) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Cover"))
	require.NoError(t, f.SetCellValue("Cover", "A1", "LCR Summary"))
	require.NoError(t, f.SetCellFormula("Cover", "B2", "BS_RE33!N4"))
	require.NoError(t, f.SetCellFormula("Cover", "B3", "SUM(BS_RE33!C7:C1000)"))

	_, err := f.NewSheet("BS_RE33")
	require.NoError(t, err)

	require.NoError(t, f.SetCellValue("BS_RE33", "A1", "Balance sheet RE33"))
	require.NoError(t, f.SetCellValue("BS_RE33", "M4", "Report date"))
	require.NoError(t, f.SetCellValue("BS_RE33", "N4", 45000))
	require.NoError(t, f.SetSheetRow("BS_RE33", "A6", &[]any{"Code", "Name", "Amount", "D", "E", "F", "G", "H", "I", "J", "K"}))

	for i := range StaleRows {
		row := 7 + i
		cell, _ := excelize.CoordinatesToCellName(1, row)
		require.NoError(t, f.SetSheetRow("BS_RE33", cell, &[]any{
			"OLD", "stale", 999, 1, 2, 3, 4, 5, 6, 7, 8,
		}))

		m, _ := excelize.CoordinatesToCellName(13, row)
		require.NoError(t, f.SetCellFormula("BS_RE33", m, "C"+strconv.Itoa(row)+"*2"))

		l, _ := excelize.CoordinatesToCellName(12, row)
		require.NoError(t, f.SetCellValue("BS_RE33", l, "keep"))
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, f.SaveAs(path))

	return path
}

// WriteExtract creates an extract workbook whose sheet is named sheet and holds rows from A1.
func WriteExtract(t *testing.T, path, sheet string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", sheet))

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, f.SaveAs(path))

	return path
}

// SampleRows is a five row extract in A1:K5 with mixed cell types.
func SampleRows() [][]any {
	return [][]any{
		{"C001", "Cash", int64(1500), 2.5, true, "x", int64(1), int64(2), int64(3), int64(4), int64(5)},
		{"C002", "Bonds", int64(2500), 3.75, false, "y", int64(6), int64(7), int64(8), int64(9), int64(10)},
		{"C003", "Loans", int64(-300), 0.125, true, "z", int64(11), int64(12), int64(13), int64(14), int64(15)},
		{"C004", "Deposits", int64(42), 1.5, false, "w", int64(16), int64(17), int64(18), int64(19), int64(20)},
		{"C005", "Other", int64(7), 9.25, true, "v", int64(21), int64(22), int64(23), int64(24), int64(25)},
	}
}

// Path joins name onto a fresh temp dir.
func Path(t *testing.T, name string) string {
	t.Helper()

	return filepath.Join(t.TempDir(), name)
}
