package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		typ  excelize.CellType
		want any
	}{
		{"Integer", "42", excelize.CellTypeNumber, int64(42)},
		{"UntypedInteger", "7", excelize.CellTypeUnset, int64(7)},
		{"Float", "0.125", excelize.CellTypeUnset, 0.125},
		{"HugeIntegerStaysFloat", "12345678901234567890", excelize.CellTypeNumber, 12345678901234567890.0},
		{"NumberNotParsable", "n/a", excelize.CellTypeUnset, "n/a"},
		{"SharedStringDigits", "00123", excelize.CellTypeSharedString, "00123"},
		{"InlineStringDigits", "00123", excelize.CellTypeInlineString, "00123"},
		{"FormulaStringResult", "00123", excelize.CellTypeFormula, "00123"},
		{"FormulaStringNumeric", "1E3", excelize.CellTypeFormula, "1E3"},
		{"Error", "#DIV/0!", excelize.CellTypeError, "#DIV/0!"},
		{"BoolTrue", "1", excelize.CellTypeBool, true},
		{"BoolFalse", "0", excelize.CellTypeBool, false},
		{"DateTime", "2026-02-04T00:00:00Z", excelize.CellTypeDate, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)},
		{"DateTimeNoZone", "2026-02-04T13:30:00", excelize.CellTypeDate, time.Date(2026, 2, 4, 13, 30, 0, 0, time.UTC)},
		{"DateOnly", "2026-02-04", excelize.CellTypeDate, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)},
		{"DateUnparsable", "soon", excelize.CellTypeDate, "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coerce(tt.raw, tt.typ))
		})
	}
}

func TestEngine_WriteGrid_CellTypes(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "BS_RE33"))

	e := NewEngine(DefaultLayout(), zap.NewNop())
	grid := Grid{{
		"00123",
		coerce("2026-02-04T00:00:00Z", excelize.CellTypeDate),
		int64(5),
	}}

	require.NoError(t, e.writeGrid(f, region{col: 1, row: 7}, grid))

	text, err := f.GetCellValue("BS_RE33", "A7", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "00123", text)

	typ, err := f.GetCellType("BS_RE33", "A7")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, typ)

	serial, err := f.GetCellValue("BS_RE33", "B7", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "46057", serial, "dates land as Excel serials usable by formulas")

	n, err := f.GetCellValue("BS_RE33", "C7", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "5", n)
}
