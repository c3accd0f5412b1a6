package merge

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// maxExactInt is the largest integer a float64 cell value holds exactly.
var maxExactInt = decimal.NewFromInt(1 << 53)

// Grid is a rectangular block of cell values; nil marks a blank cell.
type Grid [][]any

// Rows returns the number of rows.
func (g Grid) Rows() int {
	return len(g)
}

// Columns returns the width of the widest row.
func (g Grid) Columns() int {
	width := 0
	for _, row := range g {
		width = max(width, len(row))
	}

	return width
}

// Trim drops blank cells at the end of each row and fully blank rows at the end.
func (g Grid) Trim() Grid {
	out := make(Grid, len(g))

	for i, row := range g {
		end := len(row)
		for end > 0 && isBlank(row[end-1]) {
			end--
		}

		out[i] = row[:end]
	}

	end := len(out)
	for end > 0 && len(out[end-1]) == 0 {
		end--
	}

	return out[:end]
}

// Strings renders every cell with fmt's default formatting, blanks as "".
func (g Grid) Strings() [][]string {
	out := make([][]string, len(g))

	for i, row := range g {
		out[i] = make([]string, len(row))
		for j, v := range row {
			if v != nil {
				out[i][j] = fmt.Sprint(v)
			}
		}
	}

	return out
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}

	s, ok := v.(string)

	return ok && s == ""
}

// ReadGrid reads columns 1..columns of sheet from startRow (1-based) down to the last
// non-empty row. Values are raw (unformatted) and keep their cell type: numbers come back
// as int64 or float64, booleans as bool, ISO dates as time.Time, everything else as
// string. Formula cells contribute their cached value. The second return value counts non-blank cells found
// right of the column limit.
func ReadGrid(f *excelize.File, sheet string, startRow, columns int) (Grid, int, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, 0, fmt.Errorf("reading rows of %s: %w", sheet, err)
	}

	var (
		grid    Grid
		ignored int
	)

	for r := startRow - 1; r < len(rows); r++ {
		row := rows[r]

		for _, extra := range row[min(columns, len(row)):] {
			if extra != "" {
				ignored++
			}
		}

		row = row[:min(columns, len(row))]
		cells := make([]any, len(row))

		for c, raw := range row {
			if raw == "" {
				continue
			}

			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, 0, err
			}

			typ, err := f.GetCellType(sheet, name)
			if err != nil {
				return nil, 0, fmt.Errorf("cell type of %s!%s: %w", sheet, name, err)
			}

			cells[c] = coerce(raw, typ)
		}

		grid = append(grid, cells)
	}

	return grid.Trim(), ignored, nil
}

// ReadFormatted reads a sheet the way a viewer sees it: formatted strings, trimmed.
func ReadFormatted(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading rows of %s: %w", sheet, err)
	}

	grid := make(Grid, len(rows))
	for i, row := range rows {
		grid[i] = make([]any, len(row))
		for j, v := range row {
			grid[i][j] = v
		}
	}

	return grid.Trim().Strings(), nil
}

// dateLayouts are the ISO 8601 forms a t="d" cell may carry.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// coerce turns a raw cell value back into the Go value of its cell type. Only number
// cells are parsed; text, including cached formula strings, is kept verbatim.
func coerce(raw string, typ excelize.CellType) any {
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}

		return raw
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
	default:
		return raw
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}

	if d.IsInteger() && d.Abs().LessThanOrEqual(maxExactInt) {
		return d.IntPart()
	}

	v, _ := d.Float64()

	return v
}
