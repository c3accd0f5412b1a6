package merge

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

// Layout names where extract data is read from and where it lands in the template.
type Layout struct {
	ExtractSheet    string
	ExtractStartRow int
	Columns         int
	TargetSheet     string
	TargetAnchor    string
	DateCell        string
	RejectEmpty     bool
}

// DefaultLayout is the LCR report layout: Summary!A:K into BS_RE33 from A7, date in N4.
func DefaultLayout() Layout {
	return Layout{
		ExtractSheet:    "Summary",
		ExtractStartRow: 1,
		Columns:         11,
		TargetSheet:     "BS_RE33",
		TargetAnchor:    "A7",
		DateCell:        "N4",
	}
}

// Result describes a completed merge.
type Result struct {
	Rows     int
	Columns  int
	Warnings []string
}

// Engine splices extract data into a copy of the base template.
type Engine struct {
	layout Layout
	logger *zap.Logger
}

func NewEngine(layout Layout, logger *zap.Logger) *Engine {
	return &Engine{layout: layout, logger: logger}
}

// Layout returns the layout the engine merges with.
func (e *Engine) Layout() Layout {
	return e.layout
}

// Merge reads the extract's data region, writes it over the template's target region,
// stamps the date cell and saves the result to outPath. The template file itself is
// never written. Every validation runs before the first cell is touched.
func (e *Engine) Merge(ctx context.Context, extractPath, templatePath string, date time.Time, outPath string) (*Result, error) {
	if samePath(templatePath, outPath) {
		return nil, fmt.Errorf("merge output %s would overwrite the template", outPath)
	}

	grid, warnings, err := e.readExtract(extractPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tf, err := excelize.OpenFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", report.ErrInvalidTemplate, filepath.Base(templatePath), err)
	}
	defer tf.Close()

	target, err := e.resolveTarget(tf)
	if err != nil {
		return nil, err
	}

	if err := e.clearRegion(tf, target); err != nil {
		return nil, err
	}

	if err := e.writeGrid(tf, target, grid); err != nil {
		return nil, err
	}

	if err := tf.SetCellValue(e.layout.TargetSheet, e.layout.DateCell, report.ExcelSerial(date)); err != nil {
		return nil, fmt.Errorf("writing date cell %s: %w", e.layout.DateCell, err)
	}

	if err := tf.SaveAs(outPath); err != nil {
		return nil, fmt.Errorf("saving merged workbook: %w", err)
	}

	e.logger.Info("merged extract",
		zap.String("extract", filepath.Base(extractPath)),
		zap.String("template", filepath.Base(templatePath)),
		zap.String("date", report.Key(date)),
		zap.Int("rows", grid.Rows()),
		zap.Int("columns", grid.Columns()),
	)

	return &Result{
		Rows:     grid.Rows(),
		Columns:  grid.Columns(),
		Warnings: warnings,
	}, nil
}

func (e *Engine) readExtract(path string) (Grid, []string, error) {
	xf, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening extract: %v", report.ErrUnsupportedFormat, err)
	}
	defer xf.Close()

	if idx, err := xf.GetSheetIndex(e.layout.ExtractSheet); err != nil || idx < 0 {
		return nil, nil, fmt.Errorf("%w: extract has no %q sheet (found %v)",
			report.ErrMissingSheet, e.layout.ExtractSheet, xf.GetSheetList())
	}

	grid, ignored, err := ReadGrid(xf, e.layout.ExtractSheet, e.layout.ExtractStartRow, e.layout.Columns)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string

	if ignored > 0 {
		lastCol, _ := excelize.ColumnNumberToName(e.layout.Columns)
		warnings = append(warnings, fmt.Sprintf("%d non-empty cells right of column %s were ignored", ignored, lastCol))
	}

	if grid.Rows() == 0 {
		if e.layout.RejectEmpty {
			return nil, nil, fmt.Errorf("%w: %s has no data from row %d",
				report.ErrEmptyExtract, e.layout.ExtractSheet, e.layout.ExtractStartRow)
		}

		warnings = append(warnings, fmt.Sprintf("%v: %s has no data from row %d; target region cleared",
			report.ErrEmptyExtract, e.layout.ExtractSheet, e.layout.ExtractStartRow))
		e.logger.Warn("empty extract", zap.String("extract", filepath.Base(path)))
	}

	return grid, warnings, nil
}

type region struct {
	col, row int
	lastRow  int
}

func (e *Engine) resolveTarget(tf *excelize.File) (region, error) {
	sheet := e.layout.TargetSheet

	if idx, err := tf.GetSheetIndex(sheet); err != nil || idx < 0 {
		return region{}, fmt.Errorf("%w: template has no %q sheet", report.ErrInvalidTemplate, sheet)
	}

	col, row, err := excelize.CellNameToCoordinates(e.layout.TargetAnchor)
	if err != nil {
		return region{}, fmt.Errorf("%w: target anchor %q: %v", report.ErrInvalidTemplate, e.layout.TargetAnchor, err)
	}

	if _, _, err := excelize.CellNameToCoordinates(e.layout.DateCell); err != nil {
		return region{}, fmt.Errorf("%w: date cell %q: %v", report.ErrInvalidTemplate, e.layout.DateCell, err)
	}

	rows, err := tf.Rows(sheet)
	if err != nil {
		return region{}, fmt.Errorf("%w: reading %s: %v", report.ErrInvalidTemplate, sheet, err)
	}
	defer rows.Close()

	lastRow := 0
	for rows.Next() {
		lastRow++
	}

	return region{col: col, row: row, lastRow: lastRow}, nil
}

// clearRegion empties every populated cell of the target columns from the anchor row down.
func (e *Engine) clearRegion(tf *excelize.File, target region) error {
	sheet := e.layout.TargetSheet

	for r := target.row; r <= target.lastRow; r++ {
		for c := target.col; c < target.col+e.layout.Columns; c++ {
			name, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return err
			}

			value, err := tf.GetCellValue(sheet, name, excelize.Options{RawCellValue: true})
			if err != nil {
				return fmt.Errorf("reading %s!%s: %w", sheet, name, err)
			}

			formula, err := tf.GetCellFormula(sheet, name)
			if err != nil {
				return fmt.Errorf("reading %s!%s: %w", sheet, name, err)
			}

			if value == "" && formula == "" {
				continue
			}

			if formula != "" {
				if err := tf.SetCellFormula(sheet, name, ""); err != nil {
					return fmt.Errorf("clearing formula %s!%s: %w", sheet, name, err)
				}
			}

			if err := tf.SetCellValue(sheet, name, nil); err != nil {
				return fmt.Errorf("clearing %s!%s: %w", sheet, name, err)
			}
		}
	}

	return nil
}

func (e *Engine) writeGrid(tf *excelize.File, target region, grid Grid) error {
	sheet := e.layout.TargetSheet

	for i, row := range grid {
		for j, v := range row {
			if v == nil {
				continue
			}

			name, err := excelize.CoordinatesToCellName(target.col+j, target.row+i)
			if err != nil {
				return err
			}

			if err := tf.SetCellValue(sheet, name, v); err != nil {
				return fmt.Errorf("writing %s!%s: %w", sheet, name, err)
			}
		}
	}

	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	return errA == nil && errB == nil && absA == absB
}
