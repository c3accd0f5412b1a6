package merge_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/merge"
	"github.com/MrJamesThe3rd/lcrdash/internal/merge/mergetest"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

var reportDate = time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)

func TestEngine_Merge(t *testing.T) {
	dir := t.TempDir()
	extract := mergetest.WriteExtract(t, filepath.Join(dir, "LCR_04022026.xlsx"), "Summary", mergetest.SampleRows())
	tmpl := mergetest.WriteTemplate(t, filepath.Join(dir, "base_template.xlsx"))
	out := filepath.Join(dir, "out.xlsx")

	before, err := os.ReadFile(tmpl)
	require.NoError(t, err)

	engine := merge.NewEngine(merge.DefaultLayout(), zap.NewNop())

	res, err := engine.Merge(context.Background(), extract, tmpl, reportDate, out)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Rows)
	assert.Equal(t, 11, res.Columns)
	assert.Empty(t, res.Warnings)

	after, err := os.ReadFile(tmpl)
	require.NoError(t, err)
	assert.Equal(t, before, after, "template must not be modified")

	got := openWorkbook(t, out)

	grid, _, err := merge.ReadGrid(got, "BS_RE33", 7, 11)
	require.NoError(t, err)

	want := merge.Grid{}
	for _, row := range mergetest.SampleRows() {
		want = append(want, row)
	}

	if diff := cmp.Diff(want, grid); diff != "" {
		t.Errorf("target region mismatch (-want +got):\n%s", diff)
	}

	date, err := got.GetCellValue("BS_RE33", "N4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "46057", date)

	assertOutsideUnchanged(t, openWorkbook(t, tmpl), got)
}

func TestEngine_Merge_ClearsStaleRows(t *testing.T) {
	dir := t.TempDir()
	rows := mergetest.SampleRows()[:2]
	extract := mergetest.WriteExtract(t, filepath.Join(dir, "extract.xlsx"), "Summary", rows)
	tmpl := mergetest.WriteTemplate(t, filepath.Join(dir, "base_template.xlsx"))
	out := filepath.Join(dir, "out.xlsx")

	engine := merge.NewEngine(merge.DefaultLayout(), zap.NewNop())

	_, err := engine.Merge(context.Background(), extract, tmpl, reportDate, out)
	require.NoError(t, err)

	got := openWorkbook(t, out)

	for r := 9; r < 7+mergetest.StaleRows; r++ {
		for c := 1; c <= 11; c++ {
			name, _ := excelize.CoordinatesToCellName(c, r)
			v, err := got.GetCellValue("BS_RE33", name)
			require.NoError(t, err)
			assert.Empty(t, v, "cell %s should be cleared", name)
		}
	}

	// Columns right of K keep their contents.
	v, err := got.GetCellValue("BS_RE33", "L15")
	require.NoError(t, err)
	assert.Equal(t, "keep", v)

	f, err := got.GetCellFormula("BS_RE33", "M15")
	require.NoError(t, err)
	assert.Equal(t, "C15*2", f)
}

func TestEngine_Merge_Warnings(t *testing.T) {
	tests := []struct {
		name     string
		rows     [][]any
		wantRows int
		contains string
	}{
		{
			name:     "EmptyExtract",
			rows:     nil,
			wantRows: 0,
			contains: "no data",
		},
		{
			name: "CellsBeyondK",
			rows: [][]any{
				{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L-extra", "M-extra"},
			},
			wantRows: 1,
			contains: "2 non-empty cells right of column K",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			extract := mergetest.WriteExtract(t, filepath.Join(dir, "extract.xlsx"), "Summary", tt.rows)
			tmpl := mergetest.WriteTemplate(t, filepath.Join(dir, "base_template.xlsx"))
			out := filepath.Join(dir, "out.xlsx")

			engine := merge.NewEngine(merge.DefaultLayout(), zap.NewNop())

			res, err := engine.Merge(context.Background(), extract, tmpl, reportDate, out)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, res.Rows)
			require.NotEmpty(t, res.Warnings)
			assert.Contains(t, res.Warnings[0], tt.contains)

			got := openWorkbook(t, out)

			v, err := got.GetCellValue("BS_RE33", "A8")
			require.NoError(t, err)
			assert.Empty(t, v)

			date, err := got.GetCellValue("BS_RE33", "N4", excelize.Options{RawCellValue: true})
			require.NoError(t, err)
			assert.Equal(t, "46057", date)
		})
	}
}

func TestEngine_Merge_StartRow(t *testing.T) {
	dir := t.TempDir()
	rows := append([][]any{{"Code", "Name", "Amount"}}, mergetest.SampleRows()[:1]...)
	extract := mergetest.WriteExtract(t, filepath.Join(dir, "extract.xlsx"), "Summary", rows)
	tmpl := mergetest.WriteTemplate(t, filepath.Join(dir, "base_template.xlsx"))
	out := filepath.Join(dir, "out.xlsx")

	layout := merge.DefaultLayout()
	layout.ExtractStartRow = 2

	res, err := merge.NewEngine(layout, zap.NewNop()).Merge(context.Background(), extract, tmpl, reportDate, out)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	v, err := openWorkbook(t, out).GetCellValue("BS_RE33", "A7")
	require.NoError(t, err)
	assert.Equal(t, "C001", v)
}

func TestEngine_Merge_Errors(t *testing.T) {
	type fixture struct {
		extract  string
		template string
	}

	tests := []struct {
		name    string
		layout  func(l *merge.Layout)
		setup   func(t *testing.T, dir string) fixture
		wantErr error
	}{
		{
			name: "MissingExtractSheet",
			setup: func(t *testing.T, dir string) fixture {
				return fixture{
					extract:  mergetest.WriteExtract(t, filepath.Join(dir, "e.xlsx"), "Data", mergetest.SampleRows()),
					template: mergetest.WriteTemplate(t, filepath.Join(dir, "t.xlsx")),
				}
			},
			wantErr: report.ErrMissingSheet,
		},
		{
			name: "ExtractNotWorkbook",
			setup: func(t *testing.T, dir string) fixture {
				p := filepath.Join(dir, "e.xlsx")
				require.NoError(t, os.WriteFile(p, []byte("plain text"), 0o644))

				return fixture{extract: p, template: mergetest.WriteTemplate(t, filepath.Join(dir, "t.xlsx"))}
			},
			wantErr: report.ErrUnsupportedFormat,
		},
		{
			name: "TemplateWithoutTargetSheet",
			setup: func(t *testing.T, dir string) fixture {
				return fixture{
					extract:  mergetest.WriteExtract(t, filepath.Join(dir, "e.xlsx"), "Summary", mergetest.SampleRows()),
					template: mergetest.WriteExtract(t, filepath.Join(dir, "t.xlsx"), "Other", nil),
				}
			},
			wantErr: report.ErrInvalidTemplate,
		},
		{
			name: "TemplateNotWorkbook",
			setup: func(t *testing.T, dir string) fixture {
				p := filepath.Join(dir, "t.xlsx")
				require.NoError(t, os.WriteFile(p, []byte("garbage"), 0o644))

				return fixture{
					extract:  mergetest.WriteExtract(t, filepath.Join(dir, "e.xlsx"), "Summary", mergetest.SampleRows()),
					template: p,
				}
			},
			wantErr: report.ErrInvalidTemplate,
		},
		{
			name:   "BadAnchor",
			layout: func(l *merge.Layout) { l.TargetAnchor = "7A" },
			setup: func(t *testing.T, dir string) fixture {
				return fixture{
					extract:  mergetest.WriteExtract(t, filepath.Join(dir, "e.xlsx"), "Summary", mergetest.SampleRows()),
					template: mergetest.WriteTemplate(t, filepath.Join(dir, "t.xlsx")),
				}
			},
			wantErr: report.ErrInvalidTemplate,
		},
		{
			name:   "RejectEmptyExtract",
			layout: func(l *merge.Layout) { l.RejectEmpty = true },
			setup: func(t *testing.T, dir string) fixture {
				return fixture{
					extract:  mergetest.WriteExtract(t, filepath.Join(dir, "e.xlsx"), "Summary", nil),
					template: mergetest.WriteTemplate(t, filepath.Join(dir, "t.xlsx")),
				}
			},
			wantErr: report.ErrEmptyExtract,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			fx := tt.setup(t, dir)
			out := filepath.Join(dir, "out.xlsx")

			layout := merge.DefaultLayout()
			if tt.layout != nil {
				tt.layout(&layout)
			}

			_, err := merge.NewEngine(layout, zap.NewNop()).Merge(context.Background(), fx.extract, fx.template, reportDate, out)
			require.ErrorIs(t, err, tt.wantErr)

			_, statErr := os.Stat(out)
			assert.True(t, os.IsNotExist(statErr), "no output should be written")
		})
	}
}

func TestEngine_Merge_RefusesToOverwriteTemplate(t *testing.T) {
	dir := t.TempDir()
	extract := mergetest.WriteExtract(t, filepath.Join(dir, "e.xlsx"), "Summary", mergetest.SampleRows())
	tmpl := mergetest.WriteTemplate(t, filepath.Join(dir, "t.xlsx"))

	_, err := merge.NewEngine(merge.DefaultLayout(), zap.NewNop()).Merge(context.Background(), extract, tmpl, reportDate, tmpl)
	require.Error(t, err)
}

func openWorkbook(t *testing.T, path string) *excelize.File {
	t.Helper()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	return f
}

// assertOutsideUnchanged compares every cell value and formula of every sheet except
// BS_RE33!A7:K* and BS_RE33!N4.
func assertOutsideUnchanged(t *testing.T, want, got *excelize.File) {
	t.Helper()

	require.Equal(t, want.GetSheetList(), got.GetSheetList())

	for _, sheet := range want.GetSheetList() {
		wantRows, err := want.GetRows(sheet, excelize.Options{RawCellValue: true})
		require.NoError(t, err)

		gotRows, err := got.GetRows(sheet, excelize.Options{RawCellValue: true})
		require.NoError(t, err)

		for r := 1; r <= max(len(wantRows), len(gotRows)); r++ {
			for c := 1; c <= 20; c++ {
				if sheet == "BS_RE33" && (r >= 7 && c <= 11 || r == 4 && c == 14) {
					continue
				}

				name, _ := excelize.CoordinatesToCellName(c, r)
				assert.Equal(t, cell(wantRows, r, c), cell(gotRows, r, c), "%s!%s value", sheet, name)

				wf, _ := want.GetCellFormula(sheet, name)
				gf, _ := got.GetCellFormula(sheet, name)
				assert.Equal(t, wf, gf, "%s!%s formula", sheet, name)
			}
		}
	}
}

func cell(rows [][]string, r, c int) string {
	if r > len(rows) || c > len(rows[r-1]) {
		return ""
	}

	return rows[r-1][c-1]
}
