package report_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestParseFilenameDate(t *testing.T) {
	type testCase struct {
		name     string
		filename string
		want     time.Time
		wantErr  bool
	}

	tests := []testCase{
		{name: "Underscore prefix", filename: "LCR_04022026.xlsx", want: date(2026, 2, 4)},
		{name: "Template style name", filename: "LCR Management_(GBS)_04022026.xlsx", want: date(2026, 2, 4)},
		{name: "No separators", filename: "extract31122025final.xlsx", want: date(2025, 12, 31)},
		{name: "Path is ignored", filename: "/tmp/99999999/report-01012026.xlsx", want: date(2026, 1, 1)},
		{name: "Repeated token", filename: "04022026_copy_04022026.xlsx", want: date(2026, 2, 4)},
		{name: "Leap day", filename: "LCR_29022024.xlsx", want: date(2024, 2, 29)},
		{name: "Day out of range", filename: "LCR_32012026.xlsx", wantErr: true},
		{name: "Month out of range", filename: "LCR_01132026.xlsx", wantErr: true},
		{name: "Not a leap year", filename: "LCR_29022026.xlsx", wantErr: true},
		{name: "Day zero", filename: "LCR_00012026.xlsx", wantErr: true},
		{name: "No token", filename: "summary.xlsx", wantErr: true},
		{name: "Nine digits", filename: "LCR_040220261.xlsx", wantErr: true},
		{name: "Seven digits", filename: "LCR_0402202.xlsx", wantErr: true},
		{name: "Two distinct tokens", filename: "01012026_to_02012026.xlsx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := report.ParseFilenameDate(tt.filename)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, report.ErrDateParse)

				return
			}

			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseFilenameDate_AllValidDays(t *testing.T) {
	for d := date(2024, 1, 1); d.Year() == 2024; d = d.AddDate(0, 0, 1) {
		name := fmt.Sprintf("LCR_%s.xlsx", d.Format("02012006"))

		got, err := report.ParseFilenameDate(name)
		require.NoError(t, err, name)
		assert.Equal(t, report.Key(d), report.Key(got))
	}
}

func TestExcelSerial(t *testing.T) {
	assert.Equal(t, 46057, report.ExcelSerial(date(2026, 2, 4)))
	assert.Equal(t, 46023, report.ExcelSerial(date(2026, 1, 1)))
	assert.Equal(t, 1, report.ExcelSerial(date(1899, 12, 31)))
	assert.Equal(t, 46057, report.ExcelSerial(time.Date(2026, 2, 4, 23, 59, 0, 0, time.UTC)))
}

func TestParseKey(t *testing.T) {
	got, err := report.ParseKey("2026-02-04")
	require.NoError(t, err)
	assert.Equal(t, date(2026, 2, 4), got)

	for _, bad := range []string{"", "2026-2-4", "2026-02-30", "04-02-2026", "2026-02-04.xlsx"} {
		_, err := report.ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestCode(t *testing.T) {
	wrapped := fmt.Errorf("processing LCR_04022026.xlsx: %w", report.ErrTemplateNotFound)

	assert.Equal(t, "TemplateNotFound", report.Code(wrapped))
	assert.Equal(t, "DateParseError", report.Code(report.ErrDateParse))
	assert.Equal(t, "Internal", report.Code(fmt.Errorf("boom")))
}
