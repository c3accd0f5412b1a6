package report

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// dateTokenLen is the width of the DDMMYYYY token embedded in extract filenames.
const dateTokenLen = 8

// excelEpoch is day zero of the 1900 date system as used by xlsx serial values.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Key formats a date as the YYYY-MM-DD history key.
func Key(t time.Time) string {
	return t.Format(time.DateOnly)
}

// ParseKey parses a YYYY-MM-DD history key.
func ParseKey(s string) (time.Time, error) {
	if len(s) != len(time.DateOnly) {
		return time.Time{}, fmt.Errorf("invalid date key %q", s)
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", s, err)
	}

	return t, nil
}

// ExcelSerial returns the 1900-system serial number of the given day.
func ExcelSerial(t time.Time) int {
	return int(Day(t).Sub(excelEpoch).Hours() / 24)
}

// ParseFilenameDate derives the report date from an uploaded filename.
//
// The name must carry exactly one distinct run of eight digits, read as DDMMYYYY.
// Surrounding text, separators and the extension are ignored. Out-of-range
// values are rejected instead of being normalised.
func ParseFilenameDate(name string) (time.Time, error) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	tokens := digitRuns(base, dateTokenLen)
	if len(tokens) == 0 {
		return time.Time{}, fmt.Errorf("%w: %q has no %d-digit date token", ErrDateParse, name, dateTokenLen)
	}

	if len(tokens) > 1 {
		return time.Time{}, fmt.Errorf("%w: %q has ambiguous date tokens %s",
			ErrDateParse, name, strings.Join(tokens, ", "))
	}

	return parseDDMMYYYY(tokens[0])
}

// digitRuns returns the distinct maximal digit runs of exactly width digits, in order of appearance.
func digitRuns(s string, width int) []string {
	var runs []string

	seen := make(map[string]bool)
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}

		if run := s[start:end]; len(run) == width && !seen[run] {
			seen[run] = true
			runs = append(runs, run)
		}

		start = -1
	}

	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			if start < 0 {
				start = i
			}

			continue
		}

		flush(i)
	}

	flush(len(s))

	return runs
}

func parseDDMMYYYY(token string) (time.Time, error) {
	day, _ := strconv.Atoi(token[0:2])
	month, _ := strconv.Atoi(token[2:4])
	year, _ := strconv.Atoi(token[4:8])

	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("%w: token %s has month %d", ErrDateParse, token, month)
	}

	if year < 1900 {
		return time.Time{}, fmt.Errorf("%w: token %s has year %d", ErrDateParse, token, year)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: token %s has day %d", ErrDateParse, token, day)
	}

	return t, nil
}
