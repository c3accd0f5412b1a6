package report

import (
	"errors"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrEmptyUpload       = errors.New("empty upload")
	ErrUploadTooLarge    = errors.New("upload too large")
	ErrMissingSheet      = errors.New("missing sheet")
	ErrEmptyExtract      = errors.New("empty extract")
	ErrTemplateNotFound  = errors.New("base template not found")
	ErrInvalidTemplate   = errors.New("invalid template")
	ErrDateParse         = errors.New("cannot derive date from filename")
	ErrRecalcUnavailable = errors.New("recalculation unavailable")
	ErrRecalcFailure     = errors.New("recalculation failed")
	ErrRecalcTimeout     = errors.New("recalculation timed out")
	ErrSnapshotWrite     = errors.New("snapshot write failed")
	ErrNotFound          = errors.New("not found")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrUnsupportedFormat, "UnsupportedFormat"},
	{ErrEmptyUpload, "EmptyUpload"},
	{ErrUploadTooLarge, "UploadTooLarge"},
	{ErrMissingSheet, "MissingSheet"},
	{ErrEmptyExtract, "EmptyExtract"},
	{ErrTemplateNotFound, "TemplateNotFound"},
	{ErrInvalidTemplate, "InvalidTemplate"},
	{ErrDateParse, "DateParseError"},
	{ErrRecalcUnavailable, "RecalcUnavailable"},
	{ErrRecalcTimeout, "RecalcTimeout"},
	{ErrRecalcFailure, "RecalcFailure"},
	{ErrSnapshotWrite, "SnapshotWriteFailure"},
	{ErrNotFound, "NotFound"},
}

// Code returns the taxonomy name of err, or "Internal" when err matches none.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}

	return "Internal"
}
