// Package recalc refreshes the formula results of a merged workbook before it is stored.
package recalc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/encoding"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

// Modes recorded in snapshot metadata.
const (
	ModeExcel   = "excel"
	ModeCommand = "command"
	ModeOnOpen  = "recalc-on-open"
	ModeNone    = "none"
)

// maxStderr bounds how much process output is carried into an error.
const maxStderr = 4 << 10

//go:generate mockgen -source=recalc.go -destination=recalculator_mock.go -package=recalc
type Recalculator interface {
	// Recalculate reads the workbook at inPath and writes a recalculated copy to outPath.
	Recalculate(ctx context.Context, inPath, outPath string) error
	// Mode names the backend for snapshot metadata.
	Mode() string
}

type Options struct {
	Backend string
	Command string
	Args    []string
	Timeout time.Duration
}

// New builds the backend named by opts.Backend, wrapped in the configured timeout.
func New(opts Options, logger *zap.Logger) (Recalculator, error) {
	var r Recalculator

	switch opts.Backend {
	case "", ModeExcel:
		r = NewExcel(logger)
	case ModeCommand:
		if opts.Command == "" {
			return nil, fmt.Errorf("%w: no command configured", report.ErrRecalcUnavailable)
		}

		r = NewCommand(opts.Command, opts.Args, logger)
	case "onopen", ModeOnOpen:
		r = NewOnOpen()
	case ModeNone:
		r = Unavailable{}
	default:
		return nil, fmt.Errorf("unknown recalc backend %q", opts.Backend)
	}

	if opts.Timeout > 0 {
		r = WithTimeout(r, opts.Timeout)
	}

	return r, nil
}

// run executes bin with args and classifies the outcome.
func run(ctx context.Context, logger *zap.Logger, bin string, args ...string) error {
	path, err := exec.LookPath(bin)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", report.ErrRecalcUnavailable, bin, err)
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()

	logger.Debug("recalc process finished",
		zap.String("bin", bin),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)

	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s killed after deadline", report.ErrRecalcTimeout, bin)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	details := processOutput(stderr.Bytes())
	if details == "" {
		details = processOutput(stdout.Bytes())
	}

	if len(details) > maxStderr {
		details = details[:maxStderr]
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s exited %d: %s", report.ErrRecalcFailure, bin, exitErr.ExitCode(), details)
	}

	return fmt.Errorf("%w: %s: %v", report.ErrRecalcFailure, bin, err)
}

// processOutput decodes console output to UTF-8. PowerShell and Windows
// converters write UTF-16 or the ANSI code page.
func processOutput(b []byte) string {
	s, err := encoding.ToUTF8(b)
	if err != nil {
		s = string(b)
	}

	return strings.TrimSpace(s)
}

// checkOutput fails unless the backend left a non-empty file at path.
func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: no output written: %v", report.ErrRecalcFailure, err)
	}

	if info.Size() == 0 {
		return fmt.Errorf("%w: output %s is empty", report.ErrRecalcFailure, path)
	}

	return nil
}
