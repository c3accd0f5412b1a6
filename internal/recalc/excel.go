package recalc

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

//go:embed excel.ps1
var excelScript []byte

// Excel drives a desktop Excel install over COM through PowerShell: open, full rebuild,
// save as xlsx.
type Excel struct {
	bin    string
	logger *zap.Logger
}

func NewExcel(logger *zap.Logger) *Excel {
	return &Excel{bin: "powershell", logger: logger}
}

func (e *Excel) Mode() string {
	return ModeExcel
}

func (e *Excel) Recalculate(ctx context.Context, inPath, outPath string) error {
	in, err := filepath.Abs(inPath)
	if err != nil {
		return err
	}

	out, err := filepath.Abs(outPath)
	if err != nil {
		return err
	}

	script, err := os.CreateTemp("", "lcr-recalc-*.ps1")
	if err != nil {
		return fmt.Errorf("%w: writing script: %v", report.ErrRecalcFailure, err)
	}
	defer os.Remove(script.Name())

	if _, err := script.Write(excelScript); err != nil {
		script.Close()
		return fmt.Errorf("%w: writing script: %v", report.ErrRecalcFailure, err)
	}

	if err := script.Close(); err != nil {
		return fmt.Errorf("%w: writing script: %v", report.ErrRecalcFailure, err)
	}

	err = run(ctx, e.logger, e.bin,
		"-NoProfile",
		"-NonInteractive",
		"-ExecutionPolicy", "Bypass",
		"-File", script.Name(),
		"-InputPath", in,
		"-OutputPath", out,
	)
	if err != nil {
		return err
	}

	return checkOutput(out)
}
