package recalc

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

// OnOpen does not compute anything itself. It flags the workbook so the spreadsheet
// application rebuilds every formula when the file is opened; cached values in the
// stored file stay those of the template until then.
type OnOpen struct{}

func NewOnOpen() OnOpen {
	return OnOpen{}
}

func (OnOpen) Mode() string {
	return ModeOnOpen
}

func (OnOpen) Recalculate(ctx context.Context, inPath, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := excelize.OpenFile(inPath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", report.ErrRecalcFailure, inPath, err)
	}
	defer f.Close()

	if err := f.SetCalcProps(&excelize.CalcPropsOptions{
		FullCalcOnLoad: new(true),
		ForceFullCalc:  new(true),
	}); err != nil {
		return fmt.Errorf("%w: setting calc properties: %v", report.ErrRecalcFailure, err)
	}

	if err := f.SaveAs(outPath); err != nil {
		return fmt.Errorf("%w: saving: %v", report.ErrRecalcFailure, err)
	}

	return nil
}

// Unavailable is the backend used when no recalculation engine is installed.
type Unavailable struct{}

func (Unavailable) Mode() string {
	return ModeNone
}

func (Unavailable) Recalculate(context.Context, string, string) error {
	return fmt.Errorf("%w: no recalculation backend configured", report.ErrRecalcUnavailable)
}
