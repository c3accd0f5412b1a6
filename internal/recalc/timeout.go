package recalc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

type timeoutRecalculator struct {
	next    Recalculator
	timeout time.Duration
}

// WithTimeout bounds every Recalculate call of r. Expiry surfaces as report.ErrRecalcTimeout.
func WithTimeout(r Recalculator, timeout time.Duration) Recalculator {
	return &timeoutRecalculator{next: r, timeout: timeout}
}

func (t *timeoutRecalculator) Mode() string {
	return t.next.Mode()
}

func (t *timeoutRecalculator) Recalculate(ctx context.Context, inPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := t.next.Recalculate(ctx, inPath, outPath)
	if err == nil || errors.Is(err, report.ErrRecalcTimeout) {
		return err
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: exceeded %s: %v", report.ErrRecalcTimeout, t.timeout, err)
	}

	return err
}
