package recalc

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Command runs an external engine, e.g. a headless LibreOffice wrapper. Args may use the
// {input}, {output} and {outdir} placeholders.
type Command struct {
	bin    string
	args   []string
	logger *zap.Logger
}

func NewCommand(bin string, args []string, logger *zap.Logger) *Command {
	return &Command{bin: bin, args: args, logger: logger}
}

func (c *Command) Mode() string {
	return ModeCommand
}

func (c *Command) Recalculate(ctx context.Context, inPath, outPath string) error {
	replacer := strings.NewReplacer(
		"{input}", inPath,
		"{output}", outPath,
		"{outdir}", filepath.Dir(outPath),
	)

	args := make([]string, len(c.args))
	for i, a := range c.args {
		args[i] = replacer.Replace(a)
	}

	if err := run(ctx, c.logger, c.bin, args...); err != nil {
		return err
	}

	return checkOutput(outPath)
}
