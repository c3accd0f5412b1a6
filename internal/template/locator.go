package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

// DefaultName is the conventional template file inside the data directory.
const DefaultName = "base_template.xlsx"

// Source yields a template candidate. An empty path with a nil error means "no match here".
type Source struct {
	Name string
	Find func(ctx context.Context) (string, error)
}

// Locator resolves the active base template by trying its sources in order.
type Locator struct {
	sources []Source
	logger  *zap.Logger
}

func NewLocator(logger *zap.Logger, sources ...Source) *Locator {
	return &Locator{sources: sources, logger: logger}
}

// Options configures the standard resolution order.
type Options struct {
	ExplicitPath     string
	DataDir          string
	UploadsDir       string
	UploadPattern    string
	DownloadDir      string // empty disables the download tree search
	DownloadPatterns []string
	// TargetSheet, when set, skips searched candidates that lack the sheet. Archived
	// extracts share the uploads dir with templates and never carry it.
	TargetSheet string
}

// New builds a Locator with the standard order: explicit path, data directory,
// archived uploads, then the download tree.
func New(logger *zap.Logger, opts Options) *Locator {
	var accept func(string) bool
	if opts.TargetSheet != "" {
		accept = HasSheet(logger, opts.TargetSheet)
	}

	return NewLocator(logger,
		Explicit("explicit", opts.ExplicitPath),
		Explicit("data-dir", filepath.Join(opts.DataDir, DefaultName)),
		LatestMatch("uploads", opts.UploadsDir, opts.UploadPattern, accept),
		TreeMatch("downloads", opts.DownloadDir, opts.DownloadPatterns, accept),
	)
}

// HasSheet accepts workbooks that open and contain sheet.
func HasSheet(logger *zap.Logger, sheet string) func(path string) bool {
	return func(path string) bool {
		f, err := excelize.OpenFile(path)
		if err != nil {
			logger.Debug("template candidate unreadable", zap.String("path", path), zap.Error(err))
			return false
		}
		defer f.Close()

		idx, err := f.GetSheetIndex(sheet)
		if err != nil || idx < 0 {
			logger.Debug("template candidate skipped", zap.String("path", path), zap.String("missing_sheet", sheet))
			return false
		}

		return true
	}
}

// Names lists the sources in resolution order.
func (l *Locator) Names() []string {
	names := make([]string, len(l.sources))
	for i, src := range l.sources {
		names[i] = src.Name
	}

	return names
}

// Resolve returns the first template any source yields, or report.ErrTemplateNotFound.
func (l *Locator) Resolve(ctx context.Context) (string, error) {
	for _, src := range l.sources {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		path, err := src.Find(ctx)
		if err != nil {
			l.logger.Warn("template source failed", zap.String("source", src.Name), zap.Error(err))
			continue
		}

		if path != "" {
			l.logger.Debug("template resolved", zap.String("source", src.Name), zap.String("path", path))
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: place it at data/%s or set BASE_TEMPLATE_PATH", report.ErrTemplateNotFound, DefaultName)
}

// Explicit matches path when it names an existing regular file.
func Explicit(name, path string) Source {
	return Source{
		Name: name,
		Find: func(context.Context) (string, error) {
			if path == "" {
				return "", nil
			}

			return existingFile(path)
		},
	}
}

// LatestMatch globs dir for pattern and picks the last accepted match in lexical order.
// Archived uploads carry a timestamp prefix, so that is the newest one. A nil accept
// takes every match.
func LatestMatch(name, dir, pattern string, accept func(string) bool) Source {
	return Source{
		Name: name,
		Find: func(context.Context) (string, error) {
			if dir == "" || pattern == "" {
				return "", nil
			}

			matches, err := filepath.Glob(filepath.Join(dir, pattern))
			if err != nil {
				return "", fmt.Errorf("glob %s: %w", pattern, err)
			}

			matches = regularFiles(matches)
			if len(matches) == 0 {
				return "", nil
			}

			sort.Strings(matches)

			for _, m := range slices.Backward(matches) {
				if accept == nil || accept(m) {
					return m, nil
				}
			}

			return "", nil
		},
	}
}

// TreeMatch walks root recursively and returns the first accepted file, in lexical path
// order, whose base name matches a pattern. Patterns are tried in order.
func TreeMatch(name, root string, patterns []string, accept func(string) bool) Source {
	return Source{
		Name: name,
		Find: func(ctx context.Context) (string, error) {
			if root == "" || len(patterns) == 0 {
				return "", nil
			}

			if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
				return "", nil
			}

			files, err := walkFiles(ctx, root)
			if err != nil {
				return "", err
			}

			for _, pattern := range patterns {
				for _, f := range files {
					ok, err := filepath.Match(pattern, filepath.Base(f))
					if err != nil {
						return "", fmt.Errorf("pattern %q: %w", pattern, err)
					}

					if ok && (accept == nil || accept(f)) {
						return f, nil
					}
				}
			}

			return "", nil
		},
	}
}

func walkFiles(ctx context.Context, root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}

			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.Type().IsRegular() {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(files)

	return files, nil
}

func existingFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}

		return "", err
	}

	if !info.Mode().IsRegular() {
		return "", nil
	}

	return path, nil
}

func regularFiles(paths []string) []string {
	out := paths[:0]

	for _, p := range paths {
		if f, _ := existingFile(p); f != "" {
			out = append(out, f)
		}
	}

	return out
}
