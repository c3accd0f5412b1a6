// Package app assembles the services every binary shares from configuration.
package app

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/config"
	"github.com/MrJamesThe3rd/lcrdash/internal/ingest"
	"github.com/MrJamesThe3rd/lcrdash/internal/merge"
	"github.com/MrJamesThe3rd/lcrdash/internal/recalc"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot/store"
	"github.com/MrJamesThe3rd/lcrdash/internal/template"
)

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *store.Store
	Snapshots *snapshot.Service
	Locator   *template.Locator
	Engine    *merge.Engine
	Recalc    recalc.Recalculator
	Ingest    *ingest.Service
}

func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := os.MkdirAll(cfg.UploadsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}

	st, err := store.New(cfg.Data.Dir, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	rc, err := recalc.New(recalc.Options{
		Backend: cfg.Recalc.Backend,
		Command: cfg.Recalc.Command,
		Args:    cfg.Recalc.Args,
		Timeout: cfg.Recalc.Timeout,
	}, logger.Named("recalc"))
	if err != nil {
		return nil, err
	}

	locator := template.New(logger.Named("template"), Locations(cfg))

	engine := merge.NewEngine(merge.Layout{
		ExtractSheet:    cfg.Merge.ExtractSheet,
		ExtractStartRow: cfg.Merge.ExtractStartRow,
		Columns:         merge.DefaultLayout().Columns,
		TargetSheet:     cfg.Merge.TargetSheet,
		TargetAnchor:    cfg.Merge.TargetAnchor,
		DateCell:        cfg.Merge.DateCell,
		RejectEmpty:     cfg.Merge.RejectEmptyExtract,
	}, logger.Named("merge"))

	snapshots := snapshot.NewService(st)

	ingestSvc := ingest.NewService(ingest.Options{
		UploadsDir: cfg.UploadsDir(),
		MaxBytes:   cfg.Upload.MaxBytes,
		LockPath:   cfg.WriterLockPath(),
	}, locator, engine, rc, st, logger.Named("ingest"))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Snapshots: snapshots,
		Locator:   locator,
		Engine:    engine,
		Recalc:    rc,
		Ingest:    ingestSvc,
	}, nil
}

// Locations maps the template settings onto locator options.
func Locations(cfg *config.Config) template.Options {
	opts := template.Options{
		ExplicitPath:  cfg.TemplatePath(),
		DataDir:       cfg.Data.Dir,
		UploadsDir:    cfg.UploadsDir(),
		UploadPattern: cfg.Template.UploadPattern,
		TargetSheet:   cfg.Merge.TargetSheet,
	}

	if cfg.Template.SearchDownloads {
		opts.DownloadDir = cfg.TemplateDownloadDir()
		opts.DownloadPatterns = cfg.Template.DownloadPatterns
	}

	return opts
}
