package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/app"
	"github.com/MrJamesThe3rd/lcrdash/internal/config"
	lcrHttp "github.com/MrJamesThe3rd/lcrdash/internal/http"
	snapshotHandler "github.com/MrJamesThe3rd/lcrdash/internal/http/snapshot"
	uploadHandler "github.com/MrJamesThe3rd/lcrdash/internal/http/upload"
	"github.com/MrJamesThe3rd/lcrdash/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Fields: map[string]string{"service": cfg.App.Name},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	var (
		uploadH   = uploadHandler.NewHandler(a.Ingest, a.Snapshots, cfg.Upload.MaxBytes, logger.Named("http"))
		snapshotH = snapshotHandler.NewHandler(a.Snapshots, logger.Named("http"))
	)

	router := lcrHttp.New(logger.Named("http"), cfg.Server.CORSOrigins, uploadH, snapshotH)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// An upload holds its connection through the whole merge and recalculation.
		WriteTimeout: cfg.Server.Timeout + cfg.Recalc.Timeout,
		IdleTimeout:  2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("data_dir", cfg.Data.Dir),
			zap.String("recalc", a.Recalc.Mode()),
			zap.Strings("template_sources", a.Locator.Names()),
		)

		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Recalc.Timeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
