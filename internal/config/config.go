package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"LCR Dashboard"`
		Port int    `envconfig:"PORT" default:"8000" validate:"min=1,max=65535"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json console"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"*"`
	}

	Data struct {
		Dir string `envconfig:"DATA_DIR" default:"data" validate:"required"`
	}

	Upload struct {
		MaxBytes int64 `envconfig:"UPLOAD_MAX_BYTES" default:"52428800" validate:"gt=0"`
	}

	Template struct {
		Path             string   `envconfig:"BASE_TEMPLATE_PATH"`
		UploadPattern    string   `envconfig:"TEMPLATE_UPLOAD_PATTERN" default:"*LCR_Management*04022026*.xlsx"`
		SearchDownloads  bool     `envconfig:"TEMPLATE_SEARCH_DOWNLOADS" default:"true"`
		DownloadDir      string   `envconfig:"TEMPLATE_DOWNLOAD_DIR"`
		DownloadPatterns []string `envconfig:"TEMPLATE_DOWNLOAD_PATTERNS" default:"LCR Management_(GBS)_04022026.xlsx,LCR Management_(GBS)_*.xlsx"`
	}

	Merge struct {
		ExtractSheet       string `envconfig:"EXTRACT_SHEET" default:"Summary" validate:"required"`
		ExtractStartRow    int    `envconfig:"EXTRACT_START_ROW" default:"1" validate:"min=1"`
		TargetSheet        string `envconfig:"TARGET_SHEET" default:"BS_RE33" validate:"required"`
		TargetAnchor       string `envconfig:"TARGET_ANCHOR" default:"A7" validate:"required"`
		DateCell           string `envconfig:"DATE_CELL" default:"N4" validate:"required"`
		RejectEmptyExtract bool   `envconfig:"REJECT_EMPTY_EXTRACT" default:"false"`
	}

	Recalc struct {
		Backend string        `envconfig:"RECALC_BACKEND" default:"excel" validate:"oneof=excel command onopen none"`
		Command string        `envconfig:"RECALC_COMMAND"`
		Args    []string      `envconfig:"RECALC_ARGS" default:"{input},{output}"`
		Timeout time.Duration `envconfig:"RECALC_TIMEOUT" default:"5m" validate:"gt=0"`
	}
}

// UploadsDir is where raw uploads are archived.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.Data.Dir, "uploads")
}

// HistoryDir is where processed snapshots are stored.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.Data.Dir, "history")
}

// WriterLockPath is the lock file every binary takes before publishing a snapshot.
func (c *Config) WriterLockPath() string {
	return filepath.Join(c.Data.Dir, ".writer.lock")
}

// TemplateDownloadDir returns the configured download tree, defaulting to ~/Downloads.
func (c *Config) TemplateDownloadDir() string {
	if c.Template.DownloadDir != "" {
		return expandHome(c.Template.DownloadDir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, "Downloads")
}

// TemplatePath returns the explicit template path with ~ expanded.
func (c *Config) TemplatePath() string {
	return expandHome(c.Template.Path)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Recalc.Backend == "command" && cfg.Recalc.Command == "" {
		return nil, fmt.Errorf("invalid config: RECALC_COMMAND is required for the command backend")
	}

	return &cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}

	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
