// Package store keeps processed snapshots as flat files:
//
//	<data>/history/YYYY-MM-DD.xlsx   one workbook per report date
//	<data>/latest.xlsx               copy of the most recently uploaded snapshot
//	<data>/latest.json               latest pointer and per-date metadata
//
// Every file is replaced with a temp-file rename so readers never see a partial write.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

const (
	historyDir = "history"
	latestFile = "latest.xlsx"
	stateFile  = "latest.json"
	ext        = ".xlsx"
)

type Store struct {
	dir    string
	logger *zap.Logger

	// mu serialises writers of the state file and the latest copy. Readers never
	// take it; both files are only ever replaced by rename.
	mu sync.Mutex
}

// New opens the store rooted at dir, creating its directories.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, historyDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}

	return &Store{dir: dir, logger: logger}, nil
}

// HistoryName is the file name a snapshot for date is stored under.
func HistoryName(date time.Time) string {
	return report.Key(date) + ext
}

func (s *Store) historyPath(date time.Time) string {
	return filepath.Join(s.dir, historyDir, HistoryName(date))
}

// Save copies the workbook at srcPath into the history as the snapshot for date,
// replacing any previous one. It returns the stored file name.
func (s *Store) Save(ctx context.Context, date time.Time, srcPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", report.ErrSnapshotWrite, err)
	}
	defer src.Close()

	dst := s.historyPath(date)
	if err := writeAtomic(dst, src); err != nil {
		return "", fmt.Errorf("%w: %s: %v", report.ErrSnapshotWrite, filepath.Base(dst), err)
	}

	s.logger.Info("snapshot saved", zap.String("date", report.Key(date)))

	return filepath.Base(dst), nil
}

// Get returns the path of the snapshot for date.
func (s *Store) Get(ctx context.Context, date time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := s.historyPath(date)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: snapshot %s", report.ErrNotFound, report.Key(date))
		}

		return "", err
	}

	return path, nil
}

// ListDates returns the dates with a stored snapshot in ascending order.
func (s *Store) ListDates(ctx context.Context) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, historyDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list history: %w", err)
	}

	var dates []time.Time

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		key, ok := strings.CutSuffix(e.Name(), ext)
		if !ok {
			continue
		}

		date, err := report.ParseKey(key)
		if err != nil {
			continue
		}

		dates = append(dates, date)
	}

	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	return dates, nil
}

// SetLatest records snap and points latest at it: latest.xlsx becomes a copy of the
// snapshot's history file and latest.json is rewritten.
func (s *Store) SetLatest(ctx context.Context, snap *report.Snapshot) error {
	date, err := report.ParseKey(snap.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", report.ErrSnapshotWrite, err)
	}

	src, err := s.Get(ctx, date)
	if err != nil {
		return fmt.Errorf("%w: %v", report.ErrSnapshotWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadState()
	if err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", report.ErrSnapshotWrite, err)
	}
	defer f.Close()

	if err := writeAtomic(filepath.Join(s.dir, latestFile), f); err != nil {
		return fmt.Errorf("%w: %s: %v", report.ErrSnapshotWrite, latestFile, err)
	}

	state.Snapshots[snap.Date] = snap
	state.LatestDate = snap.Date

	if err := s.saveState(state); err != nil {
		return err
	}

	s.logger.Info("latest pointer moved", zap.String("date", snap.Date))

	return nil
}

// Latest returns the snapshot the latest pointer references, or nil when the store is empty.
func (s *Store) Latest(ctx context.Context) (*report.Snapshot, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}

	return state.Latest(), nil
}

// LatestPath returns the path of latest.xlsx.
func (s *Store) LatestPath(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, latestFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", report.ErrNotFound, latestFile)
		}

		return "", err
	}

	return path, nil
}

// Metadata returns the recorded snapshot for date.
func (s *Store) Metadata(ctx context.Context, date time.Time) (*report.Snapshot, error) {
	state, err := s.State(ctx)
	if err != nil {
		return nil, err
	}

	snap, ok := state.Snapshots[report.Key(date)]
	if !ok {
		return nil, fmt.Errorf("%w: metadata for %s", report.ErrNotFound, report.Key(date))
	}

	return snap, nil
}

// State returns the persisted state without waiting for an in-progress publish.
func (s *Store) State(ctx context.Context) (*report.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return s.loadState()
}

func (s *Store) loadState() (*report.State, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return emptyState(), nil
		}

		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	state, err := decodeState(data)
	if err != nil {
		s.logger.Warn("unreadable state file, starting empty", zap.Error(err))
		return emptyState(), nil
	}

	return state, nil
}

func (s *Store) saveState(state *report.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding state: %v", report.ErrSnapshotWrite, err)
	}

	if err := writeAtomic(filepath.Join(s.dir, stateFile), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %s: %v", report.ErrSnapshotWrite, stateFile, err)
	}

	return nil
}

// writeAtomic streams r into a temp file next to path, syncs it and renames it over path.
func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return err
	}

	if err := tmp.Sync(); err != nil {
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}

	committed = true

	return nil
}
