package store_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot/store"
)

var _ snapshot.Repository = (*store.Store)(nil)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newStore(t *testing.T) (*store.Store, string) {
	t.Helper()

	dir := t.TempDir()
	s, err := store.New(dir, zap.NewNop())
	require.NoError(t, err)

	return s, dir
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "src.xlsx")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	return p
}

func TestStore_SaveGet(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()
	d := day(2026, 2, 4)

	name, err := s.Save(ctx, d, writeFile(t, "first"))
	require.NoError(t, err)
	assert.Equal(t, "2026-02-04.xlsx", name)

	path, err := s.Get(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "history", "2026-02-04.xlsx"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	_, err = s.Save(ctx, d, writeFile(t, "second"))
	require.NoError(t, err)

	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got), "last write wins")

	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Get(context.Background(), day(2026, 1, 1))
	require.ErrorIs(t, err, report.ErrNotFound)
}

func TestStore_SaveMissingSource(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Save(context.Background(), day(2026, 1, 1), filepath.Join(t.TempDir(), "nope.xlsx"))
	require.ErrorIs(t, err, report.ErrSnapshotWrite)
}

func TestStore_ListDates(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	dates, err := s.ListDates(ctx)
	require.NoError(t, err)
	assert.Empty(t, dates)

	for _, d := range []time.Time{day(2026, 1, 3), day(2026, 1, 1), day(2026, 1, 2)} {
		_, err := s.Save(ctx, d, writeFile(t, report.Key(d)))
		require.NoError(t, err)
	}

	history := filepath.Join(dir, "history")
	for _, junk := range []string{"notes.txt", "2026-13-01.xlsx", ".2026-01-04.xlsx-123.tmp", "20260105.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(history, junk), []byte("x"), 0o644))
	}

	require.NoError(t, os.Mkdir(filepath.Join(history, "2026-01-09.xlsx"), 0o755))

	dates, err = s.ListDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2026, 1, 1), day(2026, 1, 2), day(2026, 1, 3)}, dates)
}

func TestStore_Latest(t *testing.T) {
	s, dir := newStore(t)
	ctx := context.Background()

	latest, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest, "empty store has no latest")

	_, err = s.LatestPath(ctx)
	require.ErrorIs(t, err, report.ErrNotFound)

	for _, d := range []time.Time{day(2026, 2, 4), day(2026, 1, 1)} {
		_, err := s.Save(ctx, d, writeFile(t, "wb-"+report.Key(d)))
		require.NoError(t, err)

		require.NoError(t, s.SetLatest(ctx, &report.Snapshot{
			Date:          report.Key(d),
			Filename:      "LCR.xlsx",
			ProcessedName: store.HistoryName(d),
			ContentHash:   "hash-" + report.Key(d),
		}))
	}

	// The most recent upload wins, even for an older report date.
	latest, err = s.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-01-01", latest.Date)

	path, err := s.LatestPath(ctx)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "wb-2026-01-01", string(got))

	meta, err := s.Metadata(ctx, day(2026, 2, 4))
	require.NoError(t, err)
	assert.Equal(t, "hash-2026-02-04", meta.ContentHash)

	_, err = s.Metadata(ctx, day(2025, 1, 1))
	require.ErrorIs(t, err, report.ErrNotFound)

	raw, err := os.ReadFile(filepath.Join(dir, "latest.json"))
	require.NoError(t, err)

	var state report.State
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, "2026-01-01", state.LatestDate)
	assert.Len(t, state.Snapshots, 2)
}

func TestStore_SetLatestWithoutSnapshot(t *testing.T) {
	s, dir := newStore(t)

	err := s.SetLatest(context.Background(), &report.Snapshot{Date: "2026-02-04"})
	require.ErrorIs(t, err, report.ErrSnapshotWrite)

	_, err = os.Stat(filepath.Join(dir, "latest.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_StateFormats(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantLatest string
		wantDates  []string
	}{
		{
			name: "Keyed",
			content: `{"latestDate": "2026-01-02", "snapshots": {
				"2026-01-01": {"date": "2026-01-01", "filename": "a.xlsx"},
				"2026-01-02": {"date": "2026-01-02", "filename": "b.xlsx"}}}`,
			wantLatest: "2026-01-02",
			wantDates:  []string{"2026-01-01", "2026-01-02"},
		},
		{
			name: "DanglingLatestFallsBackToNewest",
			content: `{"latestDate": "2025-12-31", "snapshots": {
				"2026-01-03": {"date": "2026-01-03"},
				"2026-01-01": {"date": "2026-01-01"}}}`,
			wantLatest: "2026-01-03",
			wantDates:  []string{"2026-01-01", "2026-01-03"},
		},
		{
			name:       "Legacy",
			content:    `{"filename": "LCR_04022026.xlsx", "storedName": "20260204T101500Z_LCR_04022026.xlsx", "uploadedAt": "2026-02-04T10:15:00.123456+00:00", "contentHash": "123-20260204T101500Z"}`,
			wantLatest: "2026-02-04",
			wantDates:  []string{"2026-02-04"},
		},
		{
			name:    "Corrupt",
			content: `{not json`,
		},
		{
			name:    "LegacyWithoutFilename",
			content: `{"uploadedAt": "2026-02-04T10:15:00Z"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dir := newStore(t)
			require.NoError(t, os.WriteFile(filepath.Join(dir, "latest.json"), []byte(tt.content), 0o644))

			state, err := s.State(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLatest, state.LatestDate)

			var dates []string
			for k := range state.Snapshots {
				dates = append(dates, k)
			}

			assert.ElementsMatch(t, tt.wantDates, dates)
		})
	}
}

func TestStore_LegacyMigrationFields(t *testing.T) {
	s, dir := newStore(t)
	legacy := `{"filename": "LCR_04022026.xlsx", "storedName": "stored.xlsx", "uploadedAt": "2026-02-04T10:15:00Z", "contentHash": "abc"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest.json"), []byte(legacy), 0o644))

	snap, err := s.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, &report.Snapshot{
		Date:          "2026-02-04",
		Filename:      "LCR_04022026.xlsx",
		StoredName:    "stored.xlsx",
		ProcessedName: "latest.xlsx",
		UploadedAt:    time.Date(2026, 2, 4, 10, 15, 0, 0, time.UTC),
		ContentHash:   "abc",
	}, snap)
}

func TestStore_ConcurrentSaveAndGet(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _ := newStore(t)
	ctx := context.Background()
	d1, d2 := day(2026, 1, 1), day(2026, 1, 2)

	_, err := s.Save(ctx, d2, writeFile(t, "stable"))
	require.NoError(t, err)

	src := writeFile(t, "moving")

	g, gctx := errgroup.WithContext(ctx)

	for i := range 20 {
		g.Go(func() error {
			_, err := s.Save(gctx, d1, src)
			return err
		})

		g.Go(func() error {
			path, err := s.Get(gctx, d2)
			if err != nil {
				return err
			}

			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			if string(b) != "stable" {
				return fmt.Errorf("read %d: got %q", i, b)
			}

			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("concurrent save/get did not complete")
	}

	path, err := s.Get(ctx, d1)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "moving", string(got))
}
