package ingest

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/MrJamesThe3rd/lcrdash/internal/encoding"
	"github.com/MrJamesThe3rd/lcrdash/internal/merge"
	"github.com/MrJamesThe3rd/lcrdash/internal/metrics"
	"github.com/MrJamesThe3rd/lcrdash/internal/recalc"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
)

const (
	xlsxExt     = ".xlsx"
	xlsxMime    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	zipMime     = "application/zip"
	sniffLen    = 3072
	archiveTime = "20060102T150405Z"
	lockRetry   = 100 * time.Millisecond
)

// Office containers that are zip files but never workbooks.
var foreignZipMimes = []string{
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.oasis.opendocument.text",
	"application/vnd.oasis.opendocument.presentation",
	"application/epub+zip",
	"application/java-archive",
}

type Options struct {
	UploadsDir string
	// WorkDir holds per-upload scratch directories; empty means os.TempDir.
	WorkDir  string
	MaxBytes int64
	// LockPath names a lock file shared by every process writing to the same data dir.
	// Empty limits the single-writer guarantee to this process.
	LockPath string
}

type Service struct {
	opts    Options
	locator Locator
	engine  *merge.Engine
	recalc  recalc.Recalculator
	repo    snapshot.Repository
	gate    *semaphore.Weighted
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(
	opts Options,
	locator Locator,
	engine *merge.Engine,
	rc recalc.Recalculator,
	repo snapshot.Repository,
	logger *zap.Logger,
) *Service {
	return &Service{
		opts:    opts,
		locator: locator,
		engine:  engine,
		recalc:  rc,
		repo:    repo,
		gate:    semaphore.NewWeighted(1),
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest validates and archives an uploaded extract, then merges, recalculates and
// stores it as the snapshot for the date in its name, moving the latest pointer.
//
// Rejected uploads return a report sentinel and leave nothing on disk. Uploads that
// fail after being archived return *ProcessError.
func (s *Service) Ingest(ctx context.Context, r io.Reader, suppliedName string) (snap *report.Snapshot, err error) {
	defer func() {
		code := "ok"
		if err != nil {
			code = report.Code(err)
		}

		metrics.UploadsTotal.WithLabelValues(code).Inc()
	}()

	name := encoding.SanitizeFilename(encoding.DecodeName(suppliedName))
	log := s.logger.With(zap.String("upload", name))

	body, err := s.validate(r, name)
	if err != nil {
		log.Info("upload rejected", zap.Error(err))
		return nil, err
	}

	uploadedAt := s.now().UTC()

	archived, err := s.archive(body, name, uploadedAt)
	if err != nil {
		log.Info("upload rejected", zap.Error(err))
		return nil, err
	}

	log = log.With(zap.String("stored", archived.name))
	log.Info("upload archived", zap.Int64("bytes", archived.size), zap.String("sha256", archived.hash))

	snap = &report.Snapshot{
		Filename:    name,
		StoredName:  archived.name,
		UploadedAt:  uploadedAt,
		ContentHash: archived.hash,
		Mode:        s.recalc.Mode(),
	}

	if err := s.process(ctx, archived.path, snap, log); err != nil {
		log.Error("upload not processed", zap.Error(err))
		return nil, &ProcessError{Stored: true, StoredName: archived.name, Err: err}
	}

	log.Info("snapshot published",
		zap.String("date", snap.Date),
		zap.Int("rows", snap.Rows),
		zap.Strings("warnings", snap.Warnings),
	)

	return snap, nil
}

// validate checks the name and sniffs the payload without consuming it.
func (s *Service) validate(r io.Reader, name string) (io.Reader, error) {
	if !strings.EqualFold(filepath.Ext(name), xlsxExt) {
		return nil, fmt.Errorf("%w: %s is not an .xlsx workbook", report.ErrUnsupportedFormat, name)
	}

	br := bufio.NewReaderSize(r, sniffLen)

	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	if len(head) == 0 {
		return nil, report.ErrEmptyUpload
	}

	if mt := mimetype.Detect(head); !isWorkbook(mt) {
		return nil, fmt.Errorf("%w: content is %s", report.ErrUnsupportedFormat, mt.String())
	}

	return br, nil
}

func isWorkbook(mt *mimetype.MIME) bool {
	if mt.Is(xlsxMime) {
		return true
	}

	for _, m := range foreignZipMimes {
		if mt.Is(m) {
			return false
		}
	}

	for p := mt; p != nil; p = p.Parent() {
		if p.Is(zipMime) {
			return true
		}
	}

	return false
}

type archivedUpload struct {
	name string
	path string
	size int64
	hash string
}

// archive writes the raw upload to the uploads dir under a timestamped name, never
// overwriting an earlier upload, and fingerprints it on the way.
func (s *Service) archive(r io.Reader, name string, at time.Time) (*archivedUpload, error) {
	if err := os.MkdirAll(s.opts.UploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}

	stamp := at.Format(archiveTime)
	stored := stamp + "_" + name

	f, err := os.OpenFile(filepath.Join(s.opts.UploadsDir, stored), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		stored = stamp + "_" + uuid.NewString()[:8] + "_" + name
		f, err = os.OpenFile(filepath.Join(s.opts.UploadsDir, stored), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to archive upload: %w", err)
	}

	path := f.Name()

	discard := func(cause error) (*archivedUpload, error) {
		f.Close()
		os.Remove(path)

		return nil, cause
	}

	limit := s.opts.MaxBytes
	if limit <= 0 {
		limit = 1<<63 - 1
	}

	h := sha256.New()

	n, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(r, limit))
	if err != nil {
		return discard(fmt.Errorf("failed to archive upload: %w", err))
	}

	if n == limit {
		if extra, _ := io.CopyN(io.Discard, r, 1); extra > 0 {
			return discard(fmt.Errorf("%w: more than %d bytes", report.ErrUploadTooLarge, limit))
		}
	}

	if err := f.Sync(); err != nil {
		return discard(fmt.Errorf("failed to archive upload: %w", err))
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to archive upload: %w", err)
	}

	metrics.UploadBytes.Add(float64(n))

	return &archivedUpload{
		name: stored,
		path: path,
		size: n,
		hash: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// process runs the single-writer section: merge, recalculate, save, publish. Waiting for
// the gate honours ctx; once the gate is held the work runs to completion.
func (s *Service) process(ctx context.Context, uploadPath string, snap *report.Snapshot, log *zap.Logger) error {
	date, err := report.ParseFilenameDate(snap.Filename)
	if err != nil {
		return err
	}

	snap.Date = report.Key(date)

	metrics.WritersWaiting.Inc()
	waitStart := time.Now()
	err = s.gate.Acquire(ctx, 1)
	metrics.WritersWaiting.Dec()

	if err != nil {
		return fmt.Errorf("waiting for writer: %w", err)
	}
	defer s.gate.Release(1)

	unlock, err := s.lockDataDir(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	metrics.ObserveStage("queue", waitStart)
	metrics.RecalcInFlight.Inc()
	defer metrics.RecalcInFlight.Dec()

	ctx = context.WithoutCancel(ctx)

	start := time.Now()

	tmpl, err := s.locator.Resolve(ctx)
	if err != nil {
		return err
	}

	metrics.ObserveStage("locate", start)
	log.Debug("template resolved", zap.String("template", tmpl))

	work, err := os.MkdirTemp(s.opts.WorkDir, "lcr-merge-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(work)

	merged := filepath.Join(work, "merged"+xlsxExt)
	start = time.Now()

	res, err := s.engine.Merge(ctx, uploadPath, tmpl, date, merged)
	if err != nil {
		return err
	}

	metrics.ObserveStage("merge", start)

	snap.Rows = res.Rows
	snap.Warnings = res.Warnings

	recalculated := filepath.Join(work, "recalculated"+xlsxExt)
	start = time.Now()

	if err := s.recalc.Recalculate(ctx, merged, recalculated); err != nil {
		return err
	}

	metrics.ObserveStage("recalc", start)
	start = time.Now()

	processed, err := s.repo.Save(ctx, date, recalculated)
	if err != nil {
		return err
	}

	snap.ProcessedName = processed

	if err := s.repo.SetLatest(ctx, snap); err != nil {
		return err
	}

	metrics.ObserveStage("store", start)

	return nil
}

// lockDataDir takes the cross-process writer lock, waiting while another process
// holds it. Waiting honours ctx.
func (s *Service) lockDataDir(ctx context.Context) (func(), error) {
	if s.opts.LockPath == "" {
		return func() {}, nil
	}

	fl := flock.New(s.opts.LockPath)

	ok, err := fl.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("waiting for writer lock: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("waiting for writer lock: %s not acquired", s.opts.LockPath)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release writer lock", zap.Error(err))
		}
	}, nil
}
