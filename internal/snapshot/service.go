package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=snapshot
type Repository interface {
	Save(ctx context.Context, date time.Time, srcPath string) (string, error)
	SetLatest(ctx context.Context, snap *report.Snapshot) error

	Get(ctx context.Context, date time.Time) (string, error)
	ListDates(ctx context.Context) ([]time.Time, error)
	Latest(ctx context.Context) (*report.Snapshot, error)
	LatestPath(ctx context.Context) (string, error)
	Metadata(ctx context.Context, date time.Time) (*report.Snapshot, error)
}

// HistoryURLPrefix is where history workbooks are served from.
const HistoryURLPrefix = "/data/history/"

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// View is the dashboard's picture of one snapshot. Absent values are null in JSON.
type View struct {
	Exists         bool       `json:"exists"`
	Date           *string    `json:"date"`
	Filename       *string    `json:"filename"`
	UploadedAt     *time.Time `json:"uploadedAt"`
	ContentHash    *string    `json:"contentHash"`
	Mode           *string    `json:"mode"`
	Rows           *int       `json:"rows"`
	Warnings       []string   `json:"warnings,omitempty"`
	FileURL        *string    `json:"fileUrl"`
	AvailableDates []string   `json:"availableDates"`
	SelectedDate   *string    `json:"selectedDate"`
	LatestDate     *string    `json:"latestDate"`
}

// Dates lists the stored report dates.
type Dates struct {
	Dates      []string `json:"dates"`
	LatestDate *string  `json:"latestDate"`
}

// View describes the snapshot for selector (YYYY-MM-DD). An empty or malformed
// selector selects the latest snapshot. An empty store yields Exists=false.
func (s *Service) View(ctx context.Context, selector string) (*View, error) {
	dates, err := s.Dates(ctx)
	if err != nil {
		return nil, err
	}

	view := &View{
		AvailableDates: dates.Dates,
		LatestDate:     dates.LatestDate,
	}

	selected := dates.LatestDate
	if d, err := report.ParseKey(selector); err == nil {
		selected = new(report.Key(d))
	}

	if selected == nil {
		return view, nil
	}

	date, err := report.ParseKey(*selected)
	if err != nil {
		return view, nil
	}

	meta, err := s.repo.Metadata(ctx, date)
	if err != nil && !errors.Is(err, report.ErrNotFound) {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}

	path, err := s.repo.Get(ctx, date)
	if err != nil && !errors.Is(err, report.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up snapshot: %w", err)
	}

	if meta == nil && path == "" {
		return view, nil
	}

	view.Date = selected
	view.SelectedDate = selected
	view.Exists = path != ""

	if view.Exists {
		view.FileURL = new(HistoryURLPrefix + *selected + ".xlsx")
	}

	if meta != nil {
		view.Filename = new(meta.Filename)
		view.UploadedAt = new(meta.UploadedAt)
		view.ContentHash = new(meta.ContentHash)
		view.Rows = new(meta.Rows)
		view.Warnings = meta.Warnings

		if meta.Mode != "" {
			view.Mode = new(meta.Mode)
		}
	}

	return view, nil
}

// Dates returns every stored report date, ascending, and the latest pointer.
func (s *Service) Dates(ctx context.Context) (*Dates, error) {
	list, err := s.repo.ListDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dates: %w", err)
	}

	latest, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest: %w", err)
	}

	out := &Dates{Dates: make([]string, 0, len(list))}
	for _, d := range list {
		out.Dates = append(out.Dates, report.Key(d))
	}

	if latest != nil {
		out.LatestDate = new(latest.Date)
	}

	return out, nil
}

// History returns the workbook path for date.
func (s *Service) History(ctx context.Context, date time.Time) (string, error) {
	return s.repo.Get(ctx, date)
}

// LatestFile returns the path of the latest workbook copy.
func (s *Service) LatestFile(ctx context.Context) (string, error) {
	return s.repo.LatestPath(ctx)
}
