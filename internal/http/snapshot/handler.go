package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/report"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var historyFile = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\.xlsx$`)

type Service interface {
	View(ctx context.Context, selector string) (*snapshot.View, error)
	Dates(ctx context.Context) (*snapshot.Dates, error)
	History(ctx context.Context, date time.Time) (string, error)
	LatestFile(ctx context.Context) (string, error)
}

type Handler struct {
	svc    Service
	logger *zap.Logger
}

func NewHandler(svc Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// APIRoutes mounts the JSON read endpoints.
func (h *Handler) APIRoutes(r chi.Router) {
	r.Get("/latest", h.latest)
	r.Get("/dates", h.dates)
}

// FileRoutes mounts the workbook downloads.
func (h *Handler) FileRoutes(r chi.Router) {
	r.Get("/latest.xlsx", h.latestFile)
	r.Get("/history/{file}", h.historyFile)
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.View(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.logger.Error("failed to build view", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	h.respond(w, view)
}

func (h *Handler) dates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.svc.Dates(r.Context())
	if err != nil {
		h.logger.Error("failed to list dates", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)

		return
	}

	h.respond(w, dates)
}

func (h *Handler) latestFile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.LatestFile(r.Context())
	if err != nil {
		h.fileError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.serveWorkbook(w, r, p, "latest.xlsx")
}

func (h *Handler) historyFile(w http.ResponseWriter, r *http.Request) {
	name := path.Base(chi.URLParam(r, "file"))
	if !historyFile.MatchString(name) {
		http.Error(w, "invalid history file", http.StatusBadRequest)
		return
	}

	date, err := report.ParseKey(strings.TrimSuffix(name, ".xlsx"))
	if err != nil {
		http.Error(w, "invalid history file", http.StatusBadRequest)
		return
	}

	p, err := h.svc.History(r.Context(), date)
	if err != nil {
		h.fileError(w, err)
		return
	}

	h.serveWorkbook(w, r, p, name)
}

func (h *Handler) serveWorkbook(w http.ResponseWriter, r *http.Request, p, name string) {
	f, err := os.Open(p)
	if err != nil {
		h.fileError(w, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.fileError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *Handler) fileError(w http.ResponseWriter, err error) {
	if errors.Is(err, report.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	h.logger.Error("failed to serve workbook", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (h *Handler) respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
