package snapshot_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httpsnapshot "github.com/MrJamesThe3rd/lcrdash/internal/http/snapshot"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot/store"
)

func newRouter(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()

	st, err := store.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	h := httpsnapshot.NewHandler(snapshot.NewService(st), zap.NewNop())

	r := chi.NewRouter()
	r.Route("/api", h.APIRoutes)
	r.Route("/data", h.FileRoutes)

	return r, st
}

func seed(t *testing.T, st *store.Store, date time.Time, content string) {
	t.Helper()

	src := filepath.Join(t.TempDir(), "wb.xlsx")
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	ctx := context.Background()
	name, err := st.Save(ctx, date, src)
	require.NoError(t, err)

	require.NoError(t, st.SetLatest(ctx, &report.Snapshot{
		Date:          report.Key(date),
		Filename:      "LCR_" + date.Format("02012006") + ".xlsx",
		ProcessedName: name,
		ContentHash:   "hash-" + report.Key(date),
		Mode:          "excel",
	}))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	return rec
}

func TestHandler_EmptyStore(t *testing.T) {
	h, _ := newRouter(t)

	rec := get(t, h, "/api/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"exists": false, "date": null, "filename": null, "uploadedAt": null,
		"contentHash": null, "mode": null, "rows": null, "fileUrl": null,
		"availableDates": [], "selectedDate": null, "latestDate": null
	}`, rec.Body.String())

	rec = get(t, h, "/api/dates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dates": [], "latestDate": null}`, rec.Body.String())

	rec = get(t, h, "/data/latest.xlsx")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Latest(t *testing.T) {
	h, st := newRouter(t)
	seed(t, st, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "jan")
	seed(t, st, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC), "feb")

	tests := []struct {
		name         string
		target       string
		wantSelected string
		wantHash     string
	}{
		{name: "Default", target: "/api/latest", wantSelected: "2026-02-04", wantHash: "hash-2026-02-04"},
		{name: "ByDate", target: "/api/latest?date=2026-01-01", wantSelected: "2026-01-01", wantHash: "hash-2026-01-01"},
		{name: "InvalidDateIgnored", target: "/api/latest?date=../../etc", wantSelected: "2026-02-04", wantHash: "hash-2026-02-04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var view snapshot.View
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))

			assert.True(t, view.Exists)
			assert.Equal(t, tt.wantSelected, *view.SelectedDate)
			assert.Equal(t, tt.wantHash, *view.ContentHash)
			assert.Equal(t, "2026-02-04", *view.LatestDate)
			assert.Equal(t, "/data/history/"+tt.wantSelected+".xlsx", *view.FileURL)
			assert.Equal(t, []string{"2026-01-01", "2026-02-04"}, view.AvailableDates)
		})
	}
}

func TestHandler_Files(t *testing.T) {
	h, st := newRouter(t)
	seed(t, st, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "jan")
	seed(t, st, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC), "feb")

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{name: "Latest", target: "/data/latest.xlsx", wantStatus: http.StatusOK, wantBody: "feb"},
		{name: "History", target: "/data/history/2026-01-01.xlsx", wantStatus: http.StatusOK, wantBody: "jan"},
		{name: "HistoryMissing", target: "/data/history/2026-03-01.xlsx", wantStatus: http.StatusNotFound},
		{name: "NotAHistoryName", target: "/data/history/latest.json", wantStatus: http.StatusBadRequest},
		{name: "ImpossibleDate", target: "/data/history/2026-13-01.xlsx", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus != http.StatusOK {
				return
			}

			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
		})
	}
}

func TestHandler_Dates(t *testing.T) {
	h, st := newRouter(t)
	seed(t, st, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), "c")
	seed(t, st, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "a")
	seed(t, st, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), "b")

	rec := get(t, h, "/api/dates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"dates": ["2026-01-01", "2026-01-02", "2026-01-03"], "latestDate": "2026-01-02"}`, rec.Body.String())
}
