package upload

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/encoding"
	"github.com/MrJamesThe3rd/lcrdash/internal/ingest"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
	"github.com/MrJamesThe3rd/lcrdash/internal/snapshot"
)

// multipartOverhead is allowed on top of the upload limit for form boundaries and headers.
const multipartOverhead = 1 << 20

type Ingester interface {
	Ingest(ctx context.Context, r io.Reader, name string) (*report.Snapshot, error)
}

type Viewer interface {
	View(ctx context.Context, selector string) (*snapshot.View, error)
}

type Handler struct {
	ingest   Ingester
	view     Viewer
	maxBytes int64
	logger   *zap.Logger
}

func NewHandler(ingester Ingester, viewer Viewer, maxBytes int64, logger *zap.Logger) *Handler {
	return &Handler{ingest: ingester, view: viewer, maxBytes: maxBytes, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.upload)
}

type successResponse struct {
	OK         bool   `json:"ok"`
	StoredName string `json:"storedName"`
	*snapshot.View
}

type errorResponse struct {
	OK         bool   `json:"ok"`
	Error      string `json:"error"`
	Code       string `json:"code"`
	Stored     bool   `json:"stored"`
	StoredName string `json:"storedName,omitempty"`
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	body, name, err := h.payload(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}

	if c, ok := body.(io.Closer); ok {
		defer c.Close()
	}

	snap, err := h.ingest.Ingest(r.Context(), body, name)
	if err != nil {
		h.fail(w, err)
		return
	}

	view, err := h.view.View(r.Context(), snap.Date)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, http.StatusOK, successResponse{OK: true, StoredName: snap.StoredName, View: view})
}

// payload returns the upload stream and its client-supplied name. Raw bodies carry the
// name in X-Filename; multipart forms carry it on the "file" part.
func (h *Handler) payload(w http.ResponseWriter, r *http.Request) (io.Reader, string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		mediaType = ""
	}

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

		mr, err := r.MultipartReader()
		if err != nil {
			return nil, "", errBadRequest{err}
		}

		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil, "", errBadRequest{errors.New("file field is required")}
			}

			if err != nil {
				return nil, "", errBadRequest{err}
			}

			if part.FormName() == "file" {
				name := part.FileName()
				if name == "" {
					name = encoding.DefaultName
				}

				return part, name, nil
			}

			part.Close()
		}
	case "application/octet-stream", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		name := r.Header.Get("X-Filename")
		if name == "" {
			name = encoding.DefaultName
		}

		// One byte over the limit lets the ingester tell "exactly max" from "too large".
		return http.MaxBytesReader(w, r.Body, h.maxBytes+1), name, nil
	default:
		return nil, "", errors.Join(report.ErrUnsupportedFormat,
			errors.New("use application/octet-stream with X-Filename or multipart/form-data"))
	}
}

type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return "bad request: " + e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

func (h *Handler) fail(w http.ResponseWriter, err error) {
	resp := errorResponse{
		Error: err.Error(),
		Code:  report.Code(err),
	}

	var perr *ingest.ProcessError
	if errors.As(err, &perr) {
		resp.Stored = perr.Stored
		resp.StoredName = perr.StoredName
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		resp.Code = "UploadTooLarge"
	}

	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("upload failed", zap.Error(err), zap.Int("status", status))
	}

	h.respond(w, status, resp)
}

// StatusFor maps a pipeline error to its HTTP status.
func StatusFor(err error) int {
	var (
		badRequest errBadRequest
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &badRequest),
		errors.As(err, &tooLarge),
		errors.Is(err, report.ErrEmptyUpload),
		errors.Is(err, report.ErrUploadTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, report.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, report.ErrDateParse),
		errors.Is(err, report.ErrMissingSheet),
		errors.Is(err, report.ErrEmptyExtract),
		errors.Is(err, report.ErrInvalidTemplate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, report.ErrTemplateNotFound),
		errors.Is(err, report.ErrRecalcUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, report.ErrRecalcTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
