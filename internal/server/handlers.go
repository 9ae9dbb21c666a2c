package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/FreddySam09/verbofix-backend/internal/job"
	"github.com/FreddySam09/verbofix-backend/internal/job/id"
)

// AudioField is the multipart form field carrying the recording.
const AudioField = "audio"

// DefaultMaxUploadBytes limits request bodies when no limit is configured.
const DefaultMaxUploadBytes = 50 << 20

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to disk.
const multipartMemory = 8 << 20

// allowedExtensions lists the recording containers accepted for upload.
var allowedExtensions = map[string]bool{
	".wav": true, ".mp3": true, ".m4a": true, ".mp4": true, ".aac": true,
	".ogg": true, ".opus": true, ".webm": true, ".flac": true, ".3gp": true,
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.Service
	validator          *validator.Validate
	logger             *slog.Logger
	maxUploadBytes     int64
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only stores the upload and creates the job.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithMaxUploadBytes sets the request body limit for uploads.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          newValidator(),
		logger:             logger,
		maxUploadBytes:     DefaultMaxUploadBytes,
		enableAsyncProcess: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("audio_ext", func(fl validator.FieldLevel) bool {
		return allowedExtensions[strings.ToLower(filepath.Ext(fl.Field().String()))]
	})
	return v
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Analyze handles POST /analyze requests. The recording is analyzed before
// the response is written.
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	upload, file, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	rep, err := h.service.Analyze(r.Context(), job.Submission{
		Filename: upload.Filename,
		Data:     file,
	})
	if err != nil {
		h.logger.Error("failed to analyze upload",
			slog.String("filename", upload.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to analyze recording", "ANALYSIS_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	upload, file, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	createdJob, err := h.service.Create(r.Context(), job.Submission{
		Filename: upload.Filename,
		Data:     file,
		Archive:  upload.Archive,
	})
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create job", "JOB_CREATION_FAILED")
		return
	}

	// Processing continues after the response is written.
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if err := h.service.Process(ctx, jobID); err != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_LIST_FAILED")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	found, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// GetReport handles GET /jobs/{id}/report requests.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	jobID, ok := pathJobID(w, r)
	if !ok {
		return
	}

	rep, err := h.service.Report(r.Context(), jobID)
	if err != nil {
		h.writeLookupError(w, jobID, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// pathJobID reads and validates the {id} path value. On failure it writes the
// error response and returns ok=false.
func pathJobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return "", false
	}
	if !id.Valid(jobID) {
		writeError(w, http.StatusBadRequest, "invalid job ID", "INVALID_JOB_ID")
		return "", false
	}
	return jobID, true
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Filename:     j.Filename,
		Error:        j.Error,
		RecordingURL: j.RecordingURL,
		CreatedAt:    j.CreatedAt,
	}
	if j.Status == job.StatusCompleted {
		resp.Report = j.Report
	}
	if !j.CompletedAt.IsZero() {
		completed := j.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

func (h *Handlers) writeLookupError(w http.ResponseWriter, jobID string, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrReportNotReady):
		writeError(w, http.StatusNotFound, "report not ready", "REPORT_NOT_READY")
	default:
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
	}
}

// readUpload parses the multipart body and validates the audio part. On
// failure it writes the error response and returns ok=false.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (UploadRequest, multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes), "UPLOAD_TOO_LARGE")
			return UploadRequest{}, nil, false
		}
		h.logger.Warn("failed to parse multipart body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return UploadRequest{}, nil, false
	}

	file, header, err := r.FormFile(AudioField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing audio file field", "MISSING_AUDIO")
		return UploadRequest{}, nil, false
	}

	upload := UploadRequest{
		Filename: header.Filename,
		Size:     header.Size,
	}
	if v := r.FormValue("archive"); v != "" {
		archive, err := strconv.ParseBool(v)
		if err != nil {
			_ = file.Close()
			writeError(w, http.StatusBadRequest, "archive must be a boolean", "VALIDATION_ERROR")
			return UploadRequest{}, nil, false
		}
		upload.Archive = archive
	}

	if err := h.validator.Struct(upload); err != nil {
		_ = file.Close()
		h.logger.Warn("upload validation failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return UploadRequest{}, nil, false
	}

	return upload, file, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
