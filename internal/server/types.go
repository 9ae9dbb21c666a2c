// Package server provides the HTTP API for stammer analysis.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/FreddySam09/verbofix-backend/internal/report"
)

// UploadRequest describes the multipart upload of a recording.
type UploadRequest struct {
	// Filename is the client-supplied name of the audio part.
	Filename string `validate:"required,max=255,audio_ext"`
	// Size is the number of bytes in the audio part.
	Size int64 `validate:"gt=0"`
	// Archive requests that the recording be kept in the archive.
	Archive bool
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Filename is the uploaded recording name.
	Filename string `json:"filename"`
	// Error contains the failure message if the job failed.
	Error string `json:"error,omitempty"`
	// RecordingURL is the archive URL of the recording, if archived.
	RecordingURL string `json:"recording_url,omitempty"`
	// Report is the analysis result once the job is completed.
	Report *report.Report `json:"report,omitempty"`
	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the job finished, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	// Jobs are all known jobs, newest first.
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
