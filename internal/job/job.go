// Package job provides the Job aggregate for asynchronous recording analysis,
// the repository port that stores jobs, and the Service that runs them.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/FreddySam09/verbofix-backend/internal/job/id"
	"github.com/FreddySam09/verbofix-backend/internal/report"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the upload is stored and waiting for analysis.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the recording is being analyzed.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates a report is available.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job could not produce a report.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Job is one asynchronous analysis of an uploaded recording.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Filename is the client-supplied name of the recording.
	Filename string
	// InputPath is the temp file holding the upload while the job runs.
	InputPath string
	// Archive indicates whether to keep the recording in the archive.
	Archive bool
	// RecordingURL is the archive URL if Archive was true and succeeded.
	RecordingURL string
	// Report is the analysis result once the job is COMPLETED.
	Report *report.Report
	// Error contains the failure message if the job FAILED.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete stores the report and transitions the job to COMPLETED.
func (j *Job) Complete(rep *report.Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.Report = rep
	return nil
}

// Fail records errMsg and transitions the job to FAILED.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetRecordingURL records where the recording was archived.
func (j *Job) SetRecordingURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.RecordingURL = url
	j.UpdatedAt = time.Now()
}

// ClearInput forgets the temp file path once it has been removed.
func (j *Job) ClearInput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.InputPath = ""
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// Clone creates a copy of the job for safe reads. Reports are immutable and
// shared between clones.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Filename:     j.Filename,
		InputPath:    j.InputPath,
		Archive:      j.Archive,
		RecordingURL: j.RecordingURL,
		Report:       j.Report,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
