package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/FreddySam09/verbofix-backend/internal/report"
	"github.com/FreddySam09/verbofix-backend/internal/storage"
)

// ErrReportNotReady is returned when a job has no report yet.
var ErrReportNotReady = errors.New("job: report not ready")

// ErrNoInput is returned when a job is processed without a stored upload.
var ErrNoInput = errors.New("job: no input recording")

// Analyzer produces a report for a recording on disk. It never fails; bad
// input yields a minimal report.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path string) *report.Report
}

// Submission is an uploaded recording.
type Submission struct {
	// Filename is the client-supplied file name, used for the temp file and archive key.
	Filename string
	// Data is the recording content.
	Data io.Reader
	// Archive requests that the recording be kept in the archive.
	Archive bool
}

// Service runs recording analyses, synchronously or as background jobs.
type Service struct {
	repo     Repository
	store    storage.Storage
	analyzer Analyzer
	logger   *slog.Logger
}

// NewService creates a new Service.
func NewService(repo Repository, store storage.Storage, analyzer Analyzer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		store:    store,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Analyze stores the upload in a temp file, analyzes it and removes the file.
func (s *Service) Analyze(ctx context.Context, sub Submission) (*report.Report, error) {
	path, err := s.store.SaveTemp(ctx, sub.Filename, sub.Data)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	defer s.cleanup(path)

	s.logger.Info("analyzing upload",
		slog.String("filename", sub.Filename),
	)
	return s.analyzer.AnalyzeFile(ctx, path), nil
}

// Create stores the upload and persists a new IN_QUEUE job for it.
func (s *Service) Create(ctx context.Context, sub Submission) (*Job, error) {
	path, err := s.store.SaveTemp(ctx, sub.Filename, sub.Data)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	job := New()
	job.Filename = sub.Filename
	job.InputPath = path
	job.Archive = sub.Archive

	if err := s.repo.Save(ctx, job); err != nil {
		s.cleanup(path)
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("job created",
		slog.String("job_id", job.ID),
		slog.String("filename", sub.Filename),
		slog.Bool("archive", sub.Archive),
	)
	return job, nil
}

// Process runs the analysis for a job created by Create. Once the job has
// started, its temp file is removed on every exit path. Archive failures are
// logged and do not fail the job.
func (s *Service) Process(ctx context.Context, jobID string) (err error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}

	if err := job.Start(); err != nil {
		return err
	}

	path := job.InputPath
	defer func() {
		if path != "" {
			s.cleanup(path)
			job.ClearInput()
		}
		if r := recover(); r != nil {
			err = fmt.Errorf("job: analysis panicked: %v", r)
		}
		if err != nil && !job.IsTerminal() {
			_ = job.Fail(err.Error())
		}
		if saveErr := s.repo.Save(context.WithoutCancel(ctx), job); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	if err := s.repo.Save(ctx, job); err != nil {
		return err
	}
	if path == "" {
		return ErrNoInput
	}

	logger := s.logger.With(slog.String("job_id", job.ID))
	logger.Info("processing job")

	if job.Archive {
		s.archive(ctx, logger, job, path)
	}

	rep := s.analyzer.AnalyzeFile(ctx, path)
	if err := job.Complete(rep); err != nil {
		return err
	}

	logger.Info("job completed",
		slog.String("severity", string(rep.Severity)),
		slog.Float64("stammer_rate", rep.StammerRateValue),
	)
	return nil
}

// archive uploads the recording and records its URL on the job.
func (s *Service) archive(ctx context.Context, logger *slog.Logger, job *Job, path string) {
	rc, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		logger.Warn("failed to open recording for archive", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = rc.Close() }()

	url, err := s.store.Archive(ctx, storage.RecordingKey(job.ID, job.Filename), rc)
	if err != nil {
		logger.Warn("failed to archive recording", slog.String("error", err.Error()))
		return
	}
	job.SetRecordingURL(url)
	logger.Info("recording archived", slog.String("url", url))
}

// List returns all jobs, newest first.
func (s *Service) List(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Get retrieves a job by ID.
func (s *Service) Get(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Report returns the report of a completed job.
func (s *Service) Report(ctx context.Context, id string) (*report.Report, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != StatusCompleted || job.Report == nil {
		return nil, ErrReportNotReady
	}
	return job.Report, nil
}

func (s *Service) cleanup(path string) {
	if err := s.store.CleanupTemp(context.Background(), []string{path}); err != nil {
		s.logger.Warn("failed to remove temp file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
