package job

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FreddySam09/verbofix-backend/internal/report"
	"github.com/FreddySam09/verbofix-backend/internal/storage"
)

// mockAnalyzer implements Analyzer for testing.
type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) AnalyzeFile(ctx context.Context, path string) *report.Report {
	args := m.Called(ctx, path)
	if fn, ok := args.Get(0).(func(string) *report.Report); ok {
		return fn(path)
	}
	return args.Get(0).(*report.Report)
}

// archivingStorage is a LocalStorage whose Archive is mocked.
type archivingStorage struct {
	*storage.LocalStorage
	mock.Mock
}

func (s *archivingStorage) Archive(ctx context.Context, key string, data io.Reader) (string, error) {
	body, _ := io.ReadAll(data)
	args := s.Called(key, string(body))
	return args.String(0), args.Error(1)
}

// failingRepo fails every Save.
type failingRepo struct {
	*MemoryRepository
}

func (failingRepo) Save(context.Context, *Job) error {
	return errors.New("disk full")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLocalStore(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

func sampleReport() *report.Report {
	return report.Minimal("hello", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestNewService(t *testing.T) {
	svc := NewService(NewMemoryRepository(), newLocalStore(t), &mockAnalyzer{}, nil)
	require.NotNil(t, svc)
	assert.Equal(t, slog.Default(), svc.logger)
}

func TestService_Analyze(t *testing.T) {
	store := newLocalStore(t)
	analyzer := &mockAnalyzer{}
	analyzer.On("AnalyzeFile", mock.Anything, mock.MatchedBy(func(p string) bool {
		content, err := os.ReadFile(p)
		return err == nil && string(content) == "RIFF...." && strings.HasSuffix(p, ".wav")
	})).Return(sampleReport())

	svc := NewService(NewMemoryRepository(), store, analyzer, quietLogger())

	rep, err := svc.Analyze(context.Background(), Submission{Filename: "session.wav", Data: strings.NewReader("RIFF....")})
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), rep)
	assert.Empty(t, dirEntries(t, store.TempDir()), "temp file must be removed")
	analyzer.AssertExpectations(t)
}

func TestService_Analyze_SaveFails(t *testing.T) {
	analyzer := &mockAnalyzer{}
	svc := NewService(NewMemoryRepository(), newLocalStore(t), analyzer, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, Submission{Filename: "a.wav", Data: strings.NewReader("x")})
	assert.ErrorIs(t, err, context.Canceled)
	analyzer.AssertNotCalled(t, "AnalyzeFile", mock.Anything, mock.Anything)
}

func TestService_Create(t *testing.T) {
	store := newLocalStore(t)
	repo := NewMemoryRepository()
	svc := NewService(repo, store, &mockAnalyzer{}, quietLogger())

	job, err := svc.Create(context.Background(), Submission{Filename: "talk.m4a", Data: strings.NewReader("data"), Archive: true})
	require.NoError(t, err)

	assert.Equal(t, StatusInQueue, job.Status)
	assert.Equal(t, "talk.m4a", job.Filename)
	assert.True(t, job.Archive)
	assert.FileExists(t, job.InputPath)

	stored, err := repo.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.InputPath, stored.InputPath)
}

func TestService_Create_RepoFailureCleansUp(t *testing.T) {
	store := newLocalStore(t)
	svc := NewService(failingRepo{NewMemoryRepository()}, store, &mockAnalyzer{}, quietLogger())

	_, err := svc.Create(context.Background(), Submission{Filename: "a.wav", Data: strings.NewReader("data")})
	require.Error(t, err)
	assert.Empty(t, dirEntries(t, store.TempDir()))
}

func TestService_Process(t *testing.T) {
	store := newLocalStore(t)
	repo := NewMemoryRepository()
	analyzer := &mockAnalyzer{}
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).Return(sampleReport())
	svc := NewService(repo, store, analyzer, quietLogger())
	ctx := context.Background()

	job, err := svc.Create(ctx, Submission{Filename: "a.wav", Data: strings.NewReader("data")})
	require.NoError(t, err)

	require.NoError(t, svc.Process(ctx, job.ID))

	done, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, sampleReport(), done.Report)
	assert.Empty(t, done.InputPath)
	assert.Empty(t, done.RecordingURL)
	assert.False(t, done.StartedAt.IsZero())
	assert.False(t, done.CompletedAt.IsZero())
	assert.Empty(t, dirEntries(t, store.TempDir()))

	rep, err := svc.Report(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), rep)
}

func TestService_Process_Archives(t *testing.T) {
	store := &archivingStorage{LocalStorage: newLocalStore(t)}
	analyzer := &mockAnalyzer{}
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).Return(sampleReport())
	svc := NewService(NewMemoryRepository(), store, analyzer, quietLogger())
	ctx := context.Background()

	job, err := svc.Create(ctx, Submission{Filename: "session.wav", Data: bytes.NewReader([]byte("wave")), Archive: true})
	require.NoError(t, err)
	store.On("Archive", "recordings/"+job.ID+"/session.wav", "wave").Return("https://recs/session.wav", nil)

	require.NoError(t, svc.Process(ctx, job.ID))

	done, _ := svc.Get(ctx, job.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "https://recs/session.wav", done.RecordingURL)
	store.AssertExpectations(t)
}

func TestService_Process_ArchiveFailureDoesNotFailJob(t *testing.T) {
	store := &archivingStorage{LocalStorage: newLocalStore(t)}
	store.On("Archive", mock.Anything, mock.Anything).Return("", storage.ErrArchiveNotConfigured)
	analyzer := &mockAnalyzer{}
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).Return(sampleReport())
	svc := NewService(NewMemoryRepository(), store, analyzer, quietLogger())
	ctx := context.Background()

	job, err := svc.Create(ctx, Submission{Filename: "a.wav", Data: strings.NewReader("x"), Archive: true})
	require.NoError(t, err)
	require.NoError(t, svc.Process(ctx, job.ID))

	done, _ := svc.Get(ctx, job.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Empty(t, done.RecordingURL)
	assert.Empty(t, dirEntries(t, store.TempDir()))
}

func TestService_Process_PanicFailsJob(t *testing.T) {
	store := newLocalStore(t)
	analyzer := &mockAnalyzer{}
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).Return(func(string) *report.Report {
		panic("decoder exploded")
	})
	svc := NewService(NewMemoryRepository(), store, analyzer, quietLogger())
	ctx := context.Background()

	job, err := svc.Create(ctx, Submission{Filename: "a.wav", Data: strings.NewReader("x")})
	require.NoError(t, err)

	err = svc.Process(ctx, job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder exploded")

	failed, _ := svc.Get(ctx, job.ID)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "decoder exploded")
	assert.Empty(t, dirEntries(t, store.TempDir()))

	_, err = svc.Report(ctx, job.ID)
	assert.ErrorIs(t, err, ErrReportNotReady)
}

func TestService_Process_NoInput(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo, newLocalStore(t), &mockAnalyzer{}, quietLogger())
	ctx := context.Background()

	job := New()
	require.NoError(t, repo.Save(ctx, job))

	assert.ErrorIs(t, svc.Process(ctx, job.ID), ErrNoInput)

	failed, _ := svc.Get(ctx, job.ID)
	assert.Equal(t, StatusFailed, failed.Status)
}

func TestService_Process_AlreadyCompleted(t *testing.T) {
	analyzer := &mockAnalyzer{}
	analyzer.On("AnalyzeFile", mock.Anything, mock.Anything).Return(sampleReport()).Once()
	svc := NewService(NewMemoryRepository(), newLocalStore(t), analyzer, quietLogger())
	ctx := context.Background()

	job, err := svc.Create(ctx, Submission{Filename: "a.wav", Data: strings.NewReader("x")})
	require.NoError(t, err)
	require.NoError(t, svc.Process(ctx, job.ID))

	assert.ErrorIs(t, svc.Process(ctx, job.ID), ErrInvalidTransition)
	analyzer.AssertNumberOfCalls(t, "AnalyzeFile", 1)
}

func TestService_NotFound(t *testing.T) {
	svc := NewService(NewMemoryRepository(), newLocalStore(t), &mockAnalyzer{}, quietLogger())
	ctx := context.Background()

	_, err := svc.Get(ctx, "analysis-missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = svc.Report(ctx, "analysis-missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, svc.Process(ctx, "analysis-missing"), ErrJobNotFound)
}

func TestService_Report_NotReady(t *testing.T) {
	svc := NewService(NewMemoryRepository(), newLocalStore(t), &mockAnalyzer{}, quietLogger())
	ctx := context.Background()

	job, err := svc.Create(ctx, Submission{Filename: "a.wav", Data: strings.NewReader("x")})
	require.NoError(t, err)

	_, err = svc.Report(ctx, job.ID)
	assert.ErrorIs(t, err, ErrReportNotReady)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryRepository(), newLocalStore(t), &mockAnalyzer{}, quietLogger())

	jobs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	first, err := svc.Create(ctx, Submission{Filename: "a.wav", Data: strings.NewReader("a")})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Create(ctx, Submission{Filename: "b.wav", Data: strings.NewReader("b")})
	require.NoError(t, err)

	jobs, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}
