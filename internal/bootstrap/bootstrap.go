// Package bootstrap provides dependency initialization for the verbofix service.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FreddySam09/verbofix-backend/internal/analysis"
	"github.com/FreddySam09/verbofix-backend/internal/audio"
	"github.com/FreddySam09/verbofix-backend/internal/classify"
	"github.com/FreddySam09/verbofix-backend/internal/config"
	"github.com/FreddySam09/verbofix-backend/internal/job"
	"github.com/FreddySam09/verbofix-backend/internal/storage"
	"github.com/FreddySam09/verbofix-backend/internal/transcribe"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Analyzer *analysis.Analyzer
	Service  *job.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	analyzer, err := NewAnalyzer(cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := job.NewService(job.NewMemoryRepository(), store, analyzer, logger)

	return &Dependencies{
		Analyzer: analyzer,
		Service:  svc,
	}, nil
}

// NewAnalyzer wires the loader, classifier, and transcriber described by cfg.
func NewAnalyzer(cfg *config.Config, logger *slog.Logger) (*analysis.Analyzer, error) {
	model, err := initModel(cfg, logger)
	if err != nil {
		return nil, err
	}

	transcriber, err := initTranscriber(cfg, logger)
	if err != nil {
		return nil, err
	}

	loader := audio.NewFileLoader(audio.NewFFmpegConverter(cfg.FFmpegPath), cfg.TempDir, logger)

	return analysis.New(loader, classify.New(model, cfg.ClassifierThreshold),
		analysis.WithTranscriber(transcriber),
		analysis.WithLogger(logger),
	), nil
}

// initModel returns nil when no model is configured, which selects the
// energy heuristic.
func initModel(cfg *config.Config, logger *slog.Logger) (classify.Model, error) {
	switch {
	case cfg.ModelPath != "":
		model, err := classify.LoadLinearModel(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		logger.Info("classifier model loaded",
			slog.String("path", cfg.ModelPath),
			slog.Float64("threshold", cfg.ClassifierThreshold),
		)
		return model, nil
	case cfg.ModelServingURL != "":
		model, err := classify.NewServingModel(cfg.ModelServingURL, classify.WithModelName(cfg.ModelName))
		if err != nil {
			return nil, fmt.Errorf("create serving model: %w", err)
		}
		logger.Info("classifier model server configured",
			slog.String("url", cfg.ModelServingURL),
			slog.String("model", cfg.ModelName),
			slog.Float64("threshold", cfg.ClassifierThreshold),
		)
		return model, nil
	default:
		logger.Warn("no classifier model configured, using energy heuristic")
		return nil, nil
	}
}

func initTranscriber(cfg *config.Config, logger *slog.Logger) (transcribe.Transcriber, error) {
	if !cfg.TranscriptionEnabled() {
		logger.Info("transcription disabled")
		return transcribe.Nop{}, nil
	}
	t, err := transcribe.NewOpenAITranscriber(cfg.OpenAIAPIKey, transcribe.WithModel(cfg.TranscribeModel))
	if err != nil {
		return nil, fmt.Errorf("create transcriber: %w", err)
	}
	logger.Info("transcription configured",
		slog.String("model", cfg.TranscribeModel),
	)
	return t, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
