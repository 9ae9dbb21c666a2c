// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is not a usable TCP port.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidThreshold is returned when CLASSIFIER_THRESHOLD is outside (0, 1).
	ErrInvalidThreshold = errors.New("config: CLASSIFIER_THRESHOLD must be in (0, 1)")
	// ErrInvalidUploadLimit is returned when MAX_UPLOAD_MB is not positive.
	ErrInvalidUploadLimit = errors.New("config: MAX_UPLOAD_MB must be positive")
	// ErrModelSourceConflict is returned when both MODEL_PATH and MODEL_SERVING_URL are set.
	ErrModelSourceConflict = errors.New("config: MODEL_PATH and MODEL_SERVING_URL are mutually exclusive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int `env:"PORT, default=8080" json:"port"`
	MaxUploadMB int `env:"MAX_UPLOAD_MB, default=50" json:"max_upload_mb"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/verbofix" json:"temp_dir"`

	// Audio settings
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`

	// Classifier settings; with neither MODEL_PATH nor MODEL_SERVING_URL the
	// energy heuristic is used.
	ModelPath           string  `env:"MODEL_PATH" json:"model_path,omitempty"`
	ModelServingURL     string  `env:"MODEL_SERVING_URL" json:"model_serving_url,omitempty"`
	ModelName           string  `env:"MODEL_NAME, default=stammer" json:"model_name"`
	ClassifierThreshold float64 `env:"CLASSIFIER_THRESHOLD, default=0.7" json:"classifier_threshold"`

	// Transcription settings
	OpenAIAPIKey    string `env:"OPENAI_API_KEY" json:"-"` // Masked in JSON
	TranscribeModel string `env:"TRANSCRIBE_MODEL, default=whisper-1" json:"transcribe_model"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// TranscriptionEnabled returns true if an OpenAI API key is configured.
func (c *Config) TranscriptionEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	return LoadFrom(context.Background(), envconfig.OsLookuper())
}

// LoadFrom is Load with an explicit variable source.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configured values are in range.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.MaxUploadMB <= 0 {
		return ErrInvalidUploadLimit
	}
	if c.ClassifierThreshold <= 0 || c.ClassifierThreshold >= 1 {
		return ErrInvalidThreshold
	}
	if c.ModelPath != "" && c.ModelServingURL != "" {
		return ErrModelSourceConflict
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo is NewLogger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, FFmpegPath: %s, MaxUploadMB: %d, ModelPath: %s, ModelServingURL: %s, ClassifierThreshold: %g, Transcription: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.FFmpegPath,
		c.MaxUploadMB,
		c.ModelPath,
		c.ModelServingURL,
		c.ClassifierThreshold,
		c.TranscriptionEnabled(),
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
