package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileLoader loads recordings from disk. WAV files at SampleRate are decoded
// directly; everything else goes through the Converter into a temporary WAV
// that is removed before Load returns.
type FileLoader struct {
	converter Converter
	tempDir   string
	logger    *slog.Logger
}

// NewFileLoader creates a FileLoader. converter may be nil, in which case only
// 16 kHz WAV input can be loaded. tempDir defaults to os.TempDir().
func NewFileLoader(converter Converter, tempDir string, logger *slog.Logger) *FileLoader {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLoader{converter: converter, tempDir: tempDir, logger: logger}
}

// Load implements Loader.Load.
func (l *FileLoader) Load(ctx context.Context, path string) (Waveform, error) {
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		w, err := decodeFile(path)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, ErrSampleRate) && !errors.Is(err, ErrInvalidWAV) {
			return Waveform{}, fmt.Errorf("%w: %w", ErrLoad, err)
		}
		l.logger.Debug("wav needs conversion",
			slog.String("path", path),
			slog.String("reason", err.Error()),
		)
	}

	if l.converter == nil {
		return Waveform{}, fmt.Errorf("%w: %w", ErrLoad, ErrConverterRequired)
	}

	return l.loadConverted(ctx, path)
}

// loadConverted transcodes path into a temp WAV, decodes it and removes it.
func (l *FileLoader) loadConverted(ctx context.Context, path string) (Waveform, error) {
	if err := os.MkdirAll(l.tempDir, 0750); err != nil {
		return Waveform{}, fmt.Errorf("%w: create temp directory: %w", ErrLoad, err)
	}

	tmp, err := os.CreateTemp(l.tempDir, "decoded_*.wav")
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: create temp file: %w", ErrLoad, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := l.converter.Convert(ctx, path, tmpPath); err != nil {
		return Waveform{}, fmt.Errorf("%w: convert: %w", ErrLoad, err)
	}

	w, err := decodeFile(tmpPath)
	if err != nil {
		return Waveform{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return w, nil
}

func decodeFile(path string) (Waveform, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return Waveform{}, fmt.Errorf("open audio file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeWAV(f)
}

// Verify interface implementation at compile time.
var _ Loader = (*FileLoader)(nil)
