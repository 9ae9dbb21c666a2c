package audio

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// FFmpegConverter implements Converter using the ffmpeg CLI.
type FFmpegConverter struct {
	ffmpegPath string
}

// NewFFmpegConverter creates a new FFmpegConverter.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found in PATH).
func NewFFmpegConverter(ffmpegPath string) *FFmpegConverter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegConverter{ffmpegPath: ffmpegPath}
}

// Convert implements Converter.Convert, resampling src to 16 kHz mono 16-bit PCM.
func (c *FFmpegConverter) Convert(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", src)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-i", src,
		"-vn",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		dst,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg error: %w, stderr: %s", err, stderr.String())
	}

	return nil
}

// Verify interface implementation at compile time.
var _ Converter = (*FFmpegConverter)(nil)
