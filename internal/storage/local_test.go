package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "nested", "uploads")

		storage, err := NewLocalStorage(tempDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.TempDir() != tempDir {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), tempDir)
		}

		info, err := os.Stat(tempDir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "verbofix")
		if storage.TempDir() != expected {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), expected)
		}
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("saves data and keeps the extension", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), "session.wav", bytes.NewReader([]byte("RIFF data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		base := filepath.Base(path)
		if !strings.HasPrefix(base, "session_") || filepath.Ext(base) != ".wav" {
			t.Errorf("unexpected temp file name %s", base)
		}
		if filepath.Dir(path) != storage.TempDir() {
			t.Errorf("file %s written outside %s", path, storage.TempDir())
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "RIFF data" {
			t.Errorf("got %q, want %q", string(content), "RIFF data")
		}
	})

	t.Run("strips directories from the name", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), "../../etc/passwd", bytes.NewReader(nil))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}
		if filepath.Dir(path) != storage.TempDir() {
			t.Errorf("file %s written outside %s", path, storage.TempDir())
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, "test.wav", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_LoadTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("loads saved file", func(t *testing.T) {
		path, err := storage.SaveTemp(ctx, "load_test.m4a", bytes.NewReader([]byte("load data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		reader, err := storage.LoadTemp(ctx, path)
		if err != nil {
			t.Fatalf("LoadTemp() error = %v", err)
		}
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if string(content) != "load data" {
			t.Errorf("got %q, want %q", string(content), "load data")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		_, err := storage.LoadTemp(ctx, filepath.Join(storage.TempDir(), "missing.wav"))
		if err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.LoadTemp(ctx, "/some/path")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_CleanupTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := storage.SaveTemp(ctx, "cleanup.wav", bytes.NewReader([]byte("data")))
			if err != nil {
				t.Fatalf("SaveTemp() error = %v", err)
			}
			paths = append(paths, path)
		}

		if err := storage.CleanupTemp(ctx, paths); err != nil {
			t.Fatalf("CleanupTemp() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("ignores non-existent files", func(t *testing.T) {
		err := storage.CleanupTemp(ctx, []string{filepath.Join(storage.TempDir(), "gone.wav")})
		if err != nil {
			t.Errorf("CleanupTemp() should ignore non-existent files, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.CleanupTemp(ctx, []string{"/some/path"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Archive(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.Archive(context.Background(), "recordings/x/a.wav", bytes.NewReader([]byte("data")))
	if !errors.Is(err, ErrArchiveNotConfigured) {
		t.Errorf("expected ErrArchiveNotConfigured, got %v", err)
	}
}

func TestRecordingKey(t *testing.T) {
	tests := []struct {
		id, name, want string
	}{
		{"analysis-1", "session.wav", "recordings/analysis-1/session.wav"},
		{"analysis-1", "../secret.mp3", "recordings/analysis-1/secret.mp3"},
		{"analysis-1", "my talk (1).m4a", "recordings/analysis-1/my_talk__1_.m4a"},
		{"analysis-1", "", "recordings/analysis-1/recording"},
		{"analysis-1", "C:\\Users\\me\\clip.ogg", "recordings/analysis-1/clip.ogg"},
	}

	for _, tt := range tests {
		if got := RecordingKey(tt.id, tt.name); got != tt.want {
			t.Errorf("RecordingKey(%q, %q) = %q, want %q", tt.id, tt.name, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"a.wav":  "audio/wav",
		"a.MP3":  "audio/mpeg",
		"a.m4a":  "audio/mp4",
		"a.webm": "audio/webm",
		"a.bin":  "application/octet-stream",
	}
	for key, want := range tests {
		if got := contentType(key); got != want {
			t.Errorf("contentType(%q) = %q, want %q", key, got, want)
		}
	}
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()

	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}
