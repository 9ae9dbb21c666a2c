// Package storage keeps uploaded recordings on local disk while they are
// analyzed and optionally archives them to S3.
package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// Storage defines temporary upload storage plus an optional recording archive.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name is used as a hint for the filename; its extension is kept.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Archive stores a recording under key and returns its URL.
	// Returns ErrArchiveNotConfigured if no archive is configured.
	Archive(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// RecordingKey returns the archive key for a recording uploaded with job id.
func RecordingKey(jobID, filename string) string {
	return path.Join("recordings", jobID, sanitizeName(filename))
}

// sanitizeName strips directories and characters that are unsafe in file
// names and object keys.
func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "recording"
	}
	return name
}

// contentType returns the MIME type archived recordings are stored with.
func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
