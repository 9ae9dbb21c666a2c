// Package id provides unique identifier generation for analysis jobs.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every generated ID.
const Prefix = "analysis-"

// Generate creates a new unique job ID.
// Format: analysis-<uuid>
// Example: analysis-3f0c9a52-8d1e-4c57-9a51-0f6a3b2d9e41
func Generate() string {
	return Prefix + uuid.NewString()
}

// Valid reports whether s has the shape of a generated ID.
func Valid(s string) bool {
	rest, ok := strings.CutPrefix(s, Prefix)
	if !ok || rest == "" {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
