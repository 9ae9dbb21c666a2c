package id

import (
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	id := Generate()

	if !strings.HasPrefix(id, "analysis-") {
		t.Errorf("expected ID to start with 'analysis-', got %s", id)
	}
	if !Valid(id) {
		t.Errorf("generated ID %s is not valid", id)
	}

	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"analysis-3f0c9a52-8d1e-4c57-9a51-0f6a3b2d9e41", true},
		{"analysis-", false},
		{"analysis-nope", false},
		{"job-1701432000", false},
		{"", false},
		{"../../etc/passwd", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.in); got != tt.want {
			t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
