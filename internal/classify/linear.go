package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FreddySam09/verbofix-backend/internal/features"
)

// Static errors for linear model loading.
var (
	// ErrModelFile is returned when a model file cannot be read or parsed.
	ErrModelFile = errors.New("classify: invalid model file")
	// ErrModelShape is returned when model weights do not match the feature width.
	ErrModelShape = errors.New("classify: model weights do not match feature channels")
)

// LinearModel is a logistic model over time-averaged feature channels:
//
//	p = sigmoid(bias + sum_c weights[c] * mean_t(x[t][c]))
//
// Weight files are YAML (or JSON, which YAML accepts):
//
//	bias: -1.2
//	weights: [0.01, ...] # one per feature channel
type LinearModel struct {
	Bias    float64   `yaml:"bias" json:"bias"`
	Weights []float64 `yaml:"weights" json:"weights"`
}

// LoadLinearModel reads a LinearModel from a weights file.
func LoadLinearModel(path string) (*LinearModel, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFile, err)
	}
	defer func() { _ = f.Close() }()

	return DecodeLinearModel(f)
}

// DecodeLinearModel parses a LinearModel and checks its shape.
func DecodeLinearModel(r io.Reader) (*LinearModel, error) {
	var m LinearModel
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelFile, err)
	}
	if len(m.Weights) != features.NumChannels {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrModelShape, len(m.Weights), features.NumChannels)
	}
	return &m, nil
}

// Score implements Model.Score.
func (m *LinearModel) Score(ctx context.Context, vectors []features.Vector) ([]float64, error) {
	if len(m.Weights) != features.NumChannels {
		return nil, ErrModelShape
	}

	out := make([]float64, len(vectors))
	for i := range vectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		z := m.Bias
		for c := 0; c < features.NumChannels; c++ {
			var sum float64
			for t := 0; t < features.NumFrames; t++ {
				sum += vectors[i][t][c]
			}
			z += m.Weights[c] * sum / features.NumFrames
		}
		out[i] = sigmoid(z)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

var _ Model = (*LinearModel)(nil)
