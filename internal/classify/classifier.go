// Package classify labels analysis chunks as fluent (0) or stammered (1).
//
// Two variants implement Classifier: ModelClassifier, backed by a trained
// Model, and EnergyHeuristic, used when no model is available. The variant
// is chosen once by New; the per-chunk path never inspects types.
package classify

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/FreddySam09/verbofix-backend/internal/features"
)

// DefaultThreshold is the model probability above which a chunk is stammered.
const DefaultThreshold = 0.7

// Label values.
const (
	LabelFluent    = 0
	LabelStammered = 1
)

// ErrClassifier is returned when the trained model cannot score a batch.
// It is never fatal: the accompanying Predictions hold the fallback result.
var ErrClassifier = errors.New("classify: model prediction failed")

// Source names the variant that produced a set of predictions.
type Source string

const (
	// SourceModel means labels came from the trained model.
	SourceModel Source = "model"
	// SourceHeuristic means labels came from the energy heuristic.
	SourceHeuristic Source = "heuristic"
	// SourceNone means there was nothing to classify.
	SourceNone Source = "none"
)

// Predictions holds one label and one confidence per chunk, in chunk order.
type Predictions struct {
	Labels      []int
	Confidences []float64
	Source      Source
	// ModelConfMean is the mean model probability, set for SourceModel.
	ModelConfMean *float64
	// HeuristicThreshold is the energy threshold, set for SourceHeuristic.
	HeuristicThreshold *float64
}

// Len returns the number of predicted chunks.
func (p Predictions) Len() int {
	return len(p.Labels)
}

// Classifier maps a feature Set to per-chunk predictions.
type Classifier interface {
	Predict(ctx context.Context, set features.Set) (Predictions, error)
}

// Model is a trained stammer model. Implementations are loaded once and must
// be safe for concurrent use; Score must not mutate shared state.
type Model interface {
	// Score returns one stammer probability in [0, 1] per vector.
	Score(ctx context.Context, vectors []features.Vector) ([]float64, error)
}

// New returns a ModelClassifier when model is non-nil and an EnergyHeuristic
// otherwise. A threshold outside (0, 1) falls back to DefaultThreshold.
func New(model Model, threshold float64) Classifier {
	if model == nil {
		return EnergyHeuristic{}
	}
	return NewModelClassifier(model, threshold)
}

// ModelClassifier labels chunks with a trained Model.
type ModelClassifier struct {
	model     Model
	threshold float64
	fallback  EnergyHeuristic
}

// NewModelClassifier creates a ModelClassifier.
func NewModelClassifier(model Model, threshold float64) *ModelClassifier {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return &ModelClassifier{model: model, threshold: threshold}
}

// Predict scores every chunk with the model. If the model fails or returns
// no scores, Predict returns the EnergyHeuristic result together with an
// error wrapping ErrClassifier.
func (c *ModelClassifier) Predict(ctx context.Context, set features.Set) (Predictions, error) {
	if set.Len() == 0 {
		return Predictions{Source: SourceNone}, nil
	}

	scores, err := c.model.Score(ctx, set.Vectors)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: %w", ErrClassifier, err)
	case len(scores) == 0:
		err = fmt.Errorf("%w: empty model output", ErrClassifier)
	case len(scores) != set.Len():
		err = fmt.Errorf("%w: got %d scores for %d chunks", ErrClassifier, len(scores), set.Len())
	}
	if err != nil {
		preds, _ := c.fallback.Predict(ctx, set)
		return preds, err
	}

	preds := Predictions{
		Labels:      make([]int, len(scores)),
		Confidences: make([]float64, len(scores)),
		Source:      SourceModel,
	}
	for i, p := range scores {
		if p > c.threshold {
			preds.Labels[i] = LabelStammered
		}
		preds.Confidences[i] = p
	}
	mean := stat.Mean(preds.Confidences, nil)
	preds.ModelConfMean = &mean

	return preds, nil
}

// Compile-time interface checks.
var (
	_ Classifier = (*ModelClassifier)(nil)
	_ Classifier = EnergyHeuristic{}
)
