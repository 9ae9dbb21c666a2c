package classify

import (
	"context"
	"math"

	"github.com/FreddySam09/verbofix-backend/internal/features"
)

// heuristicPercentile is the energy percentile used as the stammer threshold.
const heuristicPercentile = 25

// EnergyHeuristic treats low-energy chunks (pauses, blocks) as stammered.
//
// Confidence is |energy - threshold|. It is unbounded and not comparable to
// model probabilities; consumers must not read it as a value in [0, 1].
type EnergyHeuristic struct{}

// Predict implements Classifier.Predict using set.Energies. It never fails.
func (EnergyHeuristic) Predict(_ context.Context, set features.Set) (Predictions, error) {
	if len(set.Energies) == 0 {
		return Predictions{Source: SourceNone}, nil
	}

	threshold := features.Percentile(set.Energies, heuristicPercentile)
	labels, confidences := LabelByEnergy(set.Energies, threshold)

	return Predictions{
		Labels:             labels,
		Confidences:        confidences,
		Source:             SourceHeuristic,
		HeuristicThreshold: &threshold,
	}, nil
}

// LabelByEnergy labels each energy against a fixed threshold.
func LabelByEnergy(energies []float64, threshold float64) ([]int, []float64) {
	labels := make([]int, len(energies))
	confidences := make([]float64, len(energies))
	for i, e := range energies {
		if e < threshold {
			labels[i] = LabelStammered
		}
		confidences[i] = math.Abs(e - threshold)
	}
	return labels, confidences
}
