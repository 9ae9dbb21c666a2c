// Package timeline turns per-chunk predictions into labeled time ranges.
package timeline

import "github.com/FreddySam09/verbofix-backend/internal/classify"

// Window is the width of the centered majority filter.
const Window = 3

// Range labels.
const (
	LabelFluent    = "Fluent"
	LabelStammered = "Stammered"
)

// Pair is one smoothed chunk decision.
type Pair struct {
	Label      int
	Confidence float64
}

// Range is a run of consecutive chunks sharing a label.
type Range struct {
	Start         float64
	End           float64
	Label         string
	AvgConfidence float64
	// Chunks holds the member chunk indices in ascending order.
	Chunks []int
}

// Stammered reports whether the range is labeled Stammered.
func (r Range) Stammered() bool {
	return r.Label == LabelStammered
}

// Params describes how chunk indices map to time.
type Params struct {
	SampleRate    int
	Hop           int
	ChunkDuration float64
	// AudioDuration clamps range boundaries; zero clamps everything to zero.
	AudioDuration float64
}

// Smooth applies a majority filter of width Window to labels. The window is
// centered and shrinks at both ends; a chunk becomes stammered only when ones
// strictly outnumber half the window, so ties go to fluent. Confidences pass
// through unchanged, or as 0 when confidences is empty.
func Smooth(labels []int, confidences []float64) []Pair {
	half := Window / 2
	out := make([]Pair, len(labels))
	for i := range labels {
		lo := max(0, i-half)
		hi := min(len(labels), i+half+1)

		ones := 0
		for _, l := range labels[lo:hi] {
			if l == classify.LabelStammered {
				ones++
			}
		}
		if ones > (hi-lo)/2 {
			out[i].Label = classify.LabelStammered
		}
		if i < len(confidences) {
			out[i].Confidence = confidences[i]
		}
	}
	return out
}

// Group merges consecutive pairs with the same label into ranges.
//
// A range starts at its first chunk's offset and ends one ChunkDuration
// later, both clamped to AudioDuration. The end does not grow with the number
// of member chunks.
func Group(pairs []Pair, p Params) []Range {
	if len(pairs) == 0 {
		return nil
	}

	hopTime := float64(p.Hop) / float64(p.SampleRate)
	var ranges []Range

	closeRange := func(startIdx, endIdx int) {
		chunks := make([]int, 0, endIdx-startIdx)
		var sum float64
		for i := startIdx; i < endIdx; i++ {
			chunks = append(chunks, i)
			sum += pairs[i].Confidence
		}

		offset := float64(startIdx) * hopTime
		label := LabelFluent
		if pairs[startIdx].Label == classify.LabelStammered {
			label = LabelStammered
		}
		ranges = append(ranges, Range{
			Start:         min(offset, p.AudioDuration),
			End:           min(offset+p.ChunkDuration, p.AudioDuration),
			Label:         label,
			AvgConfidence: sum / float64(len(chunks)),
			Chunks:        chunks,
		})
	}

	start := 0
	for i := 1; i < len(pairs); i++ {
		if pairs[i].Label != pairs[start].Label {
			closeRange(start, i)
			start = i
		}
	}
	closeRange(start, len(pairs))

	return ranges
}
