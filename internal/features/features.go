// Package features slices a waveform into overlapping one-second chunks and
// computes a fixed-shape acoustic feature matrix for each chunk.
package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/FreddySam09/verbofix-backend/internal/audio"
)

// Analysis constants shared with the classifier's training pipeline.
const (
	// ChunkDuration is the length of one analysis chunk in seconds.
	ChunkDuration = 1.0
	// HopLength is the distance in samples between consecutive chunk starts
	// and between consecutive STFT/RMS frames.
	HopLength = 128
	// FrameLength is the FFT size and RMS frame size in samples.
	FrameLength = 512
	// NumMFCC is the number of cepstral coefficients kept per frame.
	NumMFCC = 13
	// NumFrames is the time length every per-chunk matrix is padded or truncated to.
	NumFrames = 86
	// NumChannels is the total feature width: MFCC, delta, pause, energy variance, pitch proxy.
	NumChannels = 2*NumMFCC + 3

	pauseChannel    = 2 * NumMFCC
	varianceChannel = pauseChannel + 1
	pitchChannel    = varianceChannel + 1

	pausePercentile = 10
)

// ErrExtraction is returned when features cannot be computed for a waveform.
// Callers degrade to an empty Set.
var ErrExtraction = errors.New("features: extraction failed")

// Vector is the feature matrix of one chunk, time-major. Its shape is fixed
// by the type so every chunk is exactly NumFrames x NumChannels.
type Vector [NumFrames][NumChannels]float64

// Set is the extractor output for a whole waveform.
type Set struct {
	// Vectors holds one matrix per analyzed chunk, in chunk order.
	Vectors []Vector
	// Energies holds each chunk's mean RMS energy, aligned with Vectors.
	Energies []float64
}

// Len returns the number of analyzed chunks.
func (s Set) Len() int {
	return len(s.Vectors)
}

// ChunkSize returns the chunk length in samples for a sample rate.
func ChunkSize(sampleRate int) int {
	return int(math.Round(ChunkDuration * float64(sampleRate)))
}

// ChunkCount returns how many full chunks fit in n samples.
// Tail chunks shorter than the chunk size are dropped, not padded.
func ChunkCount(n, sampleRate int) int {
	size := ChunkSize(sampleRate)
	if size <= 0 || n < size {
		return 0
	}
	return (n-size)/HopLength + 1
}

// Extract computes the feature Set for w. A panic inside the numeric code is
// recovered and reported as ErrExtraction.
func Extract(w audio.Waveform) (set Set, err error) {
	defer func() {
		if r := recover(); r != nil {
			set = Set{}
			err = fmt.Errorf("%w: %v", ErrExtraction, r)
		}
	}()

	if w.SampleRate <= 0 {
		return Set{}, fmt.Errorf("%w: invalid sample rate %d", ErrExtraction, w.SampleRate)
	}

	size := ChunkSize(w.SampleRate)
	count := ChunkCount(w.Len(), w.SampleRate)
	if count == 0 {
		return Set{}, nil
	}

	m := newMFCC(w.SampleRate)
	set = Set{
		Vectors:  make([]Vector, 0, count),
		Energies: make([]float64, 0, count),
	}

	for i := 0; i < count; i++ {
		start := i * HopLength
		end := start + size
		if end > w.Len() {
			continue
		}
		vec, energy := extractChunk(m, w.Samples[start:end])
		if math.IsNaN(energy) {
			return Set{}, fmt.Errorf("%w: non-finite energy in chunk %d", ErrExtraction, i)
		}
		set.Vectors = append(set.Vectors, vec)
		set.Energies = append(set.Energies, energy)
	}

	return set, nil
}

// extractChunk builds the feature matrix for one chunk and returns it with
// the chunk's mean energy.
func extractChunk(m *mfcc, chunk []float64) (Vector, float64) {
	coeffs := fitFrames(m.compute(chunk), NumMFCC)
	deltas := delta(coeffs)
	energy := fitSeries(rms(chunk, FrameLength, HopLength))

	threshold := Percentile(energy, pausePercentile)
	variance := stat.PopVariance(energy, nil)

	var vec Vector
	for t := 0; t < NumFrames; t++ {
		row := &vec[t]
		copy(row[:NumMFCC], coeffs[t])
		copy(row[NumMFCC:2*NumMFCC], deltas[t])
		if energy[t] < threshold {
			row[pauseChannel] = 1
		}
		row[varianceChannel] = variance
		row[pitchChannel] = (coeffs[t][1] + coeffs[t][2]) / 2
	}

	return vec, stat.Mean(energy, nil)
}

// fitFrames zero-pads or truncates a time-major matrix to NumFrames rows.
func fitFrames(frames [][]float64, width int) [][]float64 {
	out := make([][]float64, NumFrames)
	for t := range out {
		if t < len(frames) {
			out[t] = frames[t]
			continue
		}
		out[t] = make([]float64, width)
	}
	return out
}

// fitSeries zero-pads or truncates a series to NumFrames values.
func fitSeries(xs []float64) []float64 {
	out := make([]float64, NumFrames)
	copy(out, xs)
	return out
}
