package features

import (
	"math"
	"sort"
)

// deltaWidth is the Savitzky-Golay window used for first-order deltas.
const deltaWidth = 9

// rms returns centered short-time RMS energy of y. Frames past the signal
// edges are zero-padded.
func rms(y []float64, frameLength, hop int) []float64 {
	padded := centerPad(y, frameLength/2)
	n := 1 + (len(padded)-frameLength)/hop
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		var s float64
		for _, x := range padded[t*hop : t*hop+frameLength] {
			s += x * x
		}
		out[t] = math.Sqrt(s / float64(frameLength))
	}
	return out
}

// delta returns the first time-derivative of a time-major matrix using a
// least-squares linear fit over deltaWidth frames. Edge frames reuse the
// slope of the nearest full window.
func delta(frames [][]float64) [][]float64 {
	n := len(frames)
	out := make([][]float64, n)
	for t := range out {
		out[t] = make([]float64, len(frames[t]))
	}
	if n < deltaWidth {
		return out
	}

	half := deltaWidth / 2
	var denom float64
	for k := -half; k <= half; k++ {
		denom += float64(k * k)
	}

	slope := func(center int) []float64 {
		d := make([]float64, len(frames[center]))
		for c := range d {
			var s float64
			for k := -half; k <= half; k++ {
				s += float64(k) * frames[center+k][c]
			}
			d[c] = s / denom
		}
		return d
	}

	for t := half; t < n-half; t++ {
		out[t] = slope(t)
	}
	for t := 0; t < half; t++ {
		copy(out[t], out[half])
	}
	for t := n - half; t < n; t++ {
		copy(out[t], out[n-half-1])
	}
	return out
}

// Percentile returns the p-th percentile of xs using linear interpolation
// between closest ranks. It returns 0 for empty input.
func Percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	if pos <= 0 {
		return sorted[0]
	}
	if pos >= float64(len(sorted)-1) {
		return sorted[len(sorted)-1]
	}

	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	a, b := sorted[lo], sorted[lo+1]
	if frac >= 0.5 {
		return b - (b-a)*(1-frac)
	}
	return a + (b-a)*frac
}
