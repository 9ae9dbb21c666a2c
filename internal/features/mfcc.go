package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Mel spectrogram parameters, matching librosa's defaults.
const (
	numMels   = 128
	amin      = 1e-10
	topDB     = 80.0
	minLogHz  = 1000.0
	minLogMel = 15.0
)

var (
	melStep    = 200.0 / 3.0
	logMelStep = math.Log(6.4) / 27.0
)

// melBand is one triangular filter stored sparsely over FFT bins [lo, lo+len(weights)).
type melBand struct {
	lo      int
	weights []float64
}

// mfcc computes cepstral coefficients for fixed-length chunks. It holds FFT
// scratch space, so one instance must not be shared between goroutines.
type mfcc struct {
	fft    *fourier.FFT
	window []float64
	bands  []melBand
	dct    [][]float64

	frame  []float64
	coeffs []complex128
	power  []float64
	melDB  []float64
}

func newMFCC(sampleRate int) *mfcc {
	bins := FrameLength/2 + 1
	return &mfcc{
		fft:    fourier.NewFFT(FrameLength),
		window: hann(FrameLength),
		bands:  melFilterbank(sampleRate, FrameLength, numMels),
		dct:    dctMatrix(NumMFCC, numMels),
		frame:  make([]float64, FrameLength),
		coeffs: make([]complex128, bins),
		power:  make([]float64, bins),
		melDB:  make([]float64, numMels),
	}
}

// compute returns the time-major MFCC matrix of y (frames x NumMFCC).
func (m *mfcc) compute(y []float64) [][]float64 {
	padded := centerPad(y, FrameLength/2)
	nFrames := 1 + (len(padded)-FrameLength)/HopLength

	logMel := make([][]float64, nFrames)
	peak := math.Inf(-1)

	for t := 0; t < nFrames; t++ {
		start := t * HopLength
		for j := 0; j < FrameLength; j++ {
			m.frame[j] = padded[start+j] * m.window[j]
		}
		m.coeffs = m.fft.Coefficients(m.coeffs, m.frame)
		for k, c := range m.coeffs {
			m.power[k] = real(c)*real(c) + imag(c)*imag(c)
		}

		row := make([]float64, numMels)
		for b, band := range m.bands {
			var e float64
			for j, wt := range band.weights {
				e += wt * m.power[band.lo+j]
			}
			row[b] = 10 * math.Log10(math.Max(amin, e))
			if row[b] > peak {
				peak = row[b]
			}
		}
		logMel[t] = row
	}

	floor := peak - topDB
	out := make([][]float64, nFrames)
	for t, row := range logMel {
		for b := range row {
			m.melDB[b] = math.Max(row[b], floor)
		}
		coeffs := make([]float64, NumMFCC)
		for k := range coeffs {
			var s float64
			for b, v := range m.melDB {
				s += m.dct[k][b] * v
			}
			coeffs[k] = s
		}
		out[t] = coeffs
	}
	return out
}

// centerPad surrounds y with pad zeros on each side.
func centerPad(y []float64, pad int) []float64 {
	out := make([]float64, len(y)+2*pad)
	copy(out[pad:], y)
	return out
}

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func hzToMel(f float64) float64 {
	if f >= minLogHz {
		return minLogMel + math.Log(f/minLogHz)/logMelStep
	}
	return f / melStep
}

func melToHz(m float64) float64 {
	if m >= minLogMel {
		return minLogHz * math.Exp(logMelStep*(m-minLogMel))
	}
	return melStep * m
}

// melFilterbank builds Slaney-normalized triangular filters spanning 0..sr/2.
func melFilterbank(sampleRate, nFFT, nMels int) []melBand {
	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nFFT)
	}

	lo, hi := hzToMel(0), hzToMel(float64(sampleRate)/2)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = melToHz(lo + (hi-lo)*float64(i)/float64(nMels+1))
	}

	bands := make([]melBand, nMels)
	for i := 0; i < nMels; i++ {
		lowerDiff := melF[i+1] - melF[i]
		upperDiff := melF[i+2] - melF[i+1]
		norm := 2 / (melF[i+2] - melF[i])

		first, last := -1, -1
		weights := make([]float64, bins)
		for k, f := range fftFreqs {
			lower := (f - melF[i]) / lowerDiff
			upper := (melF[i+2] - f) / upperDiff
			w := math.Max(0, math.Min(lower, upper))
			if w > 0 {
				if first < 0 {
					first = k
				}
				last = k
			}
			weights[k] = w * norm
		}
		if first < 0 {
			bands[i] = melBand{}
			continue
		}
		bands[i] = melBand{lo: first, weights: weights[first : last+1]}
	}
	return bands
}

// dctMatrix returns the first k rows of an orthonormal DCT-II of size n.
func dctMatrix(k, n int) [][]float64 {
	out := make([][]float64, k)
	for i := range out {
		scale := math.Sqrt(2 / float64(n))
		if i == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		row := make([]float64, n)
		for j := range row {
			row[j] = scale * math.Cos(math.Pi*float64(i)*float64(2*j+1)/float64(2*n))
		}
		out[i] = row
	}
	return out
}
