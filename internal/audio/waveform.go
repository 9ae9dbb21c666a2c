// Package audio provides decoding of recorded speech into mono waveforms.
package audio

import (
	"context"
	"errors"
)

// SampleRate is the rate every analyzed waveform is decoded at.
const SampleRate = 16000

// Static errors for audio loading.
var (
	// ErrLoad is returned when a recording cannot be turned into a waveform.
	// Callers treat it as terminal for the current request.
	ErrLoad = errors.New("audio: load failed")
	// ErrInvalidWAV is returned when the input is not a readable PCM WAV file.
	ErrInvalidWAV = errors.New("audio: not a valid WAV file")
	// ErrSampleRate is returned when decoded audio is not at SampleRate.
	ErrSampleRate = errors.New("audio: unexpected sample rate")
	// ErrConverterRequired is returned when a file needs transcoding but no converter is set.
	ErrConverterRequired = errors.New("audio: converter required for non-WAV input")
)

// Waveform is a decoded mono recording. It must not be modified after loading;
// every analysis stage only reads from it.
type Waveform struct {
	// Samples holds amplitudes normalized to [-1, 1].
	Samples []float64
	// SampleRate is the number of samples per second.
	SampleRate int
}

// Duration returns the length of the waveform in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Len returns the number of samples.
func (w Waveform) Len() int {
	return len(w.Samples)
}

// Loader decodes an audio resource into a Waveform at SampleRate.
type Loader interface {
	// Load reads the file at path. Any failure is wrapped with ErrLoad.
	Load(ctx context.Context, path string) (Waveform, error)
}

// Converter transcodes arbitrary audio containers to 16 kHz mono PCM WAV.
type Converter interface {
	// Convert reads src and writes a WAV file to dst, overwriting it.
	Convert(ctx context.Context, src, dst string) error
}
