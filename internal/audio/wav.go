package audio

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV decodes a PCM WAV stream into a mono Waveform.
// Multi-channel audio is averaged down to one channel. The stream must
// already be at SampleRate; resampling is the converter's job.
func DecodeWAV(r io.ReadSeeker) (Waveform, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return Waveform{}, ErrInvalidWAV
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("read PCM buffer: %w", err)
	}
	if buf.Format == nil {
		return Waveform{}, ErrInvalidWAV
	}

	if buf.Format.SampleRate != SampleRate {
		return Waveform{}, fmt.Errorf("%w: got %d Hz, want %d Hz", ErrSampleRate, buf.Format.SampleRate, SampleRate)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(decoder.BitDepth)
	}

	return Waveform{
		Samples:    downmix(buf, bitDepth),
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// downmix converts interleaved integer PCM into normalized mono samples.
func downmix(buf *goaudio.IntBuffer, bitDepth int) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	scale := 1.0
	if bitDepth > 1 {
		scale = float64(int64(1) << (bitDepth - 1))
	}
	// 8-bit WAV is unsigned, centered on 128.
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]-offset) / scale
		}
		out[i] = sum / float64(channels)
	}
	return out
}
