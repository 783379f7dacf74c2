package decode

import (
	"context"
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/voicetyped/scribe/internal/audio"
)

const wavFormatPCM = 1

// WAV decodes integer PCM WAV files without spawning a process. Multichannel
// input is averaged to mono and resampled to SampleRate.
type WAV struct {
	SampleRate int
}

// NewWAV returns a WAV decoder targeting 16 kHz.
func NewWAV() WAV {
	return WAV{SampleRate: audio.DefaultSampleRate}
}

func (d WAV) Decode(_ context.Context, path, _ string) (audio.Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return audio.Waveform{}, ErrNotWAV
	}
	// go-audio reads every sample as an integer. IEEE float and
	// WAVE_FORMAT_EXTENSIBLE data go to the fallback decoder instead.
	if dec.WavAudioFormat != wavFormatPCM {
		return audio.Waveform{}, fmt.Errorf("%w: audio format %#x is not integer PCM", ErrNotWAV, dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("read pcm: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return audio.Waveform{}, fmt.Errorf("%w: missing format chunk", ErrNotWAV)
	}

	channels := buf.Format.NumChannels
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(dec.BitDepth)
	}
	if depth < 8 || depth > 32 {
		return audio.Waveform{}, fmt.Errorf("%w: unsupported bit depth %d", ErrNotWAV, depth)
	}
	scale := float32(int64(1) << (depth - 1))
	// 8-bit WAV is unsigned.
	bias := 0
	if depth == 8 {
		bias = 128
	}

	frames := len(buf.Data) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := range channels {
			sum += float32(buf.Data[i*channels+c]-bias) / scale
		}
		mono[i] = sum / float32(channels)
	}

	target := d.SampleRate
	if target <= 0 {
		target = buf.Format.SampleRate
	}
	return audio.Waveform{
		Samples:    audio.Resample(mono, buf.Format.SampleRate, target),
		SampleRate: target,
	}, nil
}

var _ Decoder = WAV{}
