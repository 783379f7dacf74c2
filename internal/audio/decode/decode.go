// Package decode turns uploaded audio files into 16 kHz mono waveforms.
package decode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voicetyped/scribe/internal/audio"
)

var (
	// ErrNotWAV is returned by the WAV decoder for non-RIFF input.
	ErrNotWAV = errors.New("not a valid WAV file")
	// ErrUnsupported is returned when no decoder accepts the format.
	ErrUnsupported = errors.New("unsupported audio format")
)

// Decoder reads the audio file at path. Format is the lower-case file
// extension without the dot.
type Decoder interface {
	Decode(ctx context.Context, path, format string) (audio.Waveform, error)
}

// Auto decodes WAV natively and hands everything else, or any WAV the
// native decoder rejects, to the fallback.
type Auto struct {
	WAV      Decoder
	Fallback Decoder
}

func (a Auto) Decode(ctx context.Context, path, format string) (audio.Waveform, error) {
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "wav" && a.WAV != nil {
		w, err := a.WAV.Decode(ctx, path, format)
		if err == nil || a.Fallback == nil {
			return w, err
		}
		slog.DebugContext(ctx, "decode: native wav failed, falling back", "error", err)
	}
	if a.Fallback == nil {
		return audio.Waveform{}, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	return a.Fallback.Decode(ctx, path, format)
}

var _ Decoder = Auto{}
