// Package transcription turns an audio file into a single ordered transcript
// by decoding, segmenting and running the chunks through the batch pipeline.
package transcription

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDecode wraps any failure to read the input audio.
	ErrDecode = errors.New("decode audio")
	// ErrEmptyResult is returned when every chunk produced blank text.
	ErrEmptyResult = errors.New("no speech transcribed")
)

// Service is implemented by anything that can transcribe a file on disk.
type Service interface {
	Transcribe(ctx context.Context, path, format string) (*Result, error)
	// Backend names the engine doing the work.
	Backend() string
}

// Timings breaks down where a transcription spent its time.
type Timings struct {
	Decode   time.Duration
	Segment  time.Duration
	Pipeline time.Duration
	Total    time.Duration
}

// Result is a completed transcription.
type Result struct {
	Transcript    string
	AudioDuration float64 // seconds
	Timings       Timings
	WordCount     int
	CharCount     int
	SpeedFactor   float64
	ChunkCount    int
	BatchCount    int
	DroppedChunks int
	Backend       string
}

// SpeedFactor is audio seconds processed per wall-clock second. It is zero
// when elapsed is not positive.
func SpeedFactor(audioSeconds float64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return audioSeconds / elapsed.Seconds()
}
