// Package audio holds the decoded waveform representation shared by the
// decoder, the segmenter and the engine backends.
package audio

import (
	"fmt"
	"time"
)

// DefaultSampleRate is the rate every decoder normalises to.
const DefaultSampleRate = 16000

// Waveform is mono PCM audio with samples in [-1, 1].
type Waveform struct {
	Samples    []float32
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
func (w Waveform) Len() int { return len(w.Samples) }

// SecondsToSamples converts a time offset to a sample index, truncating.
func SecondsToSamples(sec float64, sampleRate int) int {
	return int(sec * float64(sampleRate))
}

// Timestamp formats a sample offset as HH:MM:SS.mmm.
func Timestamp(offset, sampleRate int) string {
	if sampleRate <= 0 {
		return "00:00:00.000"
	}
	d := time.Duration(float64(offset) / float64(sampleRate) * float64(time.Second)).Round(time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d.%03d",
		int(d/time.Hour), int(d/time.Minute)%60, int(d/time.Second)%60, int(d/time.Millisecond)%1000)
}
