// Package segment splits long recordings into chunks whose boundaries fall
// on the quietest point near each multiple of a target duration.
package segment

import (
	"github.com/voicetyped/scribe/internal/audio"
)

// Chunk is a contiguous slice of the source waveform.
type Chunk struct {
	Index   int
	Offset  int // first sample in the source waveform
	Samples []float32
}

// Duration returns the chunk length in seconds at the given rate.
func (c Chunk) Duration(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(sampleRate)
}

// FindCutPoints returns the cut times, in seconds, for the waveform. For each
// multiple of target strictly inside the audio it picks the lowest-energy
// frame within window seconds centred on that multiple. Audio shorter than
// target yields no cut points.
func FindCutPoints(w audio.Waveform, target, window float64) []float64 {
	duration := w.Duration()
	if target <= 0 || duration <= target {
		return nil
	}
	energy := FrameEnergy(w.Samples)
	if len(energy) == 0 {
		return nil
	}
	sr := float64(w.SampleRate)
	windowFrames := int(window * sr / HopLength)

	// Frames starting at or past the last sample are mostly padding and
	// would place a cut at the very end.
	frames := min(len(energy), (len(w.Samples)-1)/HopLength+1)

	var cuts []float64
	n := int(duration / target)
	for i := 1; i <= n; i++ {
		t := float64(i) * target
		if t >= duration {
			break
		}
		targetFrame := min(int(t*sr/HopLength), frames-1)
		start := max(0, targetFrame-windowFrames/2)
		end := min(frames, targetFrame+windowFrames/2)

		best := targetFrame
		if start < end {
			best = start
			for f := start + 1; f < end; f++ {
				if energy[f] < energy[best] {
					best = f
				}
			}
		}
		if c := float64(best*HopLength) / sr; c < duration {
			cuts = append(cuts, c)
		}
	}
	return cuts
}

// Split cuts the waveform at the given times. Empty chunks are skipped and
// the remainder after the last cut is always emitted, so concatenating the
// chunks reproduces the input exactly. A cut that lands before the previous
// one is ignored.
func Split(w audio.Waveform, cuts []float64) []Chunk {
	var chunks []Chunk
	prev := 0
	emit := func(end int) {
		if end > prev {
			chunks = append(chunks, Chunk{Index: len(chunks), Offset: prev, Samples: w.Samples[prev:end]})
			prev = end
		}
	}
	for _, c := range cuts {
		idx := audio.SecondsToSamples(c, w.SampleRate)
		emit(min(idx, len(w.Samples)))
	}
	emit(len(w.Samples))
	return chunks
}
