package engine

import "fmt"

// MaxInputSamples is 30 seconds of 16 kHz audio, the fixed input width of
// encoder-decoder speech models.
const MaxInputSamples = 480000

// Features is the model-ready representation of one chunk.
type Features struct {
	Values []float32
	Mask   []int8
	// Truncated counts input samples that did not fit the fixed width.
	Truncated int
}

// FeatureExtractor converts one chunk of samples into model input.
type FeatureExtractor interface {
	Extract(samples []float32, sampleRate int) (Features, error)
}

// PadExtractor zero-pads (or truncates) every chunk to MaxSamples and marks
// the real samples in the attention mask.
type PadExtractor struct {
	MaxSamples int
	SampleRate int // expected input rate, zero accepts any
}

// NewPadExtractor returns an extractor with the default 30 s width at 16 kHz.
func NewPadExtractor() PadExtractor {
	return PadExtractor{MaxSamples: MaxInputSamples, SampleRate: 16000}
}

func (p PadExtractor) Extract(samples []float32, sampleRate int) (Features, error) {
	if p.SampleRate != 0 && sampleRate != p.SampleRate {
		return Features{}, fmt.Errorf("pad extractor: sample rate %d, want %d", sampleRate, p.SampleRate)
	}
	width := p.MaxSamples
	if width <= 0 {
		width = MaxInputSamples
	}
	n := min(len(samples), width)
	f := Features{
		Values: make([]float32, width),
		Mask:   make([]int8, width),
	}
	copy(f.Values, samples[:n])
	for i := range n {
		f.Mask[i] = 1
	}
	f.Truncated = len(samples) - n
	return f, nil
}

// RawExtractor passes samples through untouched. Remote engines that upload
// audio use it to avoid padding copies.
type RawExtractor struct{}

func (RawExtractor) Extract(samples []float32, _ int) (Features, error) {
	return Features{Values: samples}, nil
}

var (
	_ FeatureExtractor = PadExtractor{}
	_ FeatureExtractor = RawExtractor{}
)
