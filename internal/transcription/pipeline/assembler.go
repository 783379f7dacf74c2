// Package pipeline overlaps batch preparation with engine execution. An
// Assembler turns chunks into engine-ready batches and an Executor runs them
// through a bounded hand-off queue, reassembling results in source order.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/voicetyped/scribe/internal/audio/segment"
	"github.com/voicetyped/scribe/internal/metrics"
	"github.com/voicetyped/scribe/internal/speech/engine"
)

// Assembler groups consecutive chunks into batches and extracts features.
type Assembler struct {
	extractor engine.FeatureExtractor
	stager    engine.Stager
	metrics   *metrics.Metrics
}

// NewAssembler picks the feature extractor and stager the engine asks for.
// Engines that don't implement engine.Extracting get engine.PadExtractor.
func NewAssembler(eng engine.Engine, m *metrics.Metrics) *Assembler {
	a := &Assembler{extractor: engine.NewPadExtractor(), metrics: m}
	if ex, ok := eng.(engine.Extracting); ok {
		a.extractor = ex.FeatureExtractor()
	}
	if st, ok := eng.(engine.Stager); ok {
		a.stager = st
	}
	return a
}

// Assemble lazily yields batches of at most batchSize chunks in source order.
// Batch k holds chunks [k*batchSize, min((k+1)*batchSize, n)). Iteration
// stops at the first extraction error or when ctx is done.
func (a *Assembler) Assemble(ctx context.Context, chunks []segment.Chunk, batchSize, sampleRate int) iter.Seq2[*engine.Batch, error] {
	batchSize = max(batchSize, 1)
	return func(yield func(*engine.Batch, error) bool) {
		for seq, start := 0, 0; start < len(chunks); seq, start = seq+1, start+batchSize {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			b, err := a.build(seq, chunks[start:min(start+batchSize, len(chunks))], sampleRate)
			if !yield(b, err) || err != nil {
				return
			}
		}
	}
}

func (a *Assembler) build(seq int, group []segment.Chunk, sampleRate int) (*engine.Batch, error) {
	b := &engine.Batch{
		Seq:        seq,
		SampleRate: sampleRate,
		Indices:    make([]int, len(group)),
		Offsets:    make([]int, len(group)),
		Chunks:     make([][]float32, len(group)),
		Features:   make([][]float32, len(group)),
		Mask:       make([][]int8, len(group)),
	}
	for i, c := range group {
		f, err := a.extractor.Extract(c.Samples, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("extract features for chunk %d: %w", c.Index, err)
		}
		b.Indices[i] = c.Index
		b.Offsets[i] = c.Offset
		b.Chunks[i] = c.Samples
		b.Features[i] = f.Values
		b.Mask[i] = f.Mask
		a.metrics.ObserveChunk(c.Duration(sampleRate))
		if f.Truncated > 0 {
			slog.Warn("pipeline: chunk longer than engine input, tail dropped from features",
				"chunk", c.Index, "samples", len(c.Samples), "truncated", f.Truncated)
			a.metrics.ObserveTruncation(f.Truncated)
		}
	}
	// Staging is a hint; the engine still accepts an unstaged batch.
	if a.stager != nil {
		if err := a.stager.Stage(b); err != nil {
			slog.Warn("pipeline: stage batch failed", "batch", seq, "error", err)
		}
	}
	return b, nil
}
