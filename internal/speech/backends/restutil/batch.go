package restutil

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/voicetyped/scribe/internal/speech/engine"
)

// DefaultParallel is how many chunks of one batch are uploaded at once.
const DefaultParallel = 4

// TranscribeFunc transcribes one chunk of mono samples.
type TranscribeFunc func(ctx context.Context, samples []float32, sampleRate int) (string, error)

// InferEach calls fn for every chunk of the batch with at most parallel
// requests in flight and returns the texts in batch order. The first error
// cancels the remaining requests.
func InferEach(ctx context.Context, b *engine.Batch, parallel int, fn TranscribeFunc) ([]string, error) {
	texts := make([]string, b.Len())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(parallel, 1))
	for i, samples := range b.Chunks {
		g.Go(func() error {
			text, err := fn(gctx, samples, b.SampleRate)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", b.Indices[i], err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

// Parallel reads the "parallel" config key.
func Parallel(config map[string]string) int {
	if v, err := strconv.Atoi(config["parallel"]); err == nil && v > 0 {
		return v
	}
	return DefaultParallel
}
