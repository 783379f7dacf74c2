package engine

import "context"

// ModelInfo describes an available model for a backend.
type ModelInfo struct {
	ID          string
	DisplayName string
	IsDefault   bool
}

// Batch is a group of consecutive chunks submitted to an engine in one call.
// Features and Mask are filled by the feature extractor and are
// index-aligned with Chunks.
type Batch struct {
	Seq        int
	Indices    []int
	Offsets    []int
	Chunks     [][]float32
	SampleRate int

	Features [][]float32
	Mask     [][]int8

	// Pinned is set once a Stager has prepared the batch for transfer.
	Pinned bool
}

// Len returns the number of chunks in the batch.
func (b *Batch) Len() int { return len(b.Chunks) }

// Engine turns batches of audio into text, one string per chunk in order.
type Engine interface {
	Infer(ctx context.Context, batch *Batch) ([]string, error)
	Models() []ModelInfo
	Close() error
}

// Stager is implemented by engines that want batches prepared (for example
// copied into page-locked memory) while still on the preparation side of the
// pipeline.
type Stager interface {
	Stage(batch *Batch) error
}

// Transferer is implemented by engines that move a batch to an accelerator
// asynchronously before inference.
type Transferer interface {
	Transfer(ctx context.Context, batch *Batch) (Pending, error)
}

// Pending is an in-flight transfer.
type Pending interface {
	// Wait blocks until the transfer completes and returns the batch to run.
	Wait() (*Batch, error)
}

// Extracting is implemented by engines that need a particular feature
// representation. Engines without it get PadExtractor.
type Extracting interface {
	FeatureExtractor() FeatureExtractor
}
