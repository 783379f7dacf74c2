package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/voicetyped/scribe/internal/metrics"
	"github.com/voicetyped/scribe/internal/speech/engine"
)

// DefaultQueueDepth bounds how many prepared batches may wait for the
// engine. Preparation runs at most this far ahead of execution.
const DefaultQueueDepth = 2

var (
	// ErrBatchFailed wraps an inference failure under DropAbort.
	ErrBatchFailed = errors.New("batch inference failed")
	// ErrOutputMismatch means the engine returned a different number of
	// texts than the batch had chunks.
	ErrOutputMismatch = errors.New("engine output does not match batch size")
)

// Fragment is the text for one chunk.
type Fragment struct {
	Index  int
	Offset int
	Text   string
}

// BatchResult records how one batch went.
type BatchResult struct {
	Seq      int
	Indices  []int
	Attempts int
	Duration time.Duration
	Err      error
}

// Outcome is everything the executor produced for one request.
type Outcome struct {
	// Fragments holds one entry per successful chunk, sorted by Index.
	Fragments     []Fragment
	Results       []BatchResult
	DroppedChunks int
}

// Transcript joins the fragment texts in chunk order with single spaces.
// Blank fragments are skipped.
func (o *Outcome) Transcript() string {
	parts := make([]string, 0, len(o.Fragments))
	for _, f := range o.Fragments {
		if t := strings.TrimSpace(f.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// queueItem is either a batch or the end-of-stream marker.
type queueItem struct {
	batch    *engine.Batch
	enqueued time.Time
	eos      bool
}

// Executor runs batches through an engine while the next ones are being
// prepared.
type Executor struct {
	engine  engine.Engine
	guard   *semaphore.Weighted
	policy  Policy
	depth   int
	metrics *metrics.Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithGuard serialises engine access across executors sharing the guard.
func WithGuard(guard *semaphore.Weighted) ExecutorOption {
	return func(e *Executor) { e.guard = guard }
}

// WithPolicy sets the failure policy.
func WithPolicy(p Policy) ExecutorOption {
	return func(e *Executor) { e.policy = p }
}

// WithQueueDepth overrides DefaultQueueDepth.
func WithQueueDepth(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.depth = n
		}
	}
}

// WithMetrics attaches instrumentation.
func WithMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an executor for eng.
func NewExecutor(eng engine.Engine, opts ...ExecutorOption) *Executor {
	e := &Executor{
		engine: eng,
		policy: Policy{Mode: DropContinue},
		depth:  DefaultQueueDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run consumes batches on a preparation goroutine and executes them on an
// execution goroutine, connected by a queue of the configured depth. It
// returns once both have finished. A preparation error, a cancelled ctx or a
// failed batch under DropAbort fails the whole run.
func (e *Executor) Run(ctx context.Context, batches iter.Seq2[*engine.Batch, error]) (*Outcome, error) {
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan queueItem, e.depth)

	var (
		mu  sync.Mutex
		out Outcome
	)

	g.Go(func() error {
		for {
			var item queueItem
			select {
			case <-gctx.Done():
				return gctx.Err()
			case item = <-queue:
			}
			if item.eos {
				return nil
			}
			e.metrics.ObserveQueueWait(time.Since(item.enqueued).Seconds())

			res, texts := e.execute(gctx, item.batch)
			if res.Err != nil {
				if e.policy.Mode == DropAbort {
					e.metrics.BatchDone("aborted", 0, res.Attempts-1)
					return fmt.Errorf("%w: batch %d: %w", ErrBatchFailed, res.Seq, res.Err)
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.WarnContext(ctx, "pipeline: batch dropped",
					"batch", res.Seq, "chunks", len(res.Indices), "attempts", res.Attempts, "error", res.Err)
				e.metrics.BatchDone("dropped", len(res.Indices), res.Attempts-1)
			} else {
				e.metrics.BatchDone("ok", 0, res.Attempts-1)
			}

			mu.Lock()
			out.Results = append(out.Results, res)
			if res.Err != nil {
				out.DroppedChunks += len(res.Indices)
			}
			for i, text := range texts {
				out.Fragments = append(out.Fragments, Fragment{
					Index:  item.batch.Indices[i],
					Offset: item.batch.Offsets[i],
					Text:   text,
				})
			}
			mu.Unlock()
		}
	})

	g.Go(func() error {
		for b, err := range batches {
			if err != nil {
				return fmt.Errorf("prepare batch: %w", err)
			}
			select {
			case queue <- queueItem{batch: b, enqueued: time.Now()}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		select {
		case queue <- queueItem{eos: true}:
		case <-gctx.Done():
			return gctx.Err()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(out.Fragments, func(a, b Fragment) int { return cmp.Compare(a.Index, b.Index) })
	slices.SortFunc(out.Results, func(a, b BatchResult) int { return cmp.Compare(a.Seq, b.Seq) })
	return &out, nil
}

// execute runs one batch under the failure policy. It never panics.
func (e *Executor) execute(ctx context.Context, b *engine.Batch) (res BatchResult, texts []string) {
	res = BatchResult{Seq: b.Seq, Indices: b.Indices}
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	bo := backoff.NewExponentialBackOff()
	if e.policy.InitialBackoff > 0 {
		bo.InitialInterval = e.policy.InitialBackoff
	}

	texts, err := backoff.Retry(ctx, func() ([]string, error) {
		res.Attempts++
		out, err := e.infer(ctx, b)
		if err != nil && (ctx.Err() != nil || errors.Is(err, ErrOutputMismatch)) {
			return nil, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(e.policy.attempts()))
	if err != nil {
		res.Err = err
		return res, nil
	}
	return res, texts
}

func (e *Executor) infer(ctx context.Context, b *engine.Batch) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()

	if e.guard != nil {
		if err := e.guard.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer e.guard.Release(1)
	}

	e.metrics.InferenceStarted()
	start := time.Now()
	defer func() { e.metrics.InferenceDone(time.Since(start).Seconds()) }()

	run := b
	if t, ok := e.engine.(engine.Transferer); ok {
		pending, err := t.Transfer(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("transfer batch %d: %w", b.Seq, err)
		}
		if run, err = pending.Wait(); err != nil {
			return nil, fmt.Errorf("transfer batch %d: %w", b.Seq, err)
		}
	}

	texts, err = e.engine.Infer(ctx, run)
	if err != nil {
		return nil, err
	}
	if len(texts) != b.Len() {
		return nil, fmt.Errorf("%w: %d texts for %d chunks", ErrOutputMismatch, len(texts), b.Len())
	}
	return texts, nil
}
