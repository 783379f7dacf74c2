// Package loopback provides a local engine that needs no model or network.
// It labels each chunk with the time span it covers, which makes it useful
// for smoke tests and for checking chunk boundaries against real audio.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/voicetyped/scribe/internal/audio"
	"github.com/voicetyped/scribe/internal/speech/engine"
	"github.com/voicetyped/scribe/internal/speech/registry"
)

// ErrClosed is returned by Infer after Close.
var ErrClosed = errors.New("loopback engine is closed")

func init() {
	registry.Engines.Register("loopback", func(config map[string]string) (engine.Engine, error) {
		var latency time.Duration
		if s := config["latency_ms"]; s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("loopback: invalid latency_ms %q", s)
			}
			latency = time.Duration(v) * time.Millisecond
		}
		return New(latency), nil
	})
}

// Engine echoes chunk time spans as "[HH:MM:SS.mmm-HH:MM:SS.mmm]".
type Engine struct {
	latency time.Duration

	mu     sync.Mutex
	closed bool
}

// New creates a loopback engine that sleeps for latency on every batch.
func New(latency time.Duration) *Engine {
	return &Engine{latency: latency}
}

func (e *Engine) Stage(b *engine.Batch) error {
	b.Pinned = true
	return nil
}

func (e *Engine) Transfer(_ context.Context, b *engine.Batch) (engine.Pending, error) {
	return ready{b}, nil
}

type ready struct{ b *engine.Batch }

func (r ready) Wait() (*engine.Batch, error) { return r.b, nil }

func (e *Engine) Infer(ctx context.Context, b *engine.Batch) ([]string, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	if e.latency > 0 {
		t := time.NewTimer(e.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	out := make([]string, b.Len())
	for i, chunk := range b.Chunks {
		start := 0
		if i < len(b.Offsets) {
			start = b.Offsets[i]
		}
		out[i] = "[" + audio.Timestamp(start, b.SampleRate) + "-" +
			audio.Timestamp(start+len(chunk), b.SampleRate) + "]"
	}
	return out, nil
}

func (e *Engine) Models() []engine.ModelInfo {
	return []engine.ModelInfo{{ID: "loopback", DisplayName: "Loopback (timestamps only)", IsDefault: true}}
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
