package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/voicetyped/scribe/internal/audio/decode"
	"github.com/voicetyped/scribe/internal/audio/segment"
	"github.com/voicetyped/scribe/internal/metrics"
	"github.com/voicetyped/scribe/internal/speech/engine"
	"github.com/voicetyped/scribe/internal/transcription/pipeline"
	"github.com/voicetyped/scribe/internal/transcription/tuning"
)

// Options are the static pipeline settings.
type Options struct {
	BatchSize     int
	ChunkDuration float64 // seconds
	SearchWindow  float64 // seconds
	QueueDepth    int
	Policy        pipeline.Policy
}

// DefaultOptions mirrors the service defaults.
func DefaultOptions() Options {
	return Options{
		BatchSize:     32,
		ChunkDuration: 30,
		SearchWindow:  5,
		QueueDepth:    pipeline.DefaultQueueDepth,
		Policy:        pipeline.Policy{Mode: pipeline.DropContinue, Attempts: 2},
	}
}

// TuningSource supplies live overrides for Options.
type TuningSource interface {
	Current() (tuning.Params, bool)
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithGuard shares an engine guard between transcribers. Without one each
// Transcriber gets a private guard of width 1.
func WithGuard(guard *semaphore.Weighted) Option {
	return func(t *Transcriber) { t.guard = guard }
}

// WithTuning applies overrides from src on every call.
func WithTuning(src TuningSource) Option {
	return func(t *Transcriber) { t.tuning = src }
}

// WithMetrics attaches instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transcriber) { t.metrics = m }
}

// WithBackendName sets the name reported in results.
func WithBackendName(name string) Option {
	return func(t *Transcriber) { t.backend = name }
}

// WithTempDir sets where TranscribeBytes spools its input.
func WithTempDir(dir string) Option {
	return func(t *Transcriber) { t.tempDir = dir }
}

// Transcriber runs the full decode, segment and batch pipeline.
type Transcriber struct {
	decoder   decode.Decoder
	engine    engine.Engine
	assembler *pipeline.Assembler
	opts      Options

	guard   *semaphore.Weighted
	tuning  TuningSource
	metrics *metrics.Metrics
	backend string
	tempDir string
}

// NewTranscriber wires a decoder and an engine. Zero fields in opts take
// their DefaultOptions values.
func NewTranscriber(dec decode.Decoder, eng engine.Engine, opts Options, options ...Option) *Transcriber {
	t := &Transcriber{
		decoder: dec,
		engine:  eng,
		opts:    withDefaults(opts),
		backend: "unknown",
	}
	for _, o := range options {
		o(t)
	}
	if t.guard == nil {
		t.guard = semaphore.NewWeighted(1)
	}
	t.assembler = pipeline.NewAssembler(eng, t.metrics)
	return t
}

func withDefaults(o Options) Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.ChunkDuration <= 0 {
		o.ChunkDuration = d.ChunkDuration
	}
	if o.SearchWindow <= 0 {
		o.SearchWindow = d.SearchWindow
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = d.QueueDepth
	}
	if o.Policy.Mode == "" {
		o.Policy.Mode = d.Policy.Mode
	}
	return o
}

// options returns the static options with any live tuning applied.
func (t *Transcriber) options() Options {
	o := t.opts
	if t.tuning == nil {
		return o
	}
	p, ok := t.tuning.Current()
	if !ok {
		return o
	}
	if p.BatchSize > 0 {
		o.BatchSize = p.BatchSize
	}
	if p.ChunkDurationSec > 0 {
		o.ChunkDuration = p.ChunkDurationSec
	}
	if p.SearchWindowSec > 0 {
		o.SearchWindow = p.SearchWindowSec
	}
	if mode, err := pipeline.ParseDropPolicy(p.DropPolicy); err == nil && p.DropPolicy != "" {
		o.Policy.Mode = mode
	}
	if p.RetryAttempts > 0 {
		o.Policy.Attempts = p.RetryAttempts
	}
	return o
}

// Backend names the engine doing the work.
func (t *Transcriber) Backend() string { return t.backend }

// Transcribe decodes the file at path and returns its transcript.
func (t *Transcriber) Transcribe(ctx context.Context, path, format string) (*Result, error) {
	start := time.Now()
	opts := t.options()

	wave, err := t.decoder.Decode(ctx, path, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if wave.Len() == 0 {
		return nil, fmt.Errorf("%w: no audio samples", ErrDecode)
	}
	var timings Timings
	timings.Decode = time.Since(start)
	duration := wave.Duration()
	t.metrics.ObserveAudio(duration)

	segStart := time.Now()
	cuts := segment.FindCutPoints(wave, opts.ChunkDuration, opts.SearchWindow)
	chunks := segment.Split(wave, cuts)
	timings.Segment = time.Since(segStart)

	pipeStart := time.Now()
	exec := pipeline.NewExecutor(t.engine,
		pipeline.WithGuard(t.guard),
		pipeline.WithPolicy(opts.Policy),
		pipeline.WithQueueDepth(opts.QueueDepth),
		pipeline.WithMetrics(t.metrics),
	)
	outcome, err := exec.Run(ctx, t.assembler.Assemble(ctx, chunks, opts.BatchSize, wave.SampleRate))
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}
	timings.Pipeline = time.Since(pipeStart)

	transcript := outcome.Transcript()
	if transcript == "" {
		return nil, ErrEmptyResult
	}
	timings.Total = time.Since(start)

	t.metrics.ObserveStage("decode", timings.Decode.Seconds())
	t.metrics.ObserveStage("segment", timings.Segment.Seconds())
	t.metrics.ObserveStage("pipeline", timings.Pipeline.Seconds())

	res := &Result{
		Transcript:    transcript,
		AudioDuration: duration,
		Timings:       timings,
		WordCount:     len(strings.Fields(transcript)),
		CharCount:     utf8.RuneCountInString(transcript),
		SpeedFactor:   SpeedFactor(duration, timings.Total),
		ChunkCount:    len(chunks),
		BatchCount:    len(outcome.Results),
		DroppedChunks: outcome.DroppedChunks,
		Backend:       t.backend,
	}

	slog.InfoContext(ctx, "transcription: completed",
		"backend", t.backend,
		"audio_sec", duration,
		"chunks", res.ChunkCount,
		"batches", res.BatchCount,
		"dropped_chunks", res.DroppedChunks,
		"decode", timings.Decode,
		"segment", timings.Segment,
		"pipeline", timings.Pipeline,
		"total", timings.Total,
		"speed_factor", res.SpeedFactor,
	)
	return res, nil
}

// TranscribeBytes spools data to a temporary file and transcribes it.
func (t *Transcriber) TranscribeBytes(ctx context.Context, data []byte, format string) (*Result, error) {
	f, err := os.CreateTemp(t.tempDir, "scribe-*."+strings.TrimPrefix(format, "."))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}
	return t.Transcribe(ctx, f.Name(), format)
}

var _ Service = (*Transcriber)(nil)
