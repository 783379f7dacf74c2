// Package handler adapts the transcription service to the Connect API:
// it validates requests, spools audio to a temporary file, calls the
// transcriber and converts every outcome into a response envelope.
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/pitabwire/frame/workerpool"
	"github.com/rs/xid"
	"gorm.io/gorm"

	transcriptionv1 "github.com/voicetyped/scribe/api/transcription/v1"
	"github.com/voicetyped/scribe/api/transcription/v1/transcriptionv1connect"
	"github.com/voicetyped/scribe/internal/metrics"
	"github.com/voicetyped/scribe/internal/speech/registry"
	"github.com/voicetyped/scribe/internal/transcription"
	"github.com/voicetyped/scribe/internal/transcription/store"
	"github.com/voicetyped/scribe/pkg/events"
)

// Ensure we implement the interface.
var _ transcriptionv1connect.TranscriptionServiceHandler = (*TranscriptionHandler)(nil)

const (
	shapeUnary  = "unary"
	shapeStream = "stream"
)

// Emitter publishes lifecycle events.
type Emitter interface {
	Emit(ctx context.Context, eventType events.EventType, sessionID string, data any) error
}

// Recorder persists transcription records.
type Recorder interface {
	Save(ctx context.Context, rec *store.Record) error
	GetByRequestID(ctx context.Context, requestID string) (*store.Record, error)
}

// Option configures a TranscriptionHandler.
type Option func(*TranscriptionHandler)

// WithEmitter publishes transcription.completed and transcription.failed.
func WithEmitter(e Emitter) Option {
	return func(h *TranscriptionHandler) { h.emitter = e }
}

// WithRecorder stores every outcome and enables GetTranscription.
func WithRecorder(r Recorder) Option {
	return func(h *TranscriptionHandler) { h.recorder = r }
}

// WithTempDir sets where uploads are spooled. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(h *TranscriptionHandler) { h.tempDir = dir }
}

// WithMaxPayloadBytes caps the accepted recording size.
func WithMaxPayloadBytes(n int64) Option {
	return func(h *TranscriptionHandler) {
		if n > 0 {
			h.maxPayload = n
		}
	}
}

// WithMetrics attaches instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *TranscriptionHandler) { h.metrics = m }
}

// WithServiceConfig is the backend config used to describe engines in
// ListBackends.
func WithServiceConfig(cfg map[string]string) Option {
	return func(h *TranscriptionHandler) { h.serviceConfig = cfg }
}

// TranscriptionHandler implements transcriptionv1connect.TranscriptionServiceHandler.
type TranscriptionHandler struct {
	svc  transcription.Service
	pool workerpool.WorkerPool

	emitter       Emitter
	recorder      Recorder
	metrics       *metrics.Metrics
	tempDir       string
	maxPayload    int64
	serviceConfig map[string]string
}

// NewTranscriptionHandler creates a handler around svc. pool runs event
// emission and persistence off the request path; nil uses goroutines.
func NewTranscriptionHandler(svc transcription.Service, pool workerpool.WorkerPool, opts ...Option) *TranscriptionHandler {
	h := &TranscriptionHandler{
		svc:           svc,
		pool:          pool,
		maxPayload:    DefaultMaxPayloadBytes,
		serviceConfig: map[string]string{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// requestContext is what both input shapes reduce to.
type requestContext struct {
	id         string
	shape      string
	filename   string
	format     string
	sampleRate int32
	payload    []byte
	start      time.Time
}

func (h *TranscriptionHandler) TranscribeAudio(ctx context.Context, req *connect.Request[transcriptionv1.TranscribeAudioRequest]) (*connect.Response[transcriptionv1.TranscriptionResponse], error) {
	rc := &requestContext{
		id:       xid.New().String(),
		shape:    shapeUnary,
		filename: req.Msg.Filename,
		format:   req.Msg.Format,
		payload:  req.Msg.AudioData,
		start:    time.Now(),
	}
	slog.InfoContext(ctx, "transcription: request received",
		"request_id", rc.id, "shape", rc.shape, "filename", rc.filename, "bytes", len(rc.payload))

	return connect.NewResponse(h.process(ctx, rc)), nil
}

func (h *TranscriptionHandler) TranscribeAudioStream(ctx context.Context, stream *connect.ClientStream[transcriptionv1.AudioChunk]) (*connect.Response[transcriptionv1.TranscriptionResponse], error) {
	rc := &requestContext{
		id:    xid.New().String(),
		shape: shapeStream,
		start: time.Now(),
	}

	var buf bytes.Buffer
	fragments := 0
	oversize := false
	for stream.Receive() {
		msg := stream.Msg()
		fragments++
		// Metadata comes from the first fragment only.
		if fragments == 1 {
			rc.filename = msg.Filename
			rc.format = msg.Format
			rc.sampleRate = msg.SampleRate
			slog.InfoContext(ctx, "transcription: stream started",
				"request_id", rc.id, "filename", rc.filename, "format", rc.format)
		}
		if oversize {
			continue
		}
		if int64(buf.Len()+len(msg.ChunkData)) > h.maxPayload {
			oversize = true
			buf.Reset()
			continue
		}
		buf.Write(msg.ChunkData)
	}
	if err := stream.Err(); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("receive audio stream: %w", err))
	}

	slog.InfoContext(ctx, "transcription: stream received",
		"request_id", rc.id, "fragments", fragments, "bytes", buf.Len())

	if oversize {
		// Same check order as a unary request of the discarded size.
		err := validate(rc.filename, int(h.maxPayload)+1, h.maxPayload)
		return connect.NewResponse(h.fail(ctx, rc, "validate", err)), nil
	}
	rc.payload = buf.Bytes()
	return connect.NewResponse(h.process(ctx, rc)), nil
}

// process validates and transcribes. It always produces a response.
func (h *TranscriptionHandler) process(ctx context.Context, rc *requestContext) *transcriptionv1.TranscriptionResponse {
	if err := validate(rc.filename, len(rc.payload), h.maxPayload); err != nil {
		return h.fail(ctx, rc, "validate", err)
	}

	res, err := h.transcribe(ctx, rc)
	if err != nil {
		return h.fail(ctx, rc, "transcribe", fmt.Errorf("transcription failed: %w", err))
	}
	return h.succeed(ctx, rc, res)
}

// transcribe spools the payload and runs the service. Panics from the
// service are converted into errors.
func (h *TranscriptionHandler) transcribe(ctx context.Context, rc *requestContext) (res *transcription.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "transcription: panic", "request_id", rc.id, "panic", r)
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	format := decodeFormat(rc.format, rc.filename)
	path, cleanup, err := h.spool(rc.payload, format)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return h.svc.Transcribe(ctx, path, format)
}

// spool writes payload to a temp file named with the format's extension.
// The returned cleanup removes it.
func (h *TranscriptionHandler) spool(payload []byte, format string) (string, func(), error) {
	f, err := os.CreateTemp(h.tempDir, "scribe-*."+format)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("transcription: remove temp file failed", "path", f.Name(), "error", err)
		}
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func (h *TranscriptionHandler) succeed(ctx context.Context, rc *requestContext, res *transcription.Result) *transcriptionv1.TranscriptionResponse {
	elapsed := time.Since(rc.start).Seconds()
	resp := &transcriptionv1.TranscriptionResponse{
		Transcript:     res.Transcript,
		Success:        true,
		ProcessingTime: elapsed,
		AudioDuration:  res.AudioDuration,
		RequestId:      rc.id,
		Stats: &transcriptionv1.TranscriptionStats{
			WordCount:     int32(res.WordCount),
			CharCount:     int32(res.CharCount),
			SpeedFactor:   res.SpeedFactor,
			ChunkCount:    int32(res.ChunkCount),
			DroppedChunks: int32(res.DroppedChunks),
		},
	}

	slog.InfoContext(ctx, "transcription: request completed",
		"request_id", rc.id, "shape", rc.shape, "audio_sec", res.AudioDuration,
		"processing_sec", elapsed, "words", res.WordCount, "dropped_chunks", res.DroppedChunks)
	h.metrics.ObserveRequest(rc.shape, "ok", elapsed)

	rec := h.record(rc, elapsed)
	rec.Status = store.StatusCompleted
	rec.Backend = res.Backend
	rec.Transcript = res.Transcript
	rec.AudioDuration = res.AudioDuration
	rec.WordCount = res.WordCount
	rec.CharCount = res.CharCount
	rec.ChunkCount = res.ChunkCount
	rec.DroppedChunks = res.DroppedChunks

	h.finish(ctx, rc, rec, events.TranscriptionCompleted, &events.TranscriptionCompletedData{
		Filename:       rc.filename,
		Format:         rc.format,
		Shape:          rc.shape,
		Backend:        res.Backend,
		AudioDuration:  res.AudioDuration,
		ProcessingTime: elapsed,
		WordCount:      res.WordCount,
		CharCount:      res.CharCount,
		ChunkCount:     res.ChunkCount,
		DroppedChunks:  res.DroppedChunks,
	})
	return resp
}

func (h *TranscriptionHandler) fail(ctx context.Context, rc *requestContext, stage string, err error) *transcriptionv1.TranscriptionResponse {
	elapsed := time.Since(rc.start).Seconds()
	slog.WarnContext(ctx, "transcription: request failed",
		"request_id", rc.id, "shape", rc.shape, "stage", stage, "error", err)
	h.metrics.ObserveRequest(rc.shape, stage+"_error", elapsed)

	rec := h.record(rc, elapsed)
	rec.Status = store.StatusFailed
	rec.Backend = h.svc.Backend()
	rec.ErrorMessage = err.Error()

	h.finish(ctx, rc, rec, events.TranscriptionFailed, &events.TranscriptionFailedData{
		Filename:       rc.filename,
		Format:         rc.format,
		Shape:          rc.shape,
		Stage:          stage,
		Error:          err.Error(),
		ProcessingTime: elapsed,
	})

	return &transcriptionv1.TranscriptionResponse{
		Success:        false,
		ErrorMessage:   err.Error(),
		ProcessingTime: elapsed,
		RequestId:      rc.id,
		Stats:          &transcriptionv1.TranscriptionStats{},
	}
}

func (h *TranscriptionHandler) record(rc *requestContext, elapsed float64) *store.Record {
	return &store.Record{
		RequestID:      rc.id,
		Filename:       rc.filename,
		Format:         rc.format,
		Shape:          rc.shape,
		PayloadBytes:   int64(len(rc.payload)),
		ProcessingTime: elapsed,
	}
}

// finish emits the event and stores the record without delaying the
// response.
func (h *TranscriptionHandler) finish(ctx context.Context, rc *requestContext, rec *store.Record, et events.EventType, data any) {
	if h.emitter == nil && h.recorder == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	task := func() {
		if h.emitter != nil {
			if err := h.emitter.Emit(bg, et, rc.id, data); err != nil {
				slog.WarnContext(bg, "transcription: emit event failed", "request_id", rc.id, "error", err)
			}
		}
		if h.recorder != nil {
			if err := h.recorder.Save(bg, rec); err != nil {
				slog.WarnContext(bg, "transcription: save record failed", "request_id", rc.id, "error", err)
			}
		}
	}
	if h.pool != nil {
		if err := h.pool.Submit(bg, task); err == nil {
			return
		}
	}
	go task()
}

func (h *TranscriptionHandler) GetTranscription(ctx context.Context, req *connect.Request[transcriptionv1.GetTranscriptionRequest]) (*connect.Response[transcriptionv1.TranscriptionResponse], error) {
	if h.recorder == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("result persistence is disabled"))
	}
	if req.Msg.RequestId == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("request_id is required"))
	}
	rec, err := h.recorder.GetByRequestID(ctx, req.Msg.RequestId)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("transcription %q not found", req.Msg.RequestId))
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	resp := &transcriptionv1.TranscriptionResponse{
		Transcript:     rec.Transcript,
		Success:        rec.Status == store.StatusCompleted,
		ErrorMessage:   rec.ErrorMessage,
		ProcessingTime: rec.ProcessingTime,
		AudioDuration:  rec.AudioDuration,
		RequestId:      rec.RequestID,
		Stats: &transcriptionv1.TranscriptionStats{
			WordCount:     int32(rec.WordCount),
			CharCount:     int32(rec.CharCount),
			SpeedFactor:   transcription.SpeedFactor(rec.AudioDuration, time.Duration(rec.ProcessingTime*float64(time.Second))),
			ChunkCount:    int32(rec.ChunkCount),
			DroppedChunks: int32(rec.DroppedChunks),
		},
	}
	return connect.NewResponse(resp), nil
}

func (h *TranscriptionHandler) ListBackends(_ context.Context, _ *connect.Request[transcriptionv1.ListBackendsRequest]) (*connect.Response[transcriptionv1.ListBackendsResponse], error) {
	active := h.svc.Backend()
	backends := make([]*transcriptionv1.BackendInfo, 0)
	for _, name := range registry.Engines.List() {
		info := &transcriptionv1.BackendInfo{
			Name:   name,
			Active: name == active,
		}
		if eng, err := registry.Engines.Create(name, h.serviceConfig); err == nil {
			for _, m := range eng.Models() {
				info.Models = append(info.Models, m.ID)
				if m.IsDefault {
					info.DefaultModel = m.ID
				}
			}
			eng.Close()
		}
		backends = append(backends, info)
	}
	return connect.NewResponse(&transcriptionv1.ListBackendsResponse{Backends: backends}), nil
}
