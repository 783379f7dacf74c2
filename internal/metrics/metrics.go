// Package metrics exposes Prometheus instrumentation for the transcription
// service. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription service
type Metrics struct {
	// Request metrics
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AudioDuration   prometheus.Histogram

	// Orchestration stage timings
	StageDuration *prometheus.HistogramVec

	// Pipeline metrics
	ChunksGenerated  prometheus.Counter
	ChunkDuration    prometheus.Histogram
	Batches          *prometheus.CounterVec
	DroppedChunks    prometheus.Counter
	TruncatedSamples prometheus.Counter
	BatchRetries     prometheus.Counter
	QueueWait        prometheus.Histogram
	InferenceTime    prometheus.Histogram
	InFlight         prometheus.Gauge
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_requests_total",
			Help: "Transcription requests by input shape and outcome",
		}, []string{"shape", "outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_request_duration_seconds",
			Help:    "End-to-end request processing time",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"shape"}),
		AudioDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_audio_duration_seconds",
			Help:    "Duration of decoded audio per request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_stage_duration_seconds",
			Help:    "Time spent per orchestration stage",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"stage"}),
		ChunksGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_chunks_generated_total",
			Help: "Total number of chunks produced by the segmenter",
		}),
		ChunkDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_chunk_duration_seconds",
			Help:    "Duration of chunks produced by the segmenter",
			Buckets: prometheus.LinearBuckets(5, 5, 8),
		}),
		Batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_batches_total",
			Help: "Batches executed by outcome",
		}, []string{"outcome"}),
		DroppedChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_dropped_chunks_total",
			Help: "Chunks whose batch failed and produced no text",
		}),
		TruncatedSamples: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_truncated_samples_total",
			Help: "Samples cut from chunks longer than the feature extractor width",
		}),
		BatchRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "scribe_batch_retries_total",
			Help: "Additional inference attempts made under the retry policy",
		}),
		QueueWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_queue_wait_seconds",
			Help:    "Time a prepared batch waited for the execution stage",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		InferenceTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_inference_duration_seconds",
			Help:    "Engine time per batch",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_batches_in_flight",
			Help: "Batches currently held by the engine",
		}),
	}
}

// ObserveRequest records a finished request.
func (m *Metrics) ObserveRequest(shape, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(shape, outcome).Inc()
	m.RequestDuration.WithLabelValues(shape).Observe(seconds)
}

// ObserveStage records time spent in an orchestration stage.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// ObserveAudio records the decoded audio length.
func (m *Metrics) ObserveAudio(seconds float64) {
	if m == nil {
		return
	}
	m.AudioDuration.Observe(seconds)
}

// ObserveChunk records one segmenter chunk.
func (m *Metrics) ObserveChunk(seconds float64) {
	if m == nil {
		return
	}
	m.ChunksGenerated.Inc()
	m.ChunkDuration.Observe(seconds)
}

// ObserveQueueWait records how long a batch sat in the hand-off queue.
func (m *Metrics) ObserveQueueWait(seconds float64) {
	if m == nil {
		return
	}
	m.QueueWait.Observe(seconds)
}

// InferenceStarted marks a batch as held by the engine.
func (m *Metrics) InferenceStarted() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// InferenceDone records the engine time for one attempt.
func (m *Metrics) InferenceDone(seconds float64) {
	if m == nil {
		return
	}
	m.InFlight.Dec()
	m.InferenceTime.Observe(seconds)
}

// BatchDone records a batch outcome and any chunks it dropped.
func (m *Metrics) BatchDone(outcome string, dropped, retries int) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(outcome).Inc()
	if dropped > 0 {
		m.DroppedChunks.Add(float64(dropped))
	}
	if retries > 0 {
		m.BatchRetries.Add(float64(retries))
	}
}

// ObserveTruncation records samples a feature extractor could not keep.
func (m *Metrics) ObserveTruncation(samples int) {
	if m == nil {
		return
	}
	m.TruncatedSamples.Add(float64(samples))
}
