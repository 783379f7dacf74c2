package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("unary", "ok", 1)
	m.ObserveChunk(30)
	m.BatchDone("failed", 3, 1)
	m.InferenceStarted()
	m.InferenceDone(0.5)
	m.ObserveTruncation(10)
}

func TestBatchDone(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.BatchDone("ok", 0, 0)
	m.BatchDone("dropped", 4, 2)

	if got := testutil.ToFloat64(m.DroppedChunks); got != 4 {
		t.Errorf("dropped = %v, want 4", got)
	}
	if got := testutil.ToFloat64(m.BatchRetries); got != 2 {
		t.Errorf("retries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Batches.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok batches = %v, want 1", got)
	}
}

func TestObserveTruncation(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveTruncation(12)
	m.ObserveTruncation(3)
	if got := testutil.ToFloat64(m.TruncatedSamples); got != 15 {
		t.Errorf("truncated = %v, want 15", got)
	}
}
