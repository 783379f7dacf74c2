package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/voicetyped/scribe/pkg/events"
	"github.com/voicetyped/scribe/pkg/urlvalidation"
)

func TestSubscriberFiltersAndFansOut(t *testing.T) {
	var a, b atomic.Int32
	tsA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { a.Add(1) }))
	defer tsA.Close()
	tsB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { b.Add(1) }))
	defer tsB.Close()

	s := &Subscriber{
		Endpoints: []Endpoint{{URL: tsA.URL}, {URL: tsB.URL}},
		Deliverer: NewDeliverer(fastConfig(), urlvalidation.AllowPrivateIPs()),
		Types:     []events.EventType{events.TranscriptionCompleted, events.TranscriptionFailed},
	}

	msg, _ := json.Marshal(testEnvelope())
	if err := s.Handle(context.Background(), nil, msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	other := testEnvelope()
	other.Type = events.TuningReloaded
	msg, _ = json.Marshal(other)
	if err := s.Handle(context.Background(), nil, msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("deliveries a=%d b=%d, want 1 each", a.Load(), b.Load())
	}
}

func TestSubscriberRejectsGarbage(t *testing.T) {
	s := &Subscriber{Deliverer: NewDeliverer(fastConfig())}
	if err := s.Handle(context.Background(), nil, []byte("{not json")); err == nil {
		t.Fatal("expected error")
	}
}
