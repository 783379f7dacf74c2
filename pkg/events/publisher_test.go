package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEmitFansOutLocally(t *testing.T) {
	p := NewPublisher(nil, "scribe", "events")
	ch := p.Subscribe("test", 4)
	defer p.Unsubscribe("test")

	err := p.Emit(context.Background(), TranscriptionCompleted, "req-1", &TranscriptionCompletedData{
		Filename:  "meeting.wav",
		Shape:     "unary",
		WordCount: 42,
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}

	select {
	case env := <-ch:
		if env.Type != TranscriptionCompleted || env.Source != "scribe" || env.SessionID != "req-1" {
			t.Fatalf("envelope = %+v", env)
		}
		if env.ID == "" || env.Timestamp.IsZero() {
			t.Error("envelope missing id or timestamp")
		}
		var payload TranscriptionCompletedData
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if payload.WordCount != 42 || payload.Filename != "meeting.wav" {
			t.Errorf("payload = %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestEmitDropsWhenSubscriberFull(t *testing.T) {
	p := NewPublisher(nil, "scribe", "events")
	ch := p.Subscribe("slow", 1)
	defer p.Unsubscribe("slow")

	for range 3 {
		if err := p.Emit(context.Background(), TranscriptionFailed, "req", &TranscriptionFailedData{}); err != nil {
			t.Fatal(err)
		}
	}
	if len(ch) != 1 {
		t.Fatalf("buffered = %d, want 1", len(ch))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	p := NewPublisher(nil, "scribe", "events")
	ch := p.Subscribe("gone", 0)
	p.Unsubscribe("gone")
	if _, ok := <-ch; ok {
		t.Fatal("channel still open")
	}
	// Emitting after unsubscribe must not panic.
	if err := p.Emit(context.Background(), TuningReloaded, "", &TuningReloadedData{}); err != nil {
		t.Fatal(err)
	}
}

func TestSubscribeFiltersTypes(t *testing.T) {
	p := NewPublisher(nil, "scribe", "events")
	ch := p.Subscribe("failures", 4, TranscriptionFailed)
	defer p.Unsubscribe("failures")

	ctx := context.Background()
	_ = p.Emit(ctx, TranscriptionCompleted, "a", &TranscriptionCompletedData{})
	_ = p.Emit(ctx, TranscriptionFailed, "b", &TranscriptionFailedData{Stage: "validate"})

	if len(ch) != 1 {
		t.Fatalf("buffered = %d, want 1", len(ch))
	}
	if env := <-ch; env.SessionID != "b" {
		t.Errorf("got %q, want b", env.SessionID)
	}
}

func TestResubscribeClosesPrevious(t *testing.T) {
	p := NewPublisher(nil, "scribe", "events")
	first := p.Subscribe("dup", 1)
	second := p.Subscribe("dup", 1)
	defer p.Unsubscribe("dup")

	if _, ok := <-first; ok {
		t.Fatal("first channel still open")
	}
	_ = p.Emit(context.Background(), TuningReloaded, "", &TuningReloadedData{})
	if len(second) != 1 {
		t.Error("second subscription did not receive the event")
	}
}
