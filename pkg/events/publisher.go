package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

// Publisher emits typed envelopes onto frame's queue and to in-process
// listeners. Without a queue manager it only delivers locally.
type Publisher struct {
	queueMgr queue.Manager
	source   string
	queueRef string

	mu        sync.RWMutex
	listeners map[string]*listener
}

type listener struct {
	ch    chan Envelope
	types []EventType
}

func (l *listener) wants(t EventType) bool {
	return len(l.types) == 0 || slices.Contains(l.types, t)
}

// NewPublisher creates a publisher for queueRef. queueMgr may be nil.
func NewPublisher(queueMgr queue.Manager, source string, queueRef string) *Publisher {
	return &Publisher{
		queueMgr:  queueMgr,
		source:    source,
		queueRef:  queueRef,
		listeners: make(map[string]*listener),
	}
}

// Emit wraps data in an envelope keyed by requestID and publishes it.
// Local delivery never blocks; a full listener loses the event.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, requestID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	env := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    p.source,
		SessionID: requestID,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	p.mu.RLock()
	for id, l := range p.listeners {
		if !l.wants(eventType) {
			continue
		}
		select {
		case l.ch <- env:
		default:
			slog.WarnContext(ctx, "events: listener full, event dropped",
				slog.String("listener", id), slog.String("event_type", string(eventType)))
		}
	}
	p.mu.RUnlock()

	if p.queueMgr == nil {
		return nil
	}
	if err := p.queueMgr.Publish(ctx, p.queueRef, env); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// Subscribe registers a local listener for the given types, or for every
// type when none are given. Call Unsubscribe with the same id when done.
func (p *Publisher) Subscribe(id string, bufSize int, types ...EventType) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 64
	}
	l := &listener{ch: make(chan Envelope, bufSize), types: types}
	p.mu.Lock()
	if old, ok := p.listeners[id]; ok {
		close(old.ch)
	}
	p.listeners[id] = l
	p.mu.Unlock()
	return l.ch
}

// Unsubscribe removes a listener and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.listeners[id]; ok {
		close(l.ch)
		delete(p.listeners, id)
	}
}
