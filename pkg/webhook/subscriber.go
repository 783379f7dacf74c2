package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"

	"github.com/voicetyped/scribe/pkg/events"
)

// Subscriber implements frame's queue.SubscribeWorker and fans each
// matching event out to every endpoint.
type Subscriber struct {
	Endpoints []Endpoint
	Deliverer *Deliverer
	// Types limits delivery to these event types. Empty delivers all.
	Types []events.EventType
	// Pool runs deliveries; nil delivers inline.
	Pool workerpool.WorkerPool
}

// Handle is called by frame's pub/sub for each event message.
func (s *Subscriber) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("webhook subscriber: unmarshal envelope")
		return err
	}
	if len(s.Types) > 0 && !slices.Contains(s.Types, env.Type) {
		return nil
	}

	for _, ep := range s.Endpoints {
		deliver := func() {
			if err := s.Deliverer.Deliver(ctx, ep, env); err != nil {
				util.Log(ctx).WithError(err).Error("webhook subscriber: delivery failed")
			}
		}
		if s.Pool == nil {
			deliver()
			continue
		}
		if err := s.Pool.Submit(ctx, deliver); err != nil {
			slog.WarnContext(ctx, "webhook pool full, delivering inline", slog.String("url", ep.URL))
			deliver()
		}
	}
	return nil
}
