package workers

import (
	"context"
	"log/slog"
	"time"

	"trivia-lab/contract"
	"trivia-lab/domain/event"
)

// EventFanout delivers committed change events to the subscribers of their session.
//
// It is the only producer of every sink, and it hands events to sinks one at a
// time, so a subscriber sees the events of its session in commit order.
// Sinks must not block; a sink that does is abandoned after sinkTimeout.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.ChangeEvent
	registry    contract.IRegistry
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, events <-chan event.ChangeEvent,
	registry contract.IRegistry, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{log: log, events: events, registry: registry, sinkTimeout: sinkTimeout}
}

func (w EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Change feed closed, stopping fanout")
				return nil
			}
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout hands one event to every sink following its session.
func (w EventFanout) Fanout(ctx context.Context, evt event.ChangeEvent) {
	for _, sink := range w.registry.GetSinksForSession(evt.SessionID()) {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.log.Warn("Sink failed to consume change", "session_id", evt.SessionID(), "error", err)
		}
		cancel()
	}
}
