// Package runtime carries committed changes to live subscribers and keeps
// local rosters in sync with them. It holds no game rules.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"trivia-lab/contract"
	"trivia-lab/domain/event"
	"trivia-lab/repositories"
	"trivia-lab/runtime/workers"
)

// Orchestrator owns the change feed and the workers delivering it.
type Orchestrator struct {
	log         *slog.Logger
	supervisor  contract.ISupervisor
	registry    *Registry
	events      chan event.ChangeEvent
	feed        *Feed
	sinkTimeout time.Duration
	monitor     *workers.CapacityMonitor
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry *Registry,
	repository repositories.ISessionRepository, bufferSize, subscriberBufferSize int,
	sinkTimeout time.Duration) *Orchestrator {
	events := make(chan event.ChangeEvent, bufferSize)
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		events:      events,
		feed:        NewFeed(log, repository, registry, events, subscriberBufferSize),
		sinkTimeout: sinkTimeout,
		done:        make(chan struct{}),
	}
}

// WithCapacityMonitor samples the change channel every interval and warns when
// fewer than lowCapacityThreshold slots are left.
func (o *Orchestrator) WithCapacityMonitor(interval time.Duration, lowCapacityThreshold int) *Orchestrator {
	if interval > 0 {
		events := o.events
		o.monitor = workers.NewCapacityMonitor(o.log, interval, lowCapacityThreshold, workers.ChannelProbe{
			Name: "change_events", Length: func() int { return len(events) }, Capacity: cap(events),
		})
	}
	return o
}

// Feed is the store to write through so that subscribers see the change.
func (o *Orchestrator) Feed() *Feed { return o.feed }

func (o *Orchestrator) Registry() *Registry { return o.registry }

// Start launches the fanout under supervision and returns immediately.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)
	o.supervisor.Add(workers.NewEventFanout(o.log, o.events, o.registry, o.sinkTimeout))
	if o.monitor != nil {
		o.supervisor.Add(o.monitor)
	}
	go func() {
		defer close(o.done)
		o.supervisor.Run(ctx)
	}()
	o.log.Info("Change feed started")
}

// Stop releases blocked writers, stops the workers and waits for them.
// It must follow Start.
func (o *Orchestrator) Stop() {
	o.feed.Stop()
	o.cancel()
	<-o.done
	o.log.Info("Change feed stopped")
}
