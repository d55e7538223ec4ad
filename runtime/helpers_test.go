package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"trivia-lab/domain"
	"trivia-lab/domain/event"
	"trivia-lab/repositories"
	"trivia-lab/runtime/workers"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeSubscription struct {
	events chan event.ChangeEvent
	closed atomic.Bool
}

func newFakeSubscription(events ...event.ChangeEvent) *fakeSubscription {
	s := &fakeSubscription{events: make(chan event.ChangeEvent, len(events)+8)}
	for _, e := range events {
		s.events <- e
	}
	return s
}

func (s *fakeSubscription) Events() <-chan event.ChangeEvent { return s.events }
func (s *fakeSubscription) Close()                           { s.closed.Store(true) }

func subscribed() event.StatusChanged {
	return event.StatusChanged{Session: "abc123", Status: event.StatusSubscribed}
}

func channelError() event.StatusChanged {
	return event.StatusChanged{Session: "abc123", Status: event.StatusChannelError, Reason: "boom"}
}

// startFeed wires an in-memory store, the feed and a running fanout.
func startFeed(t *testing.T) *Feed {
	t.Helper()
	feed, startFanout := laggingFeed(t)
	startFanout()
	return feed
}

// laggingFeed wires the feed without running its fanout.
// Writes queue up until startFanout is called.
func laggingFeed(t *testing.T) (*Feed, func()) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan event.ChangeEvent, 64)
	registry := NewRegistry()
	feed := NewFeed(log, repositories.NewSessionRepository(db, log), registry, events, 16)
	startFanout := func() {
		go func() { _ = workers.NewEventFanout(log, events, registry, time.Second).Run(ctx) }()
	}
	t.Cleanup(func() {
		feed.Stop()
		cancel()
	})
	return feed, startFanout
}

func lobby(t *testing.T, feed *Feed, id domain.SessionID) domain.Session {
	t.Helper()
	session := domain.NewSession(id, "Friday quiz", nil, time.Now().UTC())
	_, err := feed.CreateSession(context.Background(), session)
	require.NoError(t, err)
	return session
}

func join(t *testing.T, feed *Feed, id domain.SessionID, name string) domain.Participant {
	t.Helper()
	p, err := feed.InsertParticipant(context.Background(), domain.Participant{
		SessionID: id, DisplayName: name, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return p
}

func next(t *testing.T, sub interface{ Events() <-chan event.ChangeEvent }) event.ChangeEvent {
	t.Helper()
	select {
	case e := <-sub.Events():
		return e
	case <-time.After(time.Second):
		require.FailNow(t, "no event received in time")
		return nil
	}
}
