package sink

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"trivia-lab/contract"
	"trivia-lab/domain"
	"trivia-lab/domain/event"
)

var _ contract.EventSink = (*FeedSink)(nil)
var _ contract.Subscription = (*FeedSink)(nil)

// FeedSink is the per-subscriber end of the change feed.
// The fanout is its only producer, so events keep the order they were published in.
// A subscriber that falls behind loses its queue and receives a channel_error
// status instead; it is expected to re-read its baseline.
// Committed events at or below the cursor set by After predate the
// subscription and are dropped.
type FeedSink struct {
	log       *slog.Logger
	sessionID domain.SessionID
	after     uint64
	events    chan event.ChangeEvent
	done      chan struct{}
	closeOnce sync.Once
	broken    atomic.Bool
	onClose   func()
}

func NewFeedSink(log *slog.Logger, sessionID domain.SessionID, bufferSize int) *FeedSink {
	if bufferSize < 2 {
		bufferSize = 2
	}
	return &FeedSink{
		log:       log,
		sessionID: sessionID,
		events:    make(chan event.ChangeEvent, bufferSize),
		done:      make(chan struct{}),
	}
}

// After sets the commit cursor. It must be called before the sink is registered.
func (s *FeedSink) After(seq uint64) { s.after = seq }

// OnClose registers the release hook run once by Close.
func (s *FeedSink) OnClose(fn func()) { s.onClose = fn }

func (s *FeedSink) Events() <-chan event.ChangeEvent { return s.events }

// Consume is called by the fanout.
// It never blocks on a slow subscriber.
func (s *FeedSink) Consume(ctx context.Context, e event.ChangeEvent) error {
	if s.broken.Load() || s.closed() {
		return nil
	}
	if committed, ok := e.(event.Committed); ok {
		if committed.Seq <= s.after {
			return nil
		}
		e = committed.Change
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Warn("Subscriber buffer full, forcing resync", "session_id", s.sessionID)
		s.Fail(event.StatusChannelError, "subscriber buffer full")
		return nil
	}
}

// Fail drops everything queued and leaves a single status event.
// Further events are ignored until the subscriber closes the sink.
func (s *FeedSink) Fail(status event.SubscriptionStatus, reason string) {
	if !s.broken.CompareAndSwap(false, true) {
		return
	}
	for drained := false; !drained; {
		select {
		case <-s.events:
		default:
			drained = true
		}
	}
	select {
	case s.events <- event.StatusChanged{Session: s.sessionID, Status: status, Reason: reason}:
	default:
	}
}

func (s *FeedSink) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
}

func (s *FeedSink) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
