package runtime

import (
	"context"
	"log/slog"
	"sync"

	"trivia-lab/contract"
	"trivia-lab/domain"
	"trivia-lab/domain/event"
	"trivia-lab/repositories"
	"trivia-lab/sink"

	"github.com/google/uuid"
)

var _ repositories.ISessionRepository = (*Feed)(nil)
var _ contract.FeedSource = (*Feed)(nil)

// Feed is the session store with its change feed attached.
// Every committed write is published exactly once, in commit order,
// to the channel drained by the EventFanout worker. Each publication carries
// a sequence number so a subscriber never sees a write committed before it.
type Feed struct {
	mu             sync.Mutex
	seq            uint64
	log            *slog.Logger
	repository     repositories.ISessionRepository
	registry       contract.IRegistry
	events         chan<- event.ChangeEvent
	subscriberSize int
	stop           chan struct{}
	stopOnce       sync.Once
}

func NewFeed(log *slog.Logger, repository repositories.ISessionRepository, registry contract.IRegistry,
	events chan<- event.ChangeEvent, subscriberSize int) *Feed {
	return &Feed{
		log:            log,
		repository:     repository,
		registry:       registry,
		events:         events,
		subscriberSize: subscriberSize,
		stop:           make(chan struct{}),
	}
}

// Stop unblocks writers waiting on a saturated feed. Writes still commit
// after Stop but are no longer published.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
}

func (f *Feed) CreateSession(ctx context.Context, session domain.Session) (domain.SessionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := f.repository.CreateSession(ctx, session)
	if err != nil {
		return "", err
	}
	f.publish(event.SessionUpdated{State: session})
	return id, nil
}

func (f *Feed) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	return f.repository.GetSession(ctx, id)
}

func (f *Feed) UpdateSessionConditional(ctx context.Context, id domain.SessionID,
	expected domain.Phase, fields domain.StartFields) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	updated, err := f.repository.UpdateSessionConditional(ctx, id, expected, fields)
	if err != nil {
		return domain.Session{}, err
	}
	f.publish(event.SessionUpdated{State: updated})
	return updated, nil
}

func (f *Feed) ListParticipants(ctx context.Context, sessionID domain.SessionID) ([]domain.Participant, error) {
	return f.repository.ListParticipants(ctx, sessionID)
}

func (f *Feed) InsertParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted, err := f.repository.InsertParticipant(ctx, participant)
	if err != nil {
		return domain.Participant{}, err
	}
	f.publish(event.ParticipantInserted{Participant: inserted})
	return inserted, nil
}

func (f *Feed) UpdateParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	updated, err := f.repository.UpdateParticipant(ctx, participant)
	if err != nil {
		return domain.Participant{}, err
	}
	f.publish(event.ParticipantUpdated{Participant: updated})
	return updated, nil
}

func (f *Feed) DeleteParticipant(ctx context.Context, sessionID domain.SessionID,
	id domain.ParticipantID) (domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted, err := f.repository.DeleteParticipant(ctx, sessionID, id)
	if err != nil {
		return domain.Participant{}, err
	}
	f.publish(event.ParticipantDeleted{Session: sessionID, ParticipantID: id})
	return deleted, nil
}

// SubscribeParticipantChanges opens a subscription on an existing session.
// The first event is always a subscribed status.
func (f *Feed) SubscribeParticipantChanges(ctx context.Context, sessionID domain.SessionID) (contract.Subscription, error) {
	if _, err := f.repository.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	subscriberID := uuid.NewString()
	s := sink.NewFeedSink(f.log, sessionID, f.subscriberSize)
	if err := s.Consume(ctx, event.StatusChanged{Session: sessionID, Status: event.StatusSubscribed}); err != nil {
		return nil, err
	}
	s.OnClose(func() {
		f.registry.Unsubscribe(subscriberID, sessionID)
		f.log.Debug("Subscription closed", "session_id", sessionID, "subscriber_id", subscriberID)
	})

	f.mu.Lock()
	s.After(f.seq)
	f.registry.Subscribe(subscriberID, sessionID, s)
	f.mu.Unlock()
	f.log.Debug("Subscription opened", "session_id", sessionID, "subscriber_id", subscriberID)
	return s, nil
}

// publish must be called with f.mu held, right after the commit.
func (f *Feed) publish(e event.ChangeEvent) {
	f.seq++
	select {
	case f.events <- event.Committed{Seq: f.seq, Change: e}:
	case <-f.stop:
		f.log.Warn("Feed stopped, change not published", "session_id", e.SessionID())
	}
}
