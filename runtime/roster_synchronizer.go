package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trivia-lab/contract"
	"trivia-lab/domain"
	"trivia-lab/domain/event"
	"trivia-lab/errors"
	"trivia-lab/projection"
)

const DefaultRetryBackoff = 2 * time.Second

// RosterSynchronizer keeps a local, eventually consistent roster of one session.
//
// It subscribes first, then reads the baseline, then applies the feed in
// delivery order. When the feed reports an unhealthy status it waits a fixed
// backoff, subscribes again and reads the baseline once more. A second failure
// before the new subscription is confirmed ends Run with ErrSubscriptionFailure.
// It only reads from its source.
type RosterSynchronizer struct {
	log       *slog.Logger
	source    contract.FeedSource
	sessionID domain.SessionID
	backoff   time.Duration
	roster    *projection.Roster

	mu       sync.RWMutex
	phase    domain.Phase
	onRoster func([]domain.Participant)
	onPhase  func(domain.Session)
}

func NewRosterSynchronizer(log *slog.Logger, source contract.FeedSource,
	sessionID domain.SessionID, backoff time.Duration) *RosterSynchronizer {
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	return &RosterSynchronizer{
		log:       log.With("session_id", sessionID),
		source:    source,
		sessionID: sessionID,
		backoff:   backoff,
		roster:    projection.NewRoster(sessionID),
		phase:     domain.PhaseLobby,
	}
}

// OnRosterChange registers the callback fired after every net roster change.
// It may fire again with an identical roster.
func (s *RosterSynchronizer) OnRosterChange(fn func([]domain.Participant)) *RosterSynchronizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRoster = fn
	return s
}

// OnPhaseChange registers the callback fired once when the session is seen active.
func (s *RosterSynchronizer) OnPhaseChange(fn func(domain.Session)) *RosterSynchronizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPhase = fn
	return s
}

func (s *RosterSynchronizer) Roster() []domain.Participant { return s.roster.Snapshot() }

func (s *RosterSynchronizer) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Run blocks until ctx is canceled or the feed cannot be recovered.
func (s *RosterSynchronizer) Run(ctx context.Context) error {
	sub, err := s.source.SubscribeParticipantChanges(ctx, s.sessionID)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	if err := s.baseline(ctx); err != nil {
		if sub != nil {
			sub.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("baseline read of session %s: %w", s.sessionID, err)
	}

	// recovering is set between a re-subscription and its confirmation.
	recovering := false
	if err != nil {
		s.log.Warn("Subscription failed", "error", err)
		if sub, err = s.recover(ctx); err != nil {
			return s.escalate(ctx, err)
		}
		recovering = true
	}
	defer func() {
		if sub != nil {
			sub.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.Events():
			if !ok {
				e = event.StatusChanged{Session: s.sessionID, Status: event.StatusClosed, Reason: "feed closed"}
			}
			status, isStatus := e.(event.StatusChanged)
			if !isStatus {
				s.apply(e)
				continue
			}
			if status.Healthy() {
				recovering = false
				s.log.Debug("Subscribed to change feed")
				continue
			}
			sub.Close()
			sub = nil
			if recovering {
				return s.escalate(ctx, fmt.Errorf("%w: %s after retry", errors.ErrSubscriptionFailure, status.Status))
			}
			s.log.Warn("Change feed unhealthy, falling back to a full read",
				"status", status.Status, "reason", status.Reason, "backoff", s.backoff)
			if sub, err = s.recover(ctx); err != nil {
				return s.escalate(ctx, err)
			}
			recovering = true
		}
	}
}

// recover waits the backoff, subscribes again and performs the single fallback read.
func (s *RosterSynchronizer) recover(ctx context.Context) (contract.Subscription, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.backoff):
	}
	sub, err := s.source.SubscribeParticipantChanges(ctx, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSubscriptionFailure, err)
	}
	if err := s.baseline(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("%w: fallback read: %v", errors.ErrSubscriptionFailure, err)
	}
	return sub, nil
}

// escalate hides failures caused by cancellation.
func (s *RosterSynchronizer) escalate(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	s.log.Error("Change feed lost", "error", err)
	return err
}

// baseline replaces the roster with a full read and refreshes the phase.
func (s *RosterSynchronizer) baseline(ctx context.Context) error {
	session, err := s.source.GetSession(ctx, s.sessionID)
	if err != nil {
		return err
	}
	participants, err := s.source.ListParticipants(ctx, s.sessionID)
	if err != nil {
		return err
	}
	s.roster.Reset(participants)
	s.notifyRoster()
	s.observePhase(session)
	return nil
}

func (s *RosterSynchronizer) apply(e event.ChangeEvent) {
	if e.SessionID() != s.sessionID {
		return
	}
	changed := false
	switch evt := e.(type) {
	case event.ParticipantInserted:
		changed = s.roster.ApplyInsert(evt.Participant)
	case event.ParticipantUpdated:
		changed = s.roster.ApplyUpdate(evt.Participant)
	case event.ParticipantDeleted:
		changed = s.roster.ApplyDelete(evt.ParticipantID)
	case event.SessionUpdated:
		s.observePhase(evt.State)
	default:
		s.log.Debug("Ignoring unknown change", "type", fmt.Sprintf("%T", e))
	}
	if changed {
		s.notifyRoster()
	}
}

func (s *RosterSynchronizer) notifyRoster() {
	s.mu.RLock()
	fn := s.onRoster
	s.mu.RUnlock()
	if fn != nil {
		fn(s.roster.Snapshot())
	}
}

// observePhase fires the phase callback on the first sighting of an active session.
func (s *RosterSynchronizer) observePhase(session domain.Session) {
	s.mu.Lock()
	transition := s.phase != domain.PhaseActive && session.Phase == domain.PhaseActive
	if session.Phase == domain.PhaseActive {
		s.phase = domain.PhaseActive
	}
	fn := s.onPhase
	s.mu.Unlock()
	if transition && fn != nil {
		s.log.Info("Session started", "moderator_order", session.ModeratorOrder)
		fn(session)
	}
}
