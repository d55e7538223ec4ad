package runtime

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"trivia-lab/contract"
	"trivia-lab/domain"
	"trivia-lab/domain/event"
	"trivia-lab/errors"
	"trivia-lab/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type rosterRecorder struct {
	mu        sync.Mutex
	snapshots [][]domain.Participant
	started   []domain.Session
	changed   chan struct{}
}

func newRecorder() *rosterRecorder {
	return &rosterRecorder{changed: make(chan struct{}, 128)}
}

func (r *rosterRecorder) roster(snapshot []domain.Participant) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, snapshot)
	r.mu.Unlock()
	r.changed <- struct{}{}
}

func (r *rosterRecorder) phase(session domain.Session) {
	r.mu.Lock()
	r.started = append(r.started, session)
	r.mu.Unlock()
}

func (r *rosterRecorder) last() []domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

// waitFor blocks until the last snapshot has n participants.
func (r *rosterRecorder) waitFor(t *testing.T, n int) []domain.Participant {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if last := r.last(); last != nil && len(last) == n {
			return last
		}
		select {
		case <-r.changed:
		case <-deadline:
			require.FailNowf(t, "roster not converged", "want %d participants, got %v", n, r.last())
		}
	}
}

func member(id, name string) domain.Participant {
	return domain.Participant{
		ID: domain.ParticipantID(id), SessionID: "abc123", DisplayName: name,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func lobbySession() domain.Session {
	return domain.NewSession("abc123", "Friday quiz", nil, time.Now().UTC())
}

func TestRosterSynchronizer_Baseline_And_Live_Changes(t *testing.T) {
	req := require.New(t)
	feed := startFeed(t)
	lobby(t, feed, "abc123")
	ana := join(t, feed, "abc123", "Ana")
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	synchronizer := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), feed, "abc123", 10*time.Millisecond).
		OnRosterChange(rec.roster)
	done := make(chan error, 1)
	go func() { done <- synchronizer.Run(ctx) }()

	// Given the baseline contains Ana
	req.Equal([]domain.Participant{ana}, rec.waitFor(t, 1))

	// When two more participants join and Ana renames
	bob := join(t, feed, "abc123", "Bob")
	cleo := join(t, feed, "abc123", "Cleo")
	ana.DisplayName = "Anita"
	_, err := feed.UpdateParticipant(context.Background(), ana)
	req.NoError(err)

	// Then the local roster converges to the store
	req.Eventually(func() bool {
		roster := synchronizer.Roster()
		return len(roster) == 3 && slices.ContainsFunc(roster, func(p domain.Participant) bool {
			return p.DisplayName == "Anita"
		})
	}, 2*time.Second, 10*time.Millisecond)
	store, err := feed.ListParticipants(context.Background(), "abc123")
	req.NoError(err)
	req.Equal(domain.IDs(store), domain.IDs(synchronizer.Roster()))
	req.ElementsMatch([]domain.ParticipantID{ana.ID, bob.ID, cleo.ID}, domain.IDs(synchronizer.Roster()))

	// When the context is canceled Run returns cleanly
	cancel()
	req.NoError(<-done)
}

func TestRosterSynchronizer_Duplicate_Insert_From_Race(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	source := mocks.NewMockFeedSource(ctrl)
	ana := member("p1", "Ana")
	rec := newRecorder()

	// Given Ana is both in the baseline and in the feed
	sub := newFakeSubscription(subscribed(), event.ParticipantInserted{Participant: ana},
		event.ParticipantInserted{Participant: member("p2", "Bob")})
	source.EXPECT().SubscribeParticipantChanges(gomock.Any(), domain.SessionID("abc123")).Return(sub, nil)
	source.EXPECT().GetSession(gomock.Any(), domain.SessionID("abc123")).Return(lobbySession(), nil)
	source.EXPECT().ListParticipants(gomock.Any(), domain.SessionID("abc123")).
		Return([]domain.Participant{ana}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), source, "abc123", time.Millisecond).
		OnRosterChange(rec.roster)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Then Ana appears once
	snapshot := rec.waitFor(t, 2)
	req.Equal([]domain.ParticipantID{"p1", "p2"}, domain.IDs(snapshot))

	cancel()
	req.NoError(<-done)
	req.True(sub.closed.Load())
}

func TestRosterSynchronizer_Exactly_One_Fallback_Read(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	source := mocks.NewMockFeedSource(ctrl)
	rec := newRecorder()

	// Given the first handshake fails and the second succeeds
	failing := newFakeSubscription(channelError())
	healthy := newFakeSubscription(subscribed(), event.ParticipantInserted{Participant: member("p2", "Bob")})
	gomock.InOrder(
		source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(failing, nil),
		source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(healthy, nil),
	)
	source.EXPECT().GetSession(gomock.Any(), gomock.Any()).Return(lobbySession(), nil).Times(2)
	// Then the baseline is read once at start and once as fallback
	gomock.InOrder(
		source.EXPECT().ListParticipants(gomock.Any(), gomock.Any()).
			Return([]domain.Participant{member("p1", "Ana")}, nil),
		source.EXPECT().ListParticipants(gomock.Any(), gomock.Any()).
			Return([]domain.Participant{member("p1", "Ana"), member("p3", "Cleo")}, nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), source, "abc123", 20*time.Millisecond).
		OnRosterChange(rec.roster)
	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- s.Run(ctx) }()

	// When the feed recovers the roster contains the fallback read plus live changes
	snapshot := rec.waitFor(t, 3)
	req.Equal([]domain.ParticipantID{"p1", "p2", "p3"}, domain.IDs(snapshot))
	req.GreaterOrEqual(time.Since(start), 20*time.Millisecond)
	req.True(failing.closed.Load())

	cancel()
	req.NoError(<-done)
}

func TestRosterSynchronizer_Second_Handshake_Failure_Escalates(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	source := mocks.NewMockFeedSource(ctrl)

	// Given both handshakes fail
	gomock.InOrder(
		source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(newFakeSubscription(channelError()), nil),
		source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(newFakeSubscription(
			event.StatusChanged{Session: "abc123", Status: event.StatusTimedOut}), nil),
	)
	source.EXPECT().GetSession(gomock.Any(), gomock.Any()).Return(lobbySession(), nil).Times(2)
	source.EXPECT().ListParticipants(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	// When the synchronizer runs
	err := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), source, "abc123", time.Millisecond).
		Run(context.Background())

	// Then it gives up after a single retry
	req.ErrorIs(err, errors.ErrSubscriptionFailure)
}

func TestRosterSynchronizer_Failed_Fallback_Read_Escalates(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	source := mocks.NewMockFeedSource(ctrl)
	retry := newFakeSubscription(subscribed())

	gomock.InOrder(
		source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(newFakeSubscription(channelError()), nil),
		source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(retry, nil),
	)
	source.EXPECT().GetSession(gomock.Any(), gomock.Any()).Return(lobbySession(), nil).Times(2)
	gomock.InOrder(
		source.EXPECT().ListParticipants(gomock.Any(), gomock.Any()).Return(nil, nil),
		source.EXPECT().ListParticipants(gomock.Any(), gomock.Any()).Return(nil, errors.ErrStoreUnavailable),
	)

	err := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), source, "abc123", time.Millisecond).
		Run(context.Background())

	req.ErrorIs(err, errors.ErrSubscriptionFailure)
	req.True(retry.closed.Load())
}

func TestRosterSynchronizer_Subscribe_Error_Retries_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	source := mocks.NewMockFeedSource(ctrl)
	rec := newRecorder()

	// Given the first subscription cannot be opened
	gomock.InOrder(
		source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(nil, errors.ErrStoreUnavailable),
		source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).
			Return(newFakeSubscription(subscribed(), event.ParticipantInserted{Participant: member("p2", "Bob")}), nil),
	)
	source.EXPECT().GetSession(gomock.Any(), gomock.Any()).Return(lobbySession(), nil).Times(2)
	source.EXPECT().ListParticipants(gomock.Any(), gomock.Any()).
		Return([]domain.Participant{member("p1", "Ana")}, nil).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), source, "abc123", time.Millisecond).
		OnRosterChange(rec.roster)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Then it recovers and keeps listening
	req.Equal([]domain.ParticipantID{"p1", "p2"}, domain.IDs(rec.waitFor(t, 2)))
	cancel()
	req.NoError(<-done)
}

func TestRosterSynchronizer_Phase_Change_Fires_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	source := mocks.NewMockFeedSource(ctrl)
	rec := newRecorder()

	started := lobbySession().Apply(domain.StartFields{
		ModeratorOrder:   []domain.ParticipantID{"p1"},
		Categories:       []domain.Category{"Art"},
		RoundAssignments: []domain.RoundAssignment{{Round: 1, Category: "Art", Question: "?"}},
		CurrentRound:     1,
		StartedAt:        time.Now().UTC(),
	})
	// Given the start is delivered twice, then someone is renamed
	sub := newFakeSubscription(subscribed(),
		event.SessionUpdated{State: started}, event.SessionUpdated{State: started},
		event.ParticipantUpdated{Participant: member("p1", "Anita")})
	source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(sub, nil)
	source.EXPECT().GetSession(gomock.Any(), gomock.Any()).Return(lobbySession(), nil)
	source.EXPECT().ListParticipants(gomock.Any(), gomock.Any()).
		Return([]domain.Participant{member("p1", "Ana")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), source, "abc123", time.Millisecond).
		OnRosterChange(rec.roster).
		OnPhaseChange(rec.phase)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	req.Eventually(func() bool {
		last := rec.last()
		return len(last) == 1 && last[0].DisplayName == "Anita"
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	req.NoError(<-done)

	// Then the phase callback fired exactly once
	req.Len(rec.started, 1)
	req.Equal(domain.PhaseActive, s.Phase())
}

func TestRosterSynchronizer_Baseline_Sees_Earlier_Start(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	source := mocks.NewMockFeedSource(ctrl)
	rec := newRecorder()
	started := lobbySession().Apply(domain.StartFields{
		ModeratorOrder:   []domain.ParticipantID{"p1"},
		Categories:       []domain.Category{"Art"},
		RoundAssignments: []domain.RoundAssignment{{Round: 1, Category: "Art", Question: "?"}},
		CurrentRound:     1,
		StartedAt:        time.Now().UTC(),
	})

	source.EXPECT().SubscribeParticipantChanges(gomock.Any(), gomock.Any()).Return(newFakeSubscription(subscribed()), nil)
	source.EXPECT().GetSession(gomock.Any(), gomock.Any()).Return(started, nil)
	source.EXPECT().ListParticipants(gomock.Any(), gomock.Any()).Return(nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), source, "abc123", time.Millisecond).
		OnRosterChange(rec.roster).
		OnPhaseChange(rec.phase)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	rec.waitFor(t, 0)
	cancel()
	req.NoError(<-done)
	req.Len(rec.started, 1)
}

var _ contract.Subscription = (*fakeSubscription)(nil)

func TestRosterSynchronizer_Ignores_Changes_Queued_Before_Baseline(t *testing.T) {
	req := require.New(t)
	feed, startFanout := laggingFeed(t)
	rec := newRecorder()

	// Given Ana joined and was removed while the fanout is behind
	lobby(t, feed, "abc123")
	ana := join(t, feed, "abc123", "Ana")
	_, err := feed.DeleteParticipant(context.Background(), "abc123", ana.ID)
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	synchronizer := NewRosterSynchronizer(logs.GetLoggerFromLevel(slog.LevelDebug), feed, "abc123", 10*time.Millisecond).
		OnRosterChange(rec.roster)
	done := make(chan error, 1)
	go func() { done <- synchronizer.Run(ctx) }()

	// When the baseline is read and the fanout catches up
	req.Empty(rec.waitFor(t, 0))
	startFanout()
	bob := join(t, feed, "abc123", "Bob")
	rec.waitFor(t, 1)

	// Then Ana never reappears
	rec.mu.Lock()
	for _, snapshot := range rec.snapshots {
		req.NotContains(domain.IDs(snapshot), ana.ID)
	}
	rec.mu.Unlock()
	req.Equal([]domain.ParticipantID{bob.ID}, domain.IDs(synchronizer.Roster()))

	cancel()
	req.NoError(<-done)
}
