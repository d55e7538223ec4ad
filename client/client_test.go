package client

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"trivia-lab/domain"
	"trivia-lab/domain/event"
	"trivia-lab/errors"
	"trivia-lab/internal"
	"trivia-lab/runtime"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)

	app, err := internal.NewApp(log, db, internal.Config{
		BufferSize:           64,
		SubscriberBufferSize: 32,
		SinkTimeout:          time.Second,
		RestartInterval:      10 * time.Millisecond,
		RoundCount:           8,
		MinParticipants:      2,
		JWTSecret:            "secret",
		AuthTokenDuration:    time.Hour,
		HandleTokenDuration:  time.Hour,
		CharReplacement:      "*",
	})
	require.NoError(t, err)
	app.Start(context.Background())
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		srv.Close()
		app.Stop()
		_ = db.Close()
	})
	return New(log, srv.URL, 5*time.Second, 32)
}

func organizer(t *testing.T, c *Client) *Client {
	t.Helper()
	token, err := c.Register(context.Background(), "owner@example.com", "secret-password")
	require.NoError(t, err)
	return c.WithBearer(token)
}

func nextEvent(t *testing.T, sub interface{ Events() <-chan event.ChangeEvent }) event.ChangeEvent {
	t.Helper()
	select {
	case e := <-sub.Events():
		return e
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no event received in time")
		return nil
	}
}

func TestClient_Errors_Map_Back_To_Sentinels(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := newClient(t)

	_, err := c.CreateSession(ctx, "Quiz")
	req.ErrorIs(err, errors.ErrUnauthenticated)

	_, err = c.GetSession(ctx, "zzz999")
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = c.Register(ctx, "not-an-email", "secret-password")
	req.ErrorIs(err, errors.ErrInvalidPassword)

	_, err = c.Login(ctx, "nobody@example.com", "secret-password")
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	_, err = c.SubscribeParticipantChanges(ctx, "zzz999")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestClient_Lobby_Round_Trip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := newClient(t)
	owner := organizer(t, c)

	// Given a lobby with two players
	session, err := owner.CreateSession(ctx, "Friday quiz")
	req.NoError(err)
	req.Equal(domain.PhaseLobby, session.Phase)
	ana, anaHandle, err := c.Join(ctx, session.ID, "Ana")
	req.NoError(err)
	ben, _, err := c.Join(ctx, session.ID, "Ben")
	req.NoError(err)

	// When Ana resumes with her handle she keeps her seat
	resumed, _, err := c.WithHandle(anaHandle).Join(ctx, session.ID, "Ana again")
	req.NoError(err)
	req.Equal(ana.ID, resumed.ID)

	renamed, err := c.WithHandle(anaHandle).Rename(ctx, session.ID, ana.ID, "Anita")
	req.NoError(err)
	req.Equal("Anita", renamed.DisplayName)

	// Then only the organizer can start
	_, _, err = c.WithHandle(anaHandle).Start(ctx, session.ID, nil)
	req.ErrorIs(err, errors.ErrNotOrganizer)

	active, alreadyStarted, err := owner.Start(ctx, session.ID, []domain.ParticipantID{ana.ID, ben.ID, ana.ID})
	req.NoError(err)
	req.False(alreadyStarted)
	req.ElementsMatch([]domain.ParticipantID{ana.ID, ben.ID}, active.ModeratorOrder)
	req.Len(active.Categories, 8)
	req.NoError(active.Validate())

	_, alreadyStarted, err = owner.Start(ctx, session.ID, nil)
	req.NoError(err)
	req.True(alreadyStarted)

	_, _, err = c.Join(ctx, session.ID, "Carl")
	req.ErrorIs(err, errors.ErrAlreadyStarted)

	roster, err := c.ListParticipants(ctx, session.ID)
	req.NoError(err)
	req.Len(roster, 2)
}

func TestClient_Subscription_Delivers_In_Commit_Order(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	c := newClient(t)
	owner := organizer(t, c)
	session, err := owner.CreateSession(ctx, "Quiz")
	req.NoError(err)

	sub, err := c.SubscribeParticipantChanges(ctx, session.ID)
	req.NoError(err)
	defer sub.Close()
	status, ok := nextEvent(t, sub).(event.StatusChanged)
	req.True(ok)
	req.True(status.Healthy())

	// When a player joins, leaves, and the game cannot start
	ana, handle, err := c.Join(ctx, session.ID, "Ana")
	req.NoError(err)
	req.NoError(c.WithHandle(handle).Remove(ctx, session.ID, ana.ID))

	// Then the feed replays both changes
	inserted, ok := nextEvent(t, sub).(event.ParticipantInserted)
	req.True(ok)
	req.Equal(ana.ID, inserted.Participant.ID)
	deleted, ok := nextEvent(t, sub).(event.ParticipantDeleted)
	req.True(ok)
	req.Equal(ana.ID, deleted.ParticipantID)

	// And closing ends the stream
	sub.Close()
	sub.Close()
}

func TestClient_Remote_Roster_Synchronizer(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := newClient(t)
	owner := organizer(t, c)
	session, err := owner.CreateSession(ctx, "Quiz")
	req.NoError(err)

	// Given a synchronizer following the lobby over the network
	var mu sync.Mutex
	var lastRoster []domain.Participant
	phases := make(chan domain.Session, 4)
	synchronizer := runtime.NewRosterSynchronizer(c.log, c, session.ID, 50*time.Millisecond).
		OnRosterChange(func(roster []domain.Participant) {
			mu.Lock()
			defer mu.Unlock()
			lastRoster = roster
		}).
		OnPhaseChange(func(s domain.Session) { phases <- s })
	done := make(chan error, 1)
	go func() { done <- synchronizer.Run(ctx) }()

	// When three players join and the organizer starts
	var ids []domain.ParticipantID
	for _, name := range []string{"Ana", "Ben", "Carl"} {
		p, _, err := c.Join(ctx, session.ID, name)
		req.NoError(err)
		ids = append(ids, p.ID)
	}
	active, _, err := owner.Start(ctx, session.ID, ids)
	req.NoError(err)

	// Then the synchronizer sees the start once, with the full roster
	select {
	case s := <-phases:
		req.Equal(active.ModeratorOrder, s.ModeratorOrder)
	case <-time.After(3 * time.Second):
		req.FailNow("phase change never observed")
	}
	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lastRoster) == 3
	}, 2*time.Second, 10*time.Millisecond)
	req.Equal(domain.PhaseActive, synchronizer.Phase())

	cancel()
	req.NoError(<-done)
	req.Empty(phases)
}
