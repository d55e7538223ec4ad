package repositories

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"trivia-lab/domain"
	"trivia-lab/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T) *SessionRepository {
	return NewSessionRepository(openInMemory(t), logs.GetLoggerFromLevel(slog.LevelDebug))
}

func startFields(ids ...domain.ParticipantID) domain.StartFields {
	return domain.StartFields{
		ModeratorOrder:   ids,
		Categories:       []domain.Category{"Art", "Music"},
		RoundAssignments: []domain.RoundAssignment{{Round: 1, Category: "Art", Question: "q1"}, {Round: 2, Category: "Music", Question: "q2"}},
		CurrentRound:     1,
		StartedAt:        time.Now().UTC(),
	}
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t)
	owner := domain.UserID("user-1")
	session := domain.NewSession("abc123", "Friday quiz", &owner, time.Now().UTC())

	id, err := repository.CreateSession(ctx, session)
	req.NoError(err)
	req.Equal(session.ID, id)

	fetched, err := repository.GetSession(ctx, id)
	req.NoError(err)
	req.Equal(session, fetched)

	// When the same token is reused
	_, err = repository.CreateSession(ctx, session)
	req.ErrorIs(err, errors.ErrSessionAlreadyExists)

	_, err = repository.GetSession(ctx, "zzz999")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestSessionRepository_CreateRejectsInvalidSession(t *testing.T) {
	repository := newRepository(t)
	_, err := repository.CreateSession(context.Background(), domain.NewSession("abc123", "", nil, time.Now()))
	require.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSessionRepository_UpdateSessionConditional(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t)
	_, err := repository.CreateSession(ctx, domain.NewSession("abc123", "quiz", nil, time.Now().UTC()))
	req.NoError(err)

	// When the session is moved out of the lobby
	updated, err := repository.UpdateSessionConditional(ctx, "abc123", domain.PhaseLobby, startFields("p1", "p2"))
	req.NoError(err)
	req.Equal(domain.PhaseActive, updated.Phase)

	fetched, err := repository.GetSession(ctx, "abc123")
	req.NoError(err)
	req.Equal(updated, fetched)

	// Then a second transition fails the condition and leaves the record untouched
	_, err = repository.UpdateSessionConditional(ctx, "abc123", domain.PhaseLobby, startFields("p3", "p4"))
	req.ErrorIs(err, errors.ErrConditionFailed)
	fetched, err = repository.GetSession(ctx, "abc123")
	req.NoError(err)
	req.Equal([]domain.ParticipantID{"p1", "p2"}, fetched.ModeratorOrder)

	_, err = repository.UpdateSessionConditional(ctx, "nope00", domain.PhaseLobby, startFields("p1"))
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestSessionRepository_ConcurrentConditionalUpdates(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t)
	_, err := repository.CreateSession(ctx, domain.NewSession("abc123", "quiz", nil, time.Now().UTC()))
	req.NoError(err)

	const writers = 10
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repository.UpdateSessionConditional(ctx, "abc123", domain.PhaseLobby, startFields("p1", "p2"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		req.ErrorIs(err, errors.ErrConditionFailed)
	}
	req.Equal(1, succeeded)
}

func TestSessionRepository_Participants(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t)
	_, err := repository.CreateSession(ctx, domain.NewSession("abc123", "quiz", nil, time.Now().UTC()))
	req.NoError(err)

	at := time.Now().UTC()
	names := []string{"Clara", "Alice", "Bob"}
	var inserted []domain.Participant
	for i, name := range names {
		p, err := repository.InsertParticipant(ctx, domain.Participant{
			SessionID:   "abc123",
			DisplayName: name,
			CreatedAt:   at.Add(time.Duration(i) * time.Second),
		})
		req.NoError(err)
		req.NotEmpty(p.ID)
		inserted = append(inserted, p)
	}

	// Then the participants come back in join order
	listed, err := repository.ListParticipants(ctx, "abc123")
	req.NoError(err)
	req.Equal(inserted, listed)

	// When a participant is renamed
	renamed, err := repository.UpdateParticipant(ctx, domain.Participant{
		ID: inserted[1].ID, SessionID: "abc123", DisplayName: "Alicia",
	})
	req.NoError(err)
	req.Equal("Alicia", renamed.DisplayName)
	req.Equal(inserted[1].CreatedAt, renamed.CreatedAt)

	// When a participant is removed
	deleted, err := repository.DeleteParticipant(ctx, "abc123", inserted[0].ID)
	req.NoError(err)
	req.Equal(inserted[0].ID, deleted.ID)
	listed, err = repository.ListParticipants(ctx, "abc123")
	req.NoError(err)
	req.Len(listed, 2)

	_, err = repository.DeleteParticipant(ctx, "abc123", inserted[0].ID)
	req.ErrorIs(err, errors.ErrNotFound)
	_, err = repository.UpdateParticipant(ctx, domain.Participant{ID: "ghost", SessionID: "abc123", DisplayName: "x"})
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestSessionRepository_ParticipantsAreScopedBySession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t)
	for _, id := range []domain.SessionID{"abc123", "abc124"} {
		_, err := repository.CreateSession(ctx, domain.NewSession(id, "quiz", nil, time.Now().UTC()))
		req.NoError(err)
		_, err = repository.InsertParticipant(ctx, domain.Participant{SessionID: id, DisplayName: "P", CreatedAt: time.Now().UTC()})
		req.NoError(err)
	}
	listed, err := repository.ListParticipants(ctx, "abc123")
	req.NoError(err)
	req.Len(listed, 1)
	req.Equal(domain.SessionID("abc123"), listed[0].SessionID)
}

func TestSessionRepository_InsertParticipant_Rejections(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := newRepository(t)

	// Given no session
	_, err := repository.InsertParticipant(ctx, domain.Participant{SessionID: "abc123", DisplayName: "Alice"})
	req.ErrorIs(err, errors.ErrNotFound)

	// Given a session already started
	_, err = repository.CreateSession(ctx, domain.NewSession("abc123", "quiz", nil, time.Now().UTC()))
	req.NoError(err)
	_, err = repository.UpdateSessionConditional(ctx, "abc123", domain.PhaseLobby, startFields("p1", "p2"))
	req.NoError(err)

	_, err = repository.InsertParticipant(ctx, domain.Participant{SessionID: "abc123", DisplayName: "Late"})
	req.ErrorIs(err, errors.ErrAlreadyStarted)
}

func TestSessionRepository_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRepository(t).GetSession(ctx, "abc123")
	require.ErrorIs(t, err, context.Canceled)
}
