// Package lifecycle drives the lobby to active transition of a session.
package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"trivia-lab/allocation"
	"trivia-lab/domain"
	"trivia-lab/errors"
	"trivia-lab/repositories"

	"github.com/samber/lo"
)

// MinParticipants is the smallest roster a game can start with.
const MinParticipants = 2

// Controller starts sessions. Callers check the organizer beforehand.
// It writes once per attempt and never notifies anybody: the store's change
// feed publishes the committed session.
type Controller struct {
	log             *slog.Logger
	repository      repositories.ISessionRepository
	allocator       *allocation.Allocator
	minParticipants int
	now             func() time.Time
}

func NewController(log *slog.Logger, repository repositories.ISessionRepository,
	allocator *allocation.Allocator, minParticipants int) *Controller {
	return &Controller{
		log:             log,
		repository:      repository,
		allocator:       allocator,
		minParticipants: max(minParticipants, MinParticipants),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Start moves the session from lobby to active with a freshly allocated
// moderator order and category plan.
// Exactly one of several concurrent callers succeeds; the others get
// errors.ErrAlreadyStarted.
func (c *Controller) Start(ctx context.Context, sessionID domain.SessionID,
	roster []domain.ParticipantID, catalog []domain.Category) (domain.Session, error) {
	roster = lo.Uniq(roster)
	if len(roster) < c.minParticipants {
		return domain.Session{}, fmt.Errorf("%w: %d joined, %d needed",
			errors.ErrInsufficientParticipants, len(roster), c.minParticipants)
	}
	plan, err := c.allocator.Allocate(roster, catalog)
	if err != nil {
		return domain.Session{}, err
	}

	session, err := c.repository.UpdateSessionConditional(ctx, sessionID, domain.PhaseLobby, domain.StartFields{
		ModeratorOrder:   plan.ModeratorOrder,
		Categories:       plan.Categories,
		RoundAssignments: plan.RoundAssignments,
		CurrentRound:     1,
		StartedAt:        c.now(),
	})
	if stderrors.Is(err, errors.ErrConditionFailed) {
		c.log.Info("Session already started", "session_id", sessionID)
		return domain.Session{}, errors.ErrAlreadyStarted
	}
	if err != nil {
		return domain.Session{}, err
	}

	c.log.Info("Session started", "session_id", sessionID,
		"participants", len(plan.ModeratorOrder), "rounds", len(plan.RoundAssignments))
	return session, nil
}
