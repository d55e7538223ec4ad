package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trivia-lab/auth"
	"trivia-lab/contract"
	"trivia-lab/domain"
	"trivia-lab/errors"
	"trivia-lab/lifecycle"
	"trivia-lab/moderation"
	"trivia-lab/repositories"

	"github.com/samber/lo"
)

// maxIDAttempts bounds session id draws when the store reports a collision.
const maxIDAttempts = 5

// Joined is a participant together with the signed handle it resumes with.
type Joined struct {
	Participant domain.Participant
	Handle      string
}

// StartResult tells whether this call made the transition.
type StartResult struct {
	Session        domain.Session
	AlreadyStarted bool
}

type IGameService interface {
	CreateSession(ctx context.Context, authority domain.Authority, name string) (domain.Session, error)
	GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error)
	ListParticipants(ctx context.Context, id domain.SessionID) ([]domain.Participant, error)
	Join(ctx context.Context, authority domain.Authority, cmd domain.JoinSessionCommand) (Joined, error)
	Rename(ctx context.Context, authority domain.Authority, cmd domain.RenameParticipantCommand) (domain.Participant, error)
	Remove(ctx context.Context, authority domain.Authority, cmd domain.RemoveParticipantCommand) error
	StartGame(ctx context.Context, authority domain.Authority, cmd domain.StartGameCommand) (StartResult, error)
	Subscribe(ctx context.Context, id domain.SessionID) (contract.Subscription, error)
}

type GameService struct {
	log        *slog.Logger
	repository repositories.ISessionRepository
	feed       contract.FeedSource
	controller *lifecycle.Controller
	moderator  *moderation.Moderator
	tokens     *auth.TokenIssuer
	catalog    []domain.Category
	now        func() time.Time
}

func NewGameService(log *slog.Logger, repository repositories.ISessionRepository, feed contract.FeedSource,
	controller *lifecycle.Controller, moderator *moderation.Moderator, tokens *auth.TokenIssuer,
	catalog []domain.Category) *GameService {
	if len(catalog) == 0 {
		catalog = domain.DefaultCatalog
	}
	return &GameService{
		log:        log,
		repository: repository,
		feed:       feed,
		controller: controller,
		moderator:  moderator,
		tokens:     tokens,
		catalog:    catalog,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession opens a lobby owned by the authenticated caller.
func (s *GameService) CreateSession(ctx context.Context, authority domain.Authority, name string) (domain.Session, error) {
	principal, ok := domain.PrincipalOf(authority)
	if !ok {
		return domain.Session{}, errors.ErrUnauthenticated
	}
	name = strings.TrimSpace(name)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		cmd := domain.CreateSessionCommand{ID: domain.NewSessionID(), Name: name}
		if err := auth.ValidateCommand(cmd); err != nil {
			return domain.Session{}, err
		}
		session := domain.NewSession(cmd.ID, cmd.Name, &principal, s.now())
		_, err := s.repository.CreateSession(ctx, session)
		if stderrors.Is(err, errors.ErrSessionAlreadyExists) {
			s.log.Debug("Session id collision, drawing again", "session_id", cmd.ID)
			continue
		}
		if err != nil {
			return domain.Session{}, err
		}
		s.log.Info("Session created", "session_id", session.ID, "owner", principal)
		return session, nil
	}
	return domain.Session{}, fmt.Errorf("%w: no free session id after %d attempts",
		errors.ErrSessionAlreadyExists, maxIDAttempts)
}

func (s *GameService) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	return s.repository.GetSession(ctx, id)
}

func (s *GameService) ListParticipants(ctx context.Context, id domain.SessionID) ([]domain.Participant, error) {
	if _, err := s.repository.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.repository.ListParticipants(ctx, id)
}

// Join adds a participant to a lobby and returns its signed handle.
// A caller whose handle already names a participant of this session gets that
// participant back instead of a new one.
func (s *GameService) Join(ctx context.Context, authority domain.Authority, cmd domain.JoinSessionCommand) (Joined, error) {
	cmd.DisplayName = s.moderator.CleanName(cmd.DisplayName)
	if err := auth.ValidateCommand(cmd); err != nil {
		return Joined{}, err
	}
	session, err := s.repository.GetSession(ctx, cmd.SessionID)
	if err != nil {
		return Joined{}, err
	}

	if handle, ok := domain.HandleOf(authority); ok && handle.SessionID == session.ID {
		participants, err := s.repository.ListParticipants(ctx, session.ID)
		if err != nil {
			return Joined{}, err
		}
		if existing, found := lo.Find(participants, func(p domain.Participant) bool {
			return p.ID == handle.ParticipantID
		}); found {
			return s.joined(existing, handle.IsOwner)
		}
	}
	if session.IsActive() {
		return Joined{}, errors.ErrAlreadyStarted
	}

	participant := domain.Participant{
		SessionID:   session.ID,
		DisplayName: cmd.DisplayName,
		CreatedAt:   s.now(),
	}
	isOwner := false
	if principal, ok := domain.PrincipalOf(authority); ok && session.IsOwnedBy(principal) {
		participant.OwnerIdentity = &principal
		isOwner = true
	}
	inserted, err := s.repository.InsertParticipant(ctx, participant)
	if err != nil {
		return Joined{}, err
	}
	s.log.Info("Participant joined", "session_id", session.ID, "participant_id", inserted.ID, "owner", isOwner)
	return s.joined(inserted, isOwner)
}

func (s *GameService) joined(participant domain.Participant, isOwner bool) (Joined, error) {
	handle, err := s.tokens.IssueHandle(domain.LocalHandle{
		SessionID:     participant.SessionID,
		ParticipantID: participant.ID,
		IsOwner:       isOwner,
	})
	if err != nil {
		return Joined{}, err
	}
	return Joined{Participant: participant, Handle: handle}, nil
}

// Rename lets a participant change its own name.
func (s *GameService) Rename(ctx context.Context, authority domain.Authority,
	cmd domain.RenameParticipantCommand) (domain.Participant, error) {
	cmd.DisplayName = s.moderator.CleanName(cmd.DisplayName)
	if err := auth.ValidateCommand(cmd); err != nil {
		return domain.Participant{}, err
	}
	handle, ok := domain.HandleOf(authority)
	if !ok || handle.SessionID != cmd.SessionID || handle.ParticipantID != cmd.ParticipantID {
		return domain.Participant{}, fmt.Errorf("%w: only the participant can rename itself", errors.ErrUnauthenticated)
	}
	return s.repository.UpdateParticipant(ctx, domain.Participant{
		ID:          cmd.ParticipantID,
		SessionID:   cmd.SessionID,
		DisplayName: cmd.DisplayName,
	})
}

// Remove lets a participant leave, or the organizer remove someone from the lobby.
func (s *GameService) Remove(ctx context.Context, authority domain.Authority, cmd domain.RemoveParticipantCommand) error {
	if err := auth.ValidateCommand(cmd); err != nil {
		return err
	}
	if authority == nil {
		return errors.ErrUnauthenticated
	}
	session, err := s.repository.GetSession(ctx, cmd.SessionID)
	if err != nil {
		return err
	}
	handle, hasHandle := domain.HandleOf(authority)
	self := hasHandle && handle.SessionID == cmd.SessionID && handle.ParticipantID == cmd.ParticipantID
	if !self && !authority.IsOrganizer(session) {
		return errors.ErrNotOrganizer
	}
	if !self && session.IsActive() {
		return errors.ErrAlreadyStarted
	}
	if _, err := s.repository.DeleteParticipant(ctx, cmd.SessionID, cmd.ParticipantID); err != nil {
		return err
	}
	s.log.Info("Participant removed", "session_id", cmd.SessionID, "participant_id", cmd.ParticipantID, "self", self)
	return nil
}

// StartGame checks the organizer then runs the lobby to active transition.
// An empty roster means everybody currently in the lobby; ids that are not
// participants of the session are ignored.
// Losing a start race is reported as AlreadyStarted with the committed session.
func (s *GameService) StartGame(ctx context.Context, authority domain.Authority,
	cmd domain.StartGameCommand) (StartResult, error) {
	if err := auth.ValidateCommand(cmd); err != nil {
		return StartResult{}, err
	}
	if authority == nil {
		return StartResult{}, errors.ErrUnauthenticated
	}
	session, err := s.repository.GetSession(ctx, cmd.SessionID)
	if err != nil {
		return StartResult{}, err
	}
	if !authority.IsOrganizer(session) {
		return StartResult{}, errors.ErrNotOrganizer
	}
	if session.IsActive() {
		return StartResult{Session: session, AlreadyStarted: true}, nil
	}

	participants, err := s.repository.ListParticipants(ctx, cmd.SessionID)
	if err != nil {
		return StartResult{}, err
	}
	known := domain.IDs(participants)
	roster := known
	if len(cmd.Roster) > 0 {
		roster = lo.Filter(lo.Uniq(cmd.Roster), func(id domain.ParticipantID, _ int) bool {
			return lo.Contains(known, id)
		})
	}

	started, err := s.controller.Start(ctx, cmd.SessionID, roster, s.catalog)
	if stderrors.Is(err, errors.ErrAlreadyStarted) {
		committed, getErr := s.repository.GetSession(ctx, cmd.SessionID)
		if getErr != nil {
			return StartResult{}, getErr
		}
		return StartResult{Session: committed, AlreadyStarted: true}, nil
	}
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{Session: started}, nil
}

func (s *GameService) Subscribe(ctx context.Context, id domain.SessionID) (contract.Subscription, error) {
	return s.feed.SubscribeParticipantChanges(ctx, id)
}
