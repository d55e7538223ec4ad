// Package wire holds the JSON shapes shared by the HTTP server and its client.
package wire

import (
	"fmt"
	"time"

	"trivia-lab/domain"
	"trivia-lab/domain/event"

	"github.com/samber/lo"
)

type Participant struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	DisplayName   string    `json:"display_name"`
	OwnerIdentity *string   `json:"owner_identity,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type RoundAssignment struct {
	Round    int    `json:"round"`
	Category string `json:"category"`
	Question string `json:"question"`
}

type Session struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	OwnerIdentity    *string           `json:"owner_identity,omitempty"`
	Phase            string            `json:"phase"`
	ModeratorOrder   []string          `json:"moderator_order,omitempty"`
	Categories       []string          `json:"categories,omitempty"`
	RoundAssignments []RoundAssignment `json:"round_assignments,omitempty"`
	CurrentRound     int               `json:"current_round,omitempty"`
	CurrentModerator string            `json:"current_moderator,omitempty"`
	InvitePath       string            `json:"invite_path"`
	CreatedAt        time.Time         `json:"created_at"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
}

type Credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type CreateSessionRequest struct {
	Name string `json:"name" binding:"required"`
}

type JoinRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

type JoinResponse struct {
	Participant Participant `json:"participant"`
	Handle      string      `json:"handle"`
}

type RenameRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

type StartRequest struct {
	Roster []string `json:"roster"`
}

type StartResponse struct {
	Session        Session `json:"session"`
	AlreadyStarted bool    `json:"already_started"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

const (
	TypeParticipantInserted = "participant_inserted"
	TypeParticipantUpdated  = "participant_updated"
	TypeParticipantDeleted  = "participant_deleted"
	TypeSessionUpdated      = "session_updated"
	TypeStatus              = "status"
)

// Event is one frame of the change feed.
type Event struct {
	Type          string       `json:"type"`
	SessionID     string       `json:"session_id"`
	Participant   *Participant `json:"participant,omitempty"`
	ParticipantID string       `json:"participant_id,omitempty"`
	Session       *Session     `json:"session,omitempty"`
	Status        string       `json:"status,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

func FromParticipant(p domain.Participant) Participant {
	return Participant{
		ID:            string(p.ID),
		SessionID:     string(p.SessionID),
		DisplayName:   p.DisplayName,
		OwnerIdentity: fromUser(p.OwnerIdentity),
		CreatedAt:     p.CreatedAt,
	}
}

func (p Participant) ToDomain() domain.Participant {
	return domain.Participant{
		ID:            domain.ParticipantID(p.ID),
		SessionID:     domain.SessionID(p.SessionID),
		DisplayName:   p.DisplayName,
		OwnerIdentity: toUser(p.OwnerIdentity),
		CreatedAt:     p.CreatedAt,
	}
}

func FromParticipants(participants []domain.Participant) []Participant {
	return lo.Map(participants, func(p domain.Participant, _ int) Participant { return FromParticipant(p) })
}

func ToParticipants(participants []Participant) []domain.Participant {
	return lo.Map(participants, func(p Participant, _ int) domain.Participant { return p.ToDomain() })
}

func FromSession(s domain.Session) Session {
	out := Session{
		ID:            string(s.ID),
		Name:          s.Name,
		OwnerIdentity: fromUser(s.OwnerIdentity),
		Phase:         string(s.Phase),
		CurrentRound:  s.CurrentRound,
		InvitePath:    s.InvitePath(),
		CreatedAt:     s.CreatedAt,
		StartedAt:     s.StartedAt,
	}
	if len(s.ModeratorOrder) > 0 {
		out.ModeratorOrder = lo.Map(s.ModeratorOrder, func(id domain.ParticipantID, _ int) string { return string(id) })
	}
	if len(s.Categories) > 0 {
		out.Categories = lo.Map(s.Categories, func(c domain.Category, _ int) string { return string(c) })
	}
	if len(s.RoundAssignments) > 0 {
		out.RoundAssignments = lo.Map(s.RoundAssignments, func(a domain.RoundAssignment, _ int) RoundAssignment {
			return RoundAssignment{Round: a.Round, Category: string(a.Category), Question: a.Question}
		})
	}
	if moderator, ok := s.CurrentModerator(); ok {
		out.CurrentModerator = string(moderator)
	}
	return out
}

func (s Session) ToDomain() domain.Session {
	out := domain.Session{
		ID:            domain.SessionID(s.ID),
		Name:          s.Name,
		OwnerIdentity: toUser(s.OwnerIdentity),
		Phase:         domain.Phase(s.Phase),
		CurrentRound:  s.CurrentRound,
		CreatedAt:     s.CreatedAt,
		StartedAt:     s.StartedAt,
	}
	if len(s.ModeratorOrder) > 0 {
		out.ModeratorOrder = lo.Map(s.ModeratorOrder, func(id string, _ int) domain.ParticipantID { return domain.ParticipantID(id) })
	}
	if len(s.Categories) > 0 {
		out.Categories = lo.Map(s.Categories, func(c string, _ int) domain.Category { return domain.Category(c) })
	}
	if len(s.RoundAssignments) > 0 {
		out.RoundAssignments = lo.Map(s.RoundAssignments, func(a RoundAssignment, _ int) domain.RoundAssignment {
			return domain.RoundAssignment{Round: a.Round, Category: domain.Category(a.Category), Question: a.Question}
		})
	}
	return out
}

// FromEvent encodes a change event as a feed frame.
func FromEvent(e event.ChangeEvent) (Event, error) {
	out := Event{SessionID: string(e.SessionID())}
	switch evt := e.(type) {
	case event.ParticipantInserted:
		p := FromParticipant(evt.Participant)
		out.Type, out.Participant = TypeParticipantInserted, &p
	case event.ParticipantUpdated:
		p := FromParticipant(evt.Participant)
		out.Type, out.Participant = TypeParticipantUpdated, &p
	case event.ParticipantDeleted:
		out.Type, out.ParticipantID = TypeParticipantDeleted, string(evt.ParticipantID)
	case event.SessionUpdated:
		s := FromSession(evt.State)
		out.Type, out.Session = TypeSessionUpdated, &s
	case event.StatusChanged:
		out.Type, out.Status, out.Reason = TypeStatus, string(evt.Status), evt.Reason
	default:
		return Event{}, fmt.Errorf("unsupported change event %T", e)
	}
	return out, nil
}

// ToEvent decodes a feed frame.
func (e Event) ToEvent() (event.ChangeEvent, error) {
	sessionID := domain.SessionID(e.SessionID)
	switch e.Type {
	case TypeParticipantInserted, TypeParticipantUpdated:
		if e.Participant == nil {
			return nil, fmt.Errorf("%s frame without participant", e.Type)
		}
		p := e.Participant.ToDomain()
		if e.Type == TypeParticipantInserted {
			return event.ParticipantInserted{Participant: p}, nil
		}
		return event.ParticipantUpdated{Participant: p}, nil
	case TypeParticipantDeleted:
		return event.ParticipantDeleted{Session: sessionID, ParticipantID: domain.ParticipantID(e.ParticipantID)}, nil
	case TypeSessionUpdated:
		if e.Session == nil {
			return nil, fmt.Errorf("%s frame without session", e.Type)
		}
		return event.SessionUpdated{State: e.Session.ToDomain()}, nil
	case TypeStatus:
		return event.StatusChanged{Session: sessionID, Status: event.SubscriptionStatus(e.Status), Reason: e.Reason}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", e.Type)
	}
}

func fromUser(u *domain.UserID) *string {
	if u == nil {
		return nil
	}
	s := string(*u)
	return &s
}

func toUser(s *string) *domain.UserID {
	if s == nil {
		return nil
	}
	u := domain.UserID(*s)
	return &u
}
