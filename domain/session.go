// Package domain contains core concepts of the trivia game.
// This file defines the Session aggregate and its phase invariants.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"time"
)

// SessionIDLength is the number of characters of a session token.
const SessionIDLength = 6

const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var sessionIDPattern = regexp.MustCompile(`^[a-z0-9]{6}$`)

type SessionID string

// NewSessionID draws a short URL-safe token from crypto/rand.
// Collisions are rejected by the store at creation time.
func NewSessionID() SessionID {
	// Bytes at or above the largest multiple of the alphabet size are rejected to keep the draw uniform.
	limit := byte(256 / len(sessionIDAlphabet) * len(sessionIDAlphabet))
	id := make([]byte, 0, SessionIDLength)
	buf := make([]byte, 2*SessionIDLength)
	for len(id) < SessionIDLength {
		_, _ = rand.Read(buf)
		for _, c := range buf {
			if c < limit && len(id) < SessionIDLength {
				id = append(id, sessionIDAlphabet[int(c)%len(sessionIDAlphabet)])
			}
		}
	}
	return SessionID(id)
}

func (id SessionID) Valid() bool {
	return sessionIDPattern.MatchString(string(id))
}

func (id SessionID) String() string { return string(id) }

type Phase string

const (
	PhaseLobby  Phase = "lobby"
	PhaseActive Phase = "active"
)

type UserID string

type Category string

// RoundAssignment binds a round number to its category and question.
type RoundAssignment struct {
	Round    int
	Category Category
	Question string
}

// Session is one instance of the game.
// ModeratorOrder, Categories, RoundAssignments and CurrentRound are written
// together by the lobby to active transition and never partially.
type Session struct {
	ID               SessionID
	Name             string
	OwnerIdentity    *UserID
	Phase            Phase
	ModeratorOrder   []ParticipantID
	Categories       []Category
	RoundAssignments []RoundAssignment
	CurrentRound     int
	CreatedAt        time.Time
	StartedAt        *time.Time
}

// StartFields is the atomic payload of the lobby to active transition.
type StartFields struct {
	ModeratorOrder   []ParticipantID
	Categories       []Category
	RoundAssignments []RoundAssignment
	CurrentRound     int
	StartedAt        time.Time
}

func NewSession(id SessionID, name string, owner *UserID, at time.Time) Session {
	return Session{
		ID:            id,
		Name:          name,
		OwnerIdentity: owner,
		Phase:         PhaseLobby,
		CreatedAt:     at,
	}
}

// Apply returns a copy of the session moved to the active phase.
func (s Session) Apply(fields StartFields) Session {
	startedAt := fields.StartedAt
	s.Phase = PhaseActive
	s.ModeratorOrder = fields.ModeratorOrder
	s.Categories = fields.Categories
	s.RoundAssignments = fields.RoundAssignments
	s.CurrentRound = fields.CurrentRound
	s.StartedAt = &startedAt
	return s
}

// Validate checks the all-or-nothing invariant on the start fields.
func (s Session) Validate() error {
	if !s.ID.Valid() {
		return fmt.Errorf("invalid session id %q", s.ID)
	}
	if s.Name == "" {
		return fmt.Errorf("session %s has an empty name", s.ID)
	}
	switch s.Phase {
	case PhaseLobby:
		if len(s.ModeratorOrder) != 0 || len(s.Categories) != 0 ||
			len(s.RoundAssignments) != 0 || s.CurrentRound != 0 {
			return fmt.Errorf("session %s is in lobby with start fields set", s.ID)
		}
	case PhaseActive:
		if len(s.ModeratorOrder) == 0 || len(s.Categories) == 0 || s.CurrentRound < 1 {
			return fmt.Errorf("session %s is active without start fields", s.ID)
		}
		if len(s.RoundAssignments) != len(s.Categories) {
			return fmt.Errorf("session %s has %d assignments for %d categories",
				s.ID, len(s.RoundAssignments), len(s.Categories))
		}
	default:
		return fmt.Errorf("session %s has unknown phase %q", s.ID, s.Phase)
	}
	return nil
}

func (s Session) IsActive() bool { return s.Phase == PhaseActive }

// CurrentModerator returns the participant presiding over the current round.
// Rotation wraps when there are more rounds than participants.
func (s Session) CurrentModerator() (ParticipantID, bool) {
	if s.Phase != PhaseActive || len(s.ModeratorOrder) == 0 || s.CurrentRound < 1 {
		return "", false
	}
	return s.ModeratorOrder[(s.CurrentRound-1)%len(s.ModeratorOrder)], true
}

// InvitePath is the path shared with other players to join the lobby.
func (s Session) InvitePath() string {
	return fmt.Sprintf("/sessions/%s/participants", s.ID)
}

// IsOwnedBy reports whether the given principal created the session.
func (s Session) IsOwnedBy(user UserID) bool {
	return s.OwnerIdentity != nil && *s.OwnerIdentity == user
}
