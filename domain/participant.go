// Package domain contains core concepts of the trivia game.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// MaxDisplayNameLength bounds a participant name, in runes.
const MaxDisplayNameLength = 20

type ParticipantID string

func (id ParticipantID) String() string { return string(id) }

// Participant is one joined player within a session.
// SessionID never changes after creation.
type Participant struct {
	ID            ParticipantID
	SessionID     SessionID
	DisplayName   string
	OwnerIdentity *UserID
	CreatedAt     time.Time
}

// IDs extracts participant ids, preserving order.
func IDs(participants []Participant) []ParticipantID {
	ids := make([]ParticipantID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	return ids
}
