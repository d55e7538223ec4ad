// Package projection builds local views from observed change events.
// Views are idempotent: replaying an event leaves them unchanged.
// They never emit events or touch the store.
package projection

import (
	"slices"
	"strings"
	"sync"

	"trivia-lab/domain"
)

// Roster is the local view of who is in a session, keyed by participant id.
type Roster struct {
	mu           sync.RWMutex
	sessionID    domain.SessionID
	participants map[domain.ParticipantID]domain.Participant
}

func NewRoster(sessionID domain.SessionID) *Roster {
	return &Roster{
		sessionID:    sessionID,
		participants: make(map[domain.ParticipantID]domain.Participant),
	}
}

// Reset replaces the whole view with a baseline read.
// Participants of other sessions are ignored.
func (r *Roster) Reset(participants []domain.Participant) bool {
	next := make(map[domain.ParticipantID]domain.Participant, len(participants))
	for _, p := range participants {
		if p.SessionID == r.sessionID {
			next[p.ID] = p
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := !mapsEqual(r.participants, next)
	r.participants = next
	return changed
}

// ApplyInsert adds the participant unless its id is already known.
// The baseline read and the feed may both deliver the same row.
func (r *Roster) ApplyInsert(p domain.Participant) bool {
	if p.SessionID != r.sessionID {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[p.ID]; ok {
		return false
	}
	r.participants[p.ID] = p
	return true
}

// ApplyUpdate replaces the participant, inserting it when an insert was missed.
func (r *Roster) ApplyUpdate(p domain.Participant) bool {
	if p.SessionID != r.sessionID {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.participants[p.ID]; ok && participantEqual(current, p) {
		return false
	}
	r.participants[p.ID] = p
	return true
}

// ApplyDelete removes the participant; unknown ids are a no-op.
func (r *Roster) ApplyDelete(id domain.ParticipantID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)
	return true
}

// Snapshot returns the participants ordered by join time then id.
func (r *Roster) Snapshot() []domain.Participant {
	r.mu.RLock()
	out := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.Participant) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

func mapsEqual(a, b map[domain.ParticipantID]domain.Participant) bool {
	if len(a) != len(b) {
		return false
	}
	for id, p := range a {
		other, ok := b[id]
		if !ok || !participantEqual(p, other) {
			return false
		}
	}
	return true
}

func participantEqual(a, b domain.Participant) bool {
	sameOwner := (a.OwnerIdentity == nil && b.OwnerIdentity == nil) ||
		(a.OwnerIdentity != nil && b.OwnerIdentity != nil && *a.OwnerIdentity == *b.OwnerIdentity)
	return a.ID == b.ID && a.SessionID == b.SessionID && a.DisplayName == b.DisplayName &&
		a.CreatedAt.Equal(b.CreatedAt) && sameOwner
}
