// Package event defines the change notifications published by the session feed.
// Every event is scoped to exactly one session.
package event

import (
	"trivia-lab/domain"
)

// ChangeEvent is a tagged notification on the change feed.
// Concrete types: ParticipantInserted, ParticipantUpdated, ParticipantDeleted,
// SessionUpdated and StatusChanged.
type ChangeEvent interface {
	SessionID() domain.SessionID
}

type ParticipantInserted struct {
	Participant domain.Participant
}

func (e ParticipantInserted) SessionID() domain.SessionID { return e.Participant.SessionID }

type ParticipantUpdated struct {
	Participant domain.Participant
}

func (e ParticipantUpdated) SessionID() domain.SessionID { return e.Participant.SessionID }

type ParticipantDeleted struct {
	Session       domain.SessionID
	ParticipantID domain.ParticipantID
}

func (e ParticipantDeleted) SessionID() domain.SessionID { return e.Session }

// SessionUpdated carries the full session record after a committed write.
type SessionUpdated struct {
	State domain.Session
}

func (e SessionUpdated) SessionID() domain.SessionID { return e.State.ID }

type SubscriptionStatus string

const (
	StatusSubscribed   SubscriptionStatus = "subscribed"
	StatusChannelError SubscriptionStatus = "channel_error"
	StatusTimedOut     SubscriptionStatus = "timed_out"
	StatusClosed       SubscriptionStatus = "closed"
)

// StatusChanged reports the health of a subscription.
// The first event of every subscription is its handshake status.
type StatusChanged struct {
	Session domain.SessionID
	Status  SubscriptionStatus
	Reason  string
}

func (e StatusChanged) SessionID() domain.SessionID { return e.Session }

func (e StatusChanged) Healthy() bool { return e.Status == StatusSubscribed }

// Committed is how the feed publishes a change: the event plus its position in
// commit order. Sequences start at 1 and never repeat.
type Committed struct {
	Seq    uint64
	Change ChangeEvent
}

func (e Committed) SessionID() domain.SessionID { return e.Change.SessionID() }
