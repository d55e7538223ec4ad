package repositories

import (
	"time"

	"trivia-lab/domain"

	"github.com/fxamacker/cbor/v2"
	"github.com/samber/lo"
)

// Records are stored as CBOR. Timestamps are kept as unix nanoseconds so
// they survive the round trip without precision loss.

type sessionRecord struct {
	ID               string             `cbor:"id"`
	Name             string             `cbor:"name"`
	OwnerIdentity    *string            `cbor:"owner,omitempty"`
	Phase            string             `cbor:"phase"`
	ModeratorOrder   []string           `cbor:"moderators,omitempty"`
	Categories       []string           `cbor:"categories,omitempty"`
	RoundAssignments []assignmentRecord `cbor:"assignments,omitempty"`
	CurrentRound     int                `cbor:"round,omitempty"`
	CreatedAt        int64              `cbor:"created_at"`
	StartedAt        *int64             `cbor:"started_at,omitempty"`
}

type assignmentRecord struct {
	Round    int    `cbor:"round"`
	Category string `cbor:"category"`
	Question string `cbor:"question"`
}

type participantRecord struct {
	ID            string  `cbor:"id"`
	SessionID     string  `cbor:"session_id"`
	DisplayName   string  `cbor:"display_name"`
	OwnerIdentity *string `cbor:"owner,omitempty"`
	CreatedAt     int64   `cbor:"created_at"`
}

type userRecord struct {
	ID           string   `cbor:"id"`
	Email        string   `cbor:"email"`
	PasswordHash string   `cbor:"password_hash"`
	Roles        []string `cbor:"roles"`
	CreatedAt    int64    `cbor:"created_at"`
}

// mapSlice keeps empty slices nil so decoded records compare equal to fresh ones.
func mapSlice[T, R any](in []T, f func(T) R) []R {
	if len(in) == 0 {
		return nil
	}
	return lo.Map(in, func(item T, _ int) R { return f(item) })
}

func encode(v any) ([]byte, error) { return cbor.Marshal(v) }

func decode(data []byte, v any) error { return cbor.Unmarshal(data, v) }

func fromSession(s domain.Session) sessionRecord {
	record := sessionRecord{
		ID:             string(s.ID),
		Name:           s.Name,
		OwnerIdentity:  (*string)(s.OwnerIdentity),
		Phase:          string(s.Phase),
		ModeratorOrder: mapSlice(s.ModeratorOrder, func(id domain.ParticipantID) string { return string(id) }),
		Categories:     mapSlice(s.Categories, func(c domain.Category) string { return string(c) }),
		RoundAssignments: mapSlice(s.RoundAssignments, func(a domain.RoundAssignment) assignmentRecord {
			return assignmentRecord{Round: a.Round, Category: string(a.Category), Question: a.Question}
		}),
		CurrentRound: s.CurrentRound,
		CreatedAt:    s.CreatedAt.UnixNano(),
	}
	if s.StartedAt != nil {
		record.StartedAt = lo.ToPtr(s.StartedAt.UnixNano())
	}
	return record
}

func toSession(r sessionRecord) domain.Session {
	s := domain.Session{
		ID:             domain.SessionID(r.ID),
		Name:           r.Name,
		OwnerIdentity:  (*domain.UserID)(r.OwnerIdentity),
		Phase:          domain.Phase(r.Phase),
		ModeratorOrder: mapSlice(r.ModeratorOrder, func(id string) domain.ParticipantID { return domain.ParticipantID(id) }),
		Categories:     mapSlice(r.Categories, func(c string) domain.Category { return domain.Category(c) }),
		RoundAssignments: mapSlice(r.RoundAssignments, func(a assignmentRecord) domain.RoundAssignment {
			return domain.RoundAssignment{Round: a.Round, Category: domain.Category(a.Category), Question: a.Question}
		}),
		CurrentRound: r.CurrentRound,
		CreatedAt:    time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.StartedAt != nil {
		s.StartedAt = lo.ToPtr(time.Unix(0, *r.StartedAt).UTC())
	}
	return s
}

func fromParticipant(p domain.Participant) participantRecord {
	return participantRecord{
		ID:            string(p.ID),
		SessionID:     string(p.SessionID),
		DisplayName:   p.DisplayName,
		OwnerIdentity: (*string)(p.OwnerIdentity),
		CreatedAt:     p.CreatedAt.UnixNano(),
	}
}

func toParticipant(r participantRecord) domain.Participant {
	return domain.Participant{
		ID:            domain.ParticipantID(r.ID),
		SessionID:     domain.SessionID(r.SessionID),
		DisplayName:   r.DisplayName,
		OwnerIdentity: (*domain.UserID)(r.OwnerIdentity),
		CreatedAt:     time.Unix(0, r.CreatedAt).UTC(),
	}
}
