package wire

import (
	"encoding/json"
	"testing"
	"time"

	"trivia-lab/domain"
	"trivia-lab/domain/event"

	"github.com/stretchr/testify/require"
)

func TestEvent_SessionUpdated_Carries_Start_Fields(t *testing.T) {
	req := require.New(t)
	owner := domain.UserID("user-1")
	started := domain.NewSession("abc123", "Quiz", &owner, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)).
		Apply(domain.StartFields{
			ModeratorOrder:   []domain.ParticipantID{"p2", "p1"},
			Categories:       []domain.Category{"Art"},
			RoundAssignments: []domain.RoundAssignment{{Round: 1, Category: "Art", Question: "?"}},
			CurrentRound:     1,
			StartedAt:        time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
		})

	frame, err := FromEvent(event.SessionUpdated{State: started})
	req.NoError(err)
	req.Equal("p2", frame.Session.CurrentModerator)
	req.Equal("/sessions/abc123/participants", frame.Session.InvitePath)

	raw, err := json.Marshal(frame)
	req.NoError(err)
	var decoded Event
	req.NoError(json.Unmarshal(raw, &decoded))
	back, err := decoded.ToEvent()
	req.NoError(err)
	req.Equal(event.SessionUpdated{State: started}, back)
}

func TestEvent_Participant_Frames(t *testing.T) {
	req := require.New(t)
	ana := domain.Participant{
		ID: "p1", SessionID: "abc123", DisplayName: "Ana",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	for _, e := range []event.ChangeEvent{
		event.ParticipantInserted{Participant: ana},
		event.ParticipantUpdated{Participant: ana},
		event.ParticipantDeleted{Session: "abc123", ParticipantID: "p1"},
		event.StatusChanged{Session: "abc123", Status: event.StatusChannelError, Reason: "full"},
	} {
		frame, err := FromEvent(e)
		req.NoError(err)
		back, err := frame.ToEvent()
		req.NoError(err)
		req.Equal(e, back)
	}
}

func TestEvent_Rejects_Malformed_Frames(t *testing.T) {
	req := require.New(t)

	_, err := Event{Type: "bogus"}.ToEvent()
	req.Error(err)
	_, err = Event{Type: TypeParticipantInserted}.ToEvent()
	req.Error(err)
	_, err = Event{Type: TypeSessionUpdated}.ToEvent()
	req.Error(err)
}
