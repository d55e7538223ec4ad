//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session_repository.go -package=mocks
package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"trivia-lab/domain"
	"trivia-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// maxConflictRetries bounds how often a transaction is replayed after badger
// reports a write-write conflict.
const maxConflictRetries = 5

type ISessionRepository interface {
	CreateSession(ctx context.Context, session domain.Session) (domain.SessionID, error)
	GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error)
	// UpdateSessionConditional writes the start fields only if the stored phase
	// still equals expected. It fails with errors.ErrConditionFailed otherwise.
	UpdateSessionConditional(ctx context.Context, id domain.SessionID,
		expected domain.Phase, fields domain.StartFields) (domain.Session, error)
	ListParticipants(ctx context.Context, sessionID domain.SessionID) ([]domain.Participant, error)
	InsertParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error)
	UpdateParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error)
	DeleteParticipant(ctx context.Context, sessionID domain.SessionID, id domain.ParticipantID) (domain.Participant, error)
}

type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) *SessionRepository {
	return &SessionRepository{db: db, log: log}
}

func sessionKey(id domain.SessionID) []byte {
	return []byte("session:" + string(id))
}

func participantPrefix(sessionID domain.SessionID) []byte {
	return []byte(fmt.Sprintf("participant:%s:", sessionID))
}

func participantKey(sessionID domain.SessionID, id domain.ParticipantID) []byte {
	return append(participantPrefix(sessionID), []byte(id)...)
}

// CreateSession persists a new lobby session. The caller generates the id;
// a collision is reported as errors.ErrSessionAlreadyExists.
func (r *SessionRepository) CreateSession(ctx context.Context, session domain.Session) (domain.SessionID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := session.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	data, err := encode(fromSession(session))
	if err != nil {
		return "", err
	}
	err = r.update(func(txn *badger.Txn) error {
		key := sessionKey(session.ID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrSessionAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", storeError(err)
	}
	return session.ID, nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		session, err = getSession(txn, id)
		return err
	})
	if err != nil {
		return domain.Session{}, storeError(err)
	}
	return session, nil
}

// UpdateSessionConditional is a compare-and-swap on the session phase.
// Read and write happen in one transaction; a concurrent writer makes badger
// abort with ErrConflict and the replay observes the committed phase.
func (r *SessionRepository) UpdateSessionConditional(ctx context.Context, id domain.SessionID,
	expected domain.Phase, fields domain.StartFields) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	var updated domain.Session
	err := r.update(func(txn *badger.Txn) error {
		current, err := getSession(txn, id)
		if err != nil {
			return err
		}
		if current.Phase != expected {
			return fmt.Errorf("%w: session %s is %s, expected %s",
				errors.ErrConditionFailed, id, current.Phase, expected)
		}
		next := current.Apply(fields)
		if err := next.Validate(); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
		}
		data, err := encode(fromSession(next))
		if err != nil {
			return err
		}
		updated = next
		return txn.Set(sessionKey(id), data)
	})
	if err != nil {
		return domain.Session{}, storeError(err)
	}
	return updated, nil
}

// ListParticipants returns the participants of a session ordered by join time.
func (r *SessionRepository) ListParticipants(ctx context.Context, sessionID domain.SessionID) ([]domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var participants []domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := participantPrefix(sessionID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record participantRecord
				if err := decode(val, &record); err != nil {
					return fmt.Errorf("failed to decode participant: %w", err)
				}
				participants = append(participants, toParticipant(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}
	slices.SortStableFunc(participants, func(a, b domain.Participant) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
	return participants, nil
}

// InsertParticipant assigns an id and stores the participant.
// The session must exist and still be in the lobby; reading the session inside
// the transaction makes a join racing with the start transition conflict.
func (r *SessionRepository) InsertParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Participant{}, err
	}
	participant.ID = domain.ParticipantID(uuid.NewString())
	data, err := encode(fromParticipant(participant))
	if err != nil {
		return domain.Participant{}, err
	}
	err = r.update(func(txn *badger.Txn) error {
		session, err := getSession(txn, participant.SessionID)
		if err != nil {
			return err
		}
		if session.Phase != domain.PhaseLobby {
			return errors.ErrAlreadyStarted
		}
		return txn.Set(participantKey(participant.SessionID, participant.ID), data)
	})
	if err != nil {
		return domain.Participant{}, storeError(err)
	}
	return participant, nil
}

// UpdateParticipant replaces the mutable fields of an existing participant.
// SessionID and CreatedAt are kept from the stored row.
func (r *SessionRepository) UpdateParticipant(ctx context.Context, participant domain.Participant) (domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Participant{}, err
	}
	var updated domain.Participant
	err := r.update(func(txn *badger.Txn) error {
		key := participantKey(participant.SessionID, participant.ID)
		current, err := getParticipant(txn, key)
		if err != nil {
			return err
		}
		current.DisplayName = participant.DisplayName
		data, err := encode(fromParticipant(current))
		if err != nil {
			return err
		}
		updated = current
		return txn.Set(key, data)
	})
	if err != nil {
		return domain.Participant{}, storeError(err)
	}
	return updated, nil
}

func (r *SessionRepository) DeleteParticipant(ctx context.Context, sessionID domain.SessionID,
	id domain.ParticipantID) (domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Participant{}, err
	}
	var deleted domain.Participant
	err := r.update(func(txn *badger.Txn) error {
		key := participantKey(sessionID, id)
		current, err := getParticipant(txn, key)
		if err != nil {
			return err
		}
		deleted = current
		return txn.Delete(key)
	})
	if err != nil {
		return domain.Participant{}, storeError(err)
	}
	return deleted, nil
}

// update runs fn in a read-write transaction, replaying it on conflicts.
func (r *SessionRepository) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = r.db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
		r.log.Debug("Transaction conflict, replaying", "attempt", attempt+1)
	}
	return err
}

func getSession(txn *badger.Txn, id domain.SessionID) (domain.Session, error) {
	item, err := txn.Get(sessionKey(id))
	if err != nil {
		return domain.Session{}, err
	}
	var record sessionRecord
	err = item.Value(func(val []byte) error {
		return decode(val, &record)
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return toSession(record), nil
}

func getParticipant(txn *badger.Txn, key []byte) (domain.Participant, error) {
	item, err := txn.Get(key)
	if err != nil {
		return domain.Participant{}, err
	}
	var record participantRecord
	err = item.Value(func(val []byte) error {
		return decode(val, &record)
	})
	if err != nil {
		return domain.Participant{}, fmt.Errorf("failed to decode participant: %w", err)
	}
	return toParticipant(record), nil
}

// storeError keeps domain errors as they are, turns a missing key into
// errors.ErrNotFound and wraps anything else as errors.ErrStoreUnavailable.
func storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return errors.ErrNotFound
	case stderrors.Is(err, errors.ErrNotFound),
		stderrors.Is(err, errors.ErrConditionFailed),
		stderrors.Is(err, errors.ErrSessionAlreadyExists),
		stderrors.Is(err, errors.ErrAlreadyStarted),
		stderrors.Is(err, errors.ErrInvalidInput),
		stderrors.Is(err, errors.ErrUserAlreadyExists):
		return err
	default:
		return fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err)
	}
}
