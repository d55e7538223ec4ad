//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"trivia-lab/domain"
	"trivia-lab/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.ChangeEvent) error
}

type IRegistry interface {
	GetSinksForSession(sessionID domain.SessionID) []EventSink
	Subscribe(subscriberID string, sessionID domain.SessionID, sink EventSink)
	Unsubscribe(subscriberID string, sessionID domain.SessionID)
}

// Subscription is a live, ordered stream of change events for one session.
// Close releases it; it is safe to call more than once.
type Subscription interface {
	Events() <-chan event.ChangeEvent
	Close()
}

// FeedSource is what a roster synchronizer reads from.
// It never writes.
type FeedSource interface {
	GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error)
	ListParticipants(ctx context.Context, sessionID domain.SessionID) ([]domain.Participant, error)
	SubscribeParticipantChanges(ctx context.Context, sessionID domain.SessionID) (Subscription, error)
}
