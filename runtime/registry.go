package runtime

import (
	"sync"

	"trivia-lab/contract"
	"trivia-lab/domain"
)

type Set map[string]struct{}

// Registry maps live subscriptions to the session they follow.
// One subscriber follows exactly one session.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]contract.EventSink // subscriber -> sink
	sessions    map[domain.SessionID]Set      // session -> subscribers
}

func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]contract.EventSink),
		sessions:    make(map[domain.SessionID]Set),
	}
}

// GetSinksForSession returns the sinks currently following a session,
// or nil when nobody does.
func (r *Registry) GetSinksForSession(sessionID domain.SessionID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.sessions[sessionID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for subscriberID := range members {
		if sink, exists := r.subscribers[subscriberID]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func (r *Registry) Subscribe(subscriberID string, sessionID domain.SessionID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers[subscriberID] = sink
	if _, ok := r.sessions[sessionID]; !ok {
		r.sessions[sessionID] = make(Set)
	}
	r.sessions[sessionID][subscriberID] = struct{}{}
}

// Unsubscribe drops the subscriber and the session entry once empty.
func (r *Registry) Unsubscribe(subscriberID string, sessionID domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subscribers, subscriberID)
	if members, ok := r.sessions[sessionID]; ok {
		delete(members, subscriberID)
		if len(members) == 0 {
			delete(r.sessions, sessionID)
		}
	}
}

// Count returns the number of live subscriptions on a session.
func (r *Registry) Count(sessionID domain.SessionID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[sessionID])
}

// Stats reports how many sessions are followed and by how many subscribers.
func (r *Registry) Stats() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string]any{
		"followed_sessions": len(r.sessions),
		"subscribers":       len(r.subscribers),
	}
}
