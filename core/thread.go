package core

import (
	"sync"
	"time"
)

// Thread is an ordered, append-only event sequence for one agent's
// conversation. The event order is the sole source of truth: there is no
// separate mutable "current state". Thread is safe for concurrent access.
//
// Contract:
//   - Append never reorders or mutates prior events
//   - Events returns a defensive copy to avoid external mutation
//   - Clone performs a deep copy safe for independent divergence
type Thread struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
	events    []Event
	mu        sync.RWMutex
}

// NewThread creates an empty thread bound to a session.
func NewThread(id, sessionID string) *Thread {
	now := time.Now().UTC()
	return &Thread{ID: id, SessionID: sessionID, Created: now, Updated: now}
}

// Append appends an event, updating the Updated timestamp.
func (t *Thread) Append(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
	t.Updated = time.Now().UTC()
}

// Events returns a defensive copy of the full event sequence.
func (t *Thread) Events() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	events := make([]Event, len(t.events))
	copy(events, t.events)
	return events
}

// Len returns the number of appended events.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// View returns the derived conversation view (see BuildView).
func (t *Thread) View() []Event {
	return BuildView(t.Events())
}

// Clone returns a deep copy of the thread safe for independent mutation.
func (t *Thread) Clone() *Thread {
	t.mu.RLock()
	defer t.mu.RUnlock()
	clone := &Thread{ID: t.ID, SessionID: t.SessionID, Created: t.Created, Updated: t.Updated}
	clone.events = make([]Event, len(t.events))
	copy(clone.events, t.events)
	return clone
}

// ThreadStore persists threads and their append-only event sequences.
// Implementations must preserve strict per-thread ordering; Append fails
// only on storage I/O.
type ThreadStore interface {
	Create(threadID, sessionID string) (*Thread, error)
	Get(threadID string) (*Thread, error)
	Append(threadID string, data EventData) (Event, error)
	Events(threadID string) ([]Event, error)
}
