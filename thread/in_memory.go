// Package thread implements the append-only thread event store and its
// compaction operation. The in-memory store suits tests and ephemeral runs;
// durable backends implement core.ThreadStore with the same per-thread
// ordering guarantee.
package thread

import (
	"fmt"
	"sync"

	"github.com/threadline-ai/threadline/core"
)

// ErrNotFound is returned when a thread id is unknown to the store.
var ErrNotFound = fmt.Errorf("thread not found")

// InMemoryStore is a volatile core.ThreadStore keeping threads in a process
// local map. It is safe for concurrent access; returned threads are cloned
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.Thread
}

// NewInMemoryStore constructs an empty in-memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.Thread)}
}

// Create allocates a new thread. Creating an existing id fails: threads are
// append-only and never replaced.
func (s *InMemoryStore) Create(threadID, sessionID string) (*core.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.threads[threadID]; exists {
		return nil, fmt.Errorf("thread %s already exists", threadID)
	}
	th := core.NewThread(threadID, sessionID)
	s.threads[threadID] = th
	return th.Clone(), nil
}

// Get returns a clone of an existing thread.
func (s *InMemoryStore) Get(threadID string) (*core.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	return th.Clone(), nil
}

// Append constructs an event from the payload and appends it, returning the
// stored event. Ordering is strict per thread: the store lock covers event
// construction so monotonic timestamps match append order.
func (s *InMemoryStore) Append(threadID string, data core.EventData) (core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[threadID]
	if !ok {
		return core.Event{}, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	ev := core.NewEvent(threadID, data)
	th.Append(ev)
	return ev, nil
}

// Events returns a copy of the thread's full event sequence.
func (s *InMemoryStore) Events(threadID string) ([]core.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	th, ok := s.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	return th.Events(), nil
}

var _ core.ThreadStore = (*InMemoryStore)(nil)
