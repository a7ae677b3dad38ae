package agent

import (
	"fmt"
	"sync"
)

// CallLimiter bounds the number of model calls within a single turn,
// protecting against tool-call loops that never converge. A max of 0 means
// unlimited.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a limiter with the given per-turn cap.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Increment counts a model call and errors once the cap is exceeded.
func (l *CallLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("exceeded max model calls per turn: %d", l.max)
	}
	return nil
}

// Count returns the calls made in the current turn.
func (l *CallLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Reset clears the counter at the start of a turn.
func (l *CallLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count = 0
}
