package core

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID generates a unique identifier used for events, tool calls and agents.
func NewID() string { return uuid.NewString() }

// DelegateThreadID derives the thread id of the n-th delegate spawned inside
// a session. Delegate threads are addressable relative to their parent so a
// session's full conversation tree can be reconstructed from ids alone.
func DelegateThreadID(parentID string, n int) string {
	return fmt.Sprintf("%s.%d", parentID, n)
}
