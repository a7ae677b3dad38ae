package orchestration

import (
	"fmt"
	"sync"
	"time"

	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/internal/util"
)

// MessageType classifies inter-agent messages.
type MessageType string

const (
	// MessageStatus carries routine progress updates.
	MessageStatus MessageType = "status"

	// MessageCoordination carries task handoffs and shared decisions.
	MessageCoordination MessageType = "coordination"

	// MessageHelpRequest signals that the sender is blocked.
	MessageHelpRequest MessageType = "help_request"
)

// Priority orders message delivery within an inbox.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// Message is one inter-agent message. Payloads over the bus limit are cut
// down and flagged rather than rejected, so a chatty sender cannot wedge the
// conversation.
type Message struct {
	ID        string
	From      string
	To        string
	Type      MessageType
	Priority  Priority
	Payload   string
	Truncated bool
	Timestamp time.Time
}

// BusOptions configures a Bus.
type BusOptions struct {
	// InboxCapacity bounds each agent's pending messages. Defaults to 64.
	InboxCapacity int

	// MaxPayloadBytes truncates larger payloads. Defaults to 4096.
	MaxPayloadBytes int
}

// Bus routes typed, prioritized messages between the agents of a session.
// Delivery is pull-based: receivers drain their inbox between turns, highest
// priority first, oldest first within a priority.
type Bus struct {
	opts BusOptions

	mu      sync.Mutex
	inboxes map[string][]Message
}

// NewBus constructs an empty bus.
func NewBus(optFns ...func(*BusOptions)) *Bus {
	opts := BusOptions{InboxCapacity: 64, MaxPayloadBytes: 4096}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bus{opts: opts, inboxes: make(map[string][]Message)}
}

// Register creates an inbox for an agent. Sending to an unregistered agent
// fails; registering twice is a no-op.
func (b *Bus) Register(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.inboxes[agentID]; !ok {
		b.inboxes[agentID] = nil
	}
}

// Deregister drops an agent's inbox and any pending messages.
func (b *Bus) Deregister(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inboxes, agentID)
}

// Send delivers a message to the recipient's inbox. Oversized payloads are
// truncated and flagged. A full inbox evicts its lowest-priority oldest
// entry to make room, unless the incoming message ranks below everything
// pending, in which case the incoming message is dropped.
func (b *Bus) Send(msg Message) error {
	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.Payload, msg.Truncated = util.TruncateString(msg.Payload, b.opts.MaxPayloadBytes)

	b.mu.Lock()
	defer b.mu.Unlock()
	inbox, ok := b.inboxes[msg.To]
	if !ok {
		return fmt.Errorf("no inbox for agent %s", msg.To)
	}

	if len(inbox) >= b.opts.InboxCapacity {
		evict := lowestPriorityIndex(inbox)
		if inbox[evict].Priority >= msg.Priority {
			return nil // incoming message ranks below everything pending
		}
		inbox = append(inbox[:evict], inbox[evict+1:]...)
	}
	b.inboxes[msg.To] = append(inbox, msg)
	return nil
}

// Receive pops the highest-priority pending message for an agent.
func (b *Bus) Receive(agentID string) (Message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	inbox := b.inboxes[agentID]
	if len(inbox) == 0 {
		return Message{}, false
	}
	best := 0
	for i := 1; i < len(inbox); i++ {
		if inbox[i].Priority > inbox[best].Priority {
			best = i
		}
	}
	msg := inbox[best]
	b.inboxes[agentID] = append(inbox[:best], inbox[best+1:]...)
	return msg, true
}

// Drain pops every pending message for an agent in delivery order.
func (b *Bus) Drain(agentID string) []Message {
	var out []Message
	for {
		msg, ok := b.Receive(agentID)
		if !ok {
			return out
		}
		out = append(out, msg)
	}
}

// Pending returns the number of messages waiting for an agent.
func (b *Bus) Pending(agentID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inboxes[agentID])
}

func lowestPriorityIndex(inbox []Message) int {
	low := 0
	for i := 1; i < len(inbox); i++ {
		if inbox[i].Priority < inbox[low].Priority {
			low = i
		}
	}
	return low
}
