package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminates the closed set of event kinds a thread may carry.
// The persisted shape is additive: decoding tolerates unknown future types by
// preserving their raw payload.
type EventType string

const (
	// EventTypeUserMessage is input text appended at the start of a turn.
	EventTypeUserMessage EventType = "user_message"
	// EventTypeAgentMessage is a model response; it carries token usage.
	EventTypeAgentMessage EventType = "agent_message"
	// EventTypeToolCall records a tool dispatch requested by the model.
	EventTypeToolCall EventType = "tool_call"
	// EventTypeToolResult records the terminal outcome of a tool call.
	EventTypeToolResult EventType = "tool_result"
	// EventTypeCompaction replaces an event prefix with summary events.
	EventTypeCompaction EventType = "compaction"
)

// EventData is the polymorphic event payload. Concrete payload types
// implement the unexported marker enabling a closed set with exhaustive
// switches at the decode boundary.
type EventData interface {
	isEventData()

	// Type returns the event type this payload belongs to.
	Type() EventType
}

// UserMessageData is the payload of a user_message event.
type UserMessageData struct {
	Text string `json:"text"`
}

func (UserMessageData) isEventData() {}

// Type implements EventData.
func (UserMessageData) Type() EventType { return EventTypeUserMessage }

// AgentMessageData is the payload of an agent_message event. ToolCalls holds
// the calls the model requested in this response, if any; Usage is the token
// accounting reported by the provider for the call that produced it.
type AgentMessageData struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     TokenUsage `json:"usage"`
}

func (AgentMessageData) isEventData() {}

// Type implements EventData.
func (AgentMessageData) Type() EventType { return EventTypeAgentMessage }

// ToolCallData is the payload of a tool_call event.
type ToolCallData struct {
	Call ToolCall `json:"call"`
}

func (ToolCallData) isEventData() {}

// Type implements EventData.
func (ToolCallData) Type() EventType { return EventTypeToolCall }

// ToolResultData is the payload of a tool_result event.
type ToolResultData struct {
	Result ToolResult `json:"result"`
}

func (ToolResultData) isEventData() {}

// Type implements EventData.
func (ToolResultData) Type() EventType { return EventTypeToolResult }

// CompactionData is the payload of a compaction event. CompactedEvents is the
// full substituted conversation view at the point of compaction: replaying it
// followed by all events after the compaction event yields the live view.
// OriginalEventCount records how many view events the summary replaced.
// Usage is the aggregate usage carried by the replacement events; the token
// budget tracker resets to exactly this value.
type CompactionData struct {
	StrategyID         string     `json:"strategy_id"`
	OriginalEventCount int        `json:"original_event_count"`
	CompactedEvents    []Event    `json:"compacted_events"`
	Usage              TokenUsage `json:"usage"`
}

func (CompactionData) isEventData() {}

// Type implements EventData.
func (CompactionData) Type() EventType { return EventTypeCompaction }

// RawEventData preserves the payload of an unrecognized event type so that
// logs written by newer versions replay without loss.
type RawEventData struct {
	EventType EventType       `json:"-"`
	Payload   json.RawMessage `json:"-"`
}

func (RawEventData) isEventData() {}

// Type implements EventData.
func (d RawEventData) Type() EventType { return d.EventType }

// Event is an immutable, typed, timestamped record appended to a thread.
// Events are never mutated or deleted after append; all derived state is a
// projection over the ordered event sequence.
type Event struct {
	ID        string
	ThreadID  string
	Type      EventType
	Timestamp time.Time
	Data      EventData
}

// NewEvent constructs an event for the given thread from a typed payload.
func NewEvent(threadID string, data EventData) Event {
	return Event{
		ID:        NewID(),
		ThreadID:  threadID,
		Type:      data.Type(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// NewUserMessageEvent creates a user_message event.
func NewUserMessageEvent(threadID, text string) Event {
	return NewEvent(threadID, UserMessageData{Text: text})
}

// NewAgentMessageEvent creates an agent_message event carrying usage and any
// tool calls the model requested.
func NewAgentMessageEvent(threadID, text string, calls []ToolCall, usage TokenUsage) Event {
	return NewEvent(threadID, AgentMessageData{Text: text, ToolCalls: calls, Usage: usage})
}

// NewToolCallEvent creates a tool_call event.
func NewToolCallEvent(threadID string, call ToolCall) Event {
	return NewEvent(threadID, ToolCallData{Call: call})
}

// NewToolResultEvent creates a tool_result event.
func NewToolResultEvent(threadID string, result ToolResult) Event {
	return NewEvent(threadID, ToolResultData{Result: result})
}

// eventEnvelope is the wire shape of an Event. Data round-trips through a
// raw payload keyed by Type.
type eventEnvelope struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	env := eventEnvelope{
		ID:        e.ID,
		ThreadID:  e.ThreadID,
		Type:      e.Type,
		Timestamp: e.Timestamp,
	}
	if e.Data != nil {
		if raw, ok := e.Data.(RawEventData); ok {
			env.Data = raw.Payload
		} else {
			payload, err := json.Marshal(e.Data)
			if err != nil {
				return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
			}
			env.Data = payload
		}
	}
	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler, decoding the payload into the
// concrete type for the event's kind. Unknown types decode into RawEventData.
func (e *Event) UnmarshalJSON(b []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	e.ID = env.ID
	e.ThreadID = env.ThreadID
	e.Type = env.Type
	e.Timestamp = env.Timestamp

	if len(env.Data) == 0 {
		e.Data = nil
		return nil
	}

	var (
		data EventData
		err  error
	)
	switch env.Type {
	case EventTypeUserMessage:
		var d UserMessageData
		err = json.Unmarshal(env.Data, &d)
		data = d
	case EventTypeAgentMessage:
		var d AgentMessageData
		err = json.Unmarshal(env.Data, &d)
		data = d
	case EventTypeToolCall:
		var d ToolCallData
		err = json.Unmarshal(env.Data, &d)
		data = d
	case EventTypeToolResult:
		var d ToolResultData
		err = json.Unmarshal(env.Data, &d)
		data = d
	case EventTypeCompaction:
		var d CompactionData
		err = json.Unmarshal(env.Data, &d)
		data = d
	default:
		data = RawEventData{EventType: env.Type, Payload: append(json.RawMessage(nil), env.Data...)}
	}
	if err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	e.Data = data
	return nil
}

// Usage returns the token usage carried by the event, if any. Only
// agent_message and compaction events carry usage.
func (e Event) Usage() (TokenUsage, bool) {
	switch d := e.Data.(type) {
	case AgentMessageData:
		return d.Usage, true
	case CompactionData:
		return d.Usage, true
	default:
		return TokenUsage{}, false
	}
}

// ToolCalls returns the tool calls requested by an agent_message event.
func (e Event) ToolCalls() []ToolCall {
	if d, ok := e.Data.(AgentMessageData); ok {
		return d.ToolCalls
	}
	return nil
}
