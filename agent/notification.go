package agent

import (
	"time"

	"github.com/threadline-ai/threadline/core"
)

// NotificationType classifies entries on an agent's notification stream.
type NotificationType string

const (
	// NotificationAgentMessage carries a model response.
	NotificationAgentMessage NotificationType = "agent_message"

	// NotificationToolCall announces a dispatched tool call.
	NotificationToolCall NotificationType = "tool_call"

	// NotificationToolResult carries a settled tool result.
	NotificationToolResult NotificationType = "tool_result"

	// NotificationRetryAttempt reports a transient provider failure and the
	// delay before the next attempt.
	NotificationRetryAttempt NotificationType = "retry_attempt"

	// NotificationRetryExhausted reports that retries ran out; the turn
	// fails with the final error.
	NotificationRetryExhausted NotificationType = "retry_exhausted"

	// NotificationCompaction reports a completed thread compaction.
	NotificationCompaction NotificationType = "compaction_complete"

	// NotificationStateChange reports a state transition.
	NotificationStateChange NotificationType = "state_change"
)

// Notification is one entry on an agent's subscription stream. Fields beyond
// Type/AgentID/ThreadID/Timestamp are populated per type.
type Notification struct {
	Type      NotificationType
	AgentID   string
	ThreadID  string
	Timestamp time.Time

	// Text holds the response text for agent messages.
	Text string

	// Usage accompanies agent messages.
	Usage core.TokenUsage

	// ToolCall is set for tool_call notifications.
	ToolCall *core.ToolCall

	// ToolResult is set for tool_result notifications.
	ToolResult *core.ToolResult

	// State is set for state_change notifications.
	State State

	// Attempt and Delay describe retry_attempt notifications; Attempts is
	// the total count on retry_exhausted.
	Attempt  int
	Attempts int
	Delay    time.Duration

	// Err carries the provoking error message for retry notifications.
	Err string

	// CompactionStrategy and CompactedFrom describe compaction_complete
	// notifications: the strategy id and the replaced view length.
	CompactionStrategy string
	CompactedFrom      int
}
