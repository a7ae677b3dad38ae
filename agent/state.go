package agent

// State describes where an agent is in its turn lifecycle. An agent is idle
// between turns; within a turn it alternates between model calls and tool
// execution until the model responds without tool calls. Aborted and failed
// are transitional: both return to idle once the turn's outcome is recorded.
type State string

const (
	// StateIdle means no turn is in progress.
	StateIdle State = "idle"

	// StateProcessing means a turn is active between model and tool phases.
	StateProcessing State = "processing"

	// StateModelCall means a provider request is in flight.
	StateModelCall State = "model_call"

	// StateToolExecution means dispatched tool calls have not all settled.
	StateToolExecution State = "tool_execution"

	// StateAborted means the current turn was cancelled; in-flight calls
	// settle as aborted before the agent returns to idle.
	StateAborted State = "aborted"

	// StateFailed means the current turn ended with an unrecoverable error.
	StateFailed State = "failed"
)
