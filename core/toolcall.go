package core

// ToolCall describes a side-effecting operation requested by the model.
// Arguments is the serialized (JSON) argument payload exactly as produced by
// the provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolStatus is the terminal outcome of a tool call. Every dispatched call
// settles with exactly one status; there is no non-terminal value.
type ToolStatus string

const (
	// ToolStatusCompleted means the tool ran and produced a result.
	ToolStatusCompleted ToolStatus = "completed"
	// ToolStatusFailed means the tool ran (or failed validation) and errored.
	ToolStatusFailed ToolStatus = "failed"
	// ToolStatusAborted means cancellation was observed before or during execution.
	ToolStatusAborted ToolStatus = "aborted"
	// ToolStatusDenied means a human or policy rejected the call; the tool never ran.
	ToolStatusDenied ToolStatus = "denied"
)

// statusPrecedence orders duplicate same-id results: a terminal denial or
// failure must never be shadowed by a stale duplicate.
var statusPrecedence = map[ToolStatus]int{
	ToolStatusCompleted: 0,
	ToolStatusAborted:   1,
	ToolStatusFailed:    2,
	ToolStatusDenied:    3,
}

// Supersedes reports whether a result with status s wins over one with
// status other when both carry the same call id.
func (s ToolStatus) Supersedes(other ToolStatus) bool {
	return statusPrecedence[s] > statusPrecedence[other]
}

// ToolResult is the terminal outcome of a ToolCall, correlated by ID.
type ToolResult struct {
	ID       string            `json:"id"`
	Status   ToolStatus        `json:"status"`
	Content  string            `json:"content,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Terminal reports whether the result carries a recognized terminal status.
func (r ToolResult) Terminal() bool {
	_, ok := statusPrecedence[r.Status]
	return ok
}
