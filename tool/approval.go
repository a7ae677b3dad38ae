package tool

import (
	"sync"

	"github.com/threadline-ai/threadline/core"
)

// Approver decides whether a tool call may run. A denied call still settles:
// the executor records a denied result instead of executing the tool.
type Approver interface {
	// Approve returns whether the call may proceed and, when denied, a
	// human-readable reason recorded in the result.
	Approve(execCtx *ExecContext, call core.ToolCall) (bool, string)
}

// AutoApprover approves every call. It is the executor default.
type AutoApprover struct{}

// Approve implements Approver.
func (AutoApprover) Approve(*ExecContext, core.ToolCall) (bool, string) { return true, "" }

// FuncApprover adapts a function to the Approver interface.
type FuncApprover func(execCtx *ExecContext, call core.ToolCall) (bool, string)

// Approve implements Approver.
func (f FuncApprover) Approve(execCtx *ExecContext, call core.ToolCall) (bool, string) {
	return f(execCtx, call)
}

// SessionApprover wraps a prompting approver and remembers grants per tool
// name, so a tool approved once is not prompted again for the rest of the
// session. Denials are not remembered; the next call prompts again.
type SessionApprover struct {
	prompt  Approver
	mu      sync.Mutex
	granted map[string]bool
}

// NewSessionApprover wraps the given approver with per-tool grant memory.
func NewSessionApprover(prompt Approver) *SessionApprover {
	return &SessionApprover{prompt: prompt, granted: make(map[string]bool)}
}

// Approve implements Approver.
func (a *SessionApprover) Approve(execCtx *ExecContext, call core.ToolCall) (bool, string) {
	a.mu.Lock()
	remembered := a.granted[call.Name]
	a.mu.Unlock()
	if remembered {
		return true, ""
	}
	ok, reason := a.prompt.Approve(execCtx, call)
	if ok {
		a.mu.Lock()
		a.granted[call.Name] = true
		a.mu.Unlock()
	}
	return ok, reason
}
