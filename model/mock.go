package model

import (
	"context"
	"sync"

	"github.com/threadline-ai/threadline/core"
)

// MockModel is a scripted in-memory Model for tests and examples. Responses
// and errors pop in enqueue order; it records every received request for
// assertions. Safe for concurrent use.
type MockModel struct {
	mu       sync.Mutex
	info     Info
	script   []scriptStep
	requests []Request
}

type scriptStep struct {
	resp *Response
	err  error
}

// NewMockModel constructs a MockModel with tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock", SupportsTools: true}}
}

// Enqueue appends a canned response to the script.
func (m *MockModel) Enqueue(resp Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptStep{resp: &resp})
	return m
}

// EnqueueError appends a canned failure to the script.
func (m *MockModel) EnqueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptStep{err: err})
	return m
}

// EnqueueText is shorthand for a plain assistant message with usage.
func (m *MockModel) EnqueueText(text string, usage core.TokenUsage) *MockModel {
	return m.Enqueue(Response{Content: text, Usage: usage, FinishReason: "stop"})
}

// EnqueueToolCalls is shorthand for a response requesting tool calls.
func (m *MockModel) EnqueueToolCalls(usage core.TokenUsage, calls ...core.ToolCall) *MockModel {
	return m.Enqueue(Response{ToolCalls: calls, Usage: usage, FinishReason: "tool_calls"})
}

// CreateResponse implements Model, popping the next scripted step.
func (m *MockModel) CreateResponse(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	if len(m.script) == 0 {
		return &Response{Content: "mock response", FinishReason: "stop"}, nil
	}
	step := m.script[0]
	m.script = m.script[1:]
	if step.err != nil {
		return nil, step.err
	}
	resp := *step.resp
	return &resp, nil
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
