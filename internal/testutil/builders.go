// Package testutil provides builders for constructing threads and event
// sequences concisely in tests.
package testutil

import (
	"fmt"

	"github.com/threadline-ai/threadline/core"
)

// ThreadBuilder accumulates events for a thread under construction.
type ThreadBuilder struct {
	threadID string
	events   []core.Event
}

// NewThreadBuilder starts a builder for the given thread id.
func NewThreadBuilder(threadID string) *ThreadBuilder {
	return &ThreadBuilder{threadID: threadID}
}

// User appends a user message.
func (b *ThreadBuilder) User(text string) *ThreadBuilder {
	b.events = append(b.events, core.NewUserMessageEvent(b.threadID, text))
	return b
}

// Agent appends an agent message with the given usage.
func (b *ThreadBuilder) Agent(text string, usage core.TokenUsage) *ThreadBuilder {
	b.events = append(b.events, core.NewAgentMessageEvent(b.threadID, text, nil, usage))
	return b
}

// ToolExchange appends an agent message requesting one tool call, the call
// event, and its completed result.
func (b *ThreadBuilder) ToolExchange(callID, name, args, resultContent string) *ThreadBuilder {
	call := core.ToolCall{ID: callID, Name: name, Arguments: args}
	b.events = append(b.events,
		core.NewAgentMessageEvent(b.threadID, "", []core.ToolCall{call}, core.TokenUsage{}),
		core.NewToolCallEvent(b.threadID, call),
		core.NewToolResultEvent(b.threadID, core.ToolResult{
			ID:      callID,
			Status:  core.ToolStatusCompleted,
			Content: resultContent,
		}),
	)
	return b
}

// Turns appends n user/agent exchange pairs with fixed per-turn usage.
func (b *ThreadBuilder) Turns(n int, perTurn core.TokenUsage) *ThreadBuilder {
	for i := 0; i < n; i++ {
		b.User(fmt.Sprintf("question %d", i))
		b.Agent(fmt.Sprintf("answer %d", i), perTurn)
	}
	return b
}

// Events returns the accumulated events.
func (b *ThreadBuilder) Events() []core.Event {
	out := make([]core.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Seed creates the thread in a store and appends the accumulated events'
// payloads through it.
func (b *ThreadBuilder) Seed(store core.ThreadStore, sessionID string) error {
	if _, err := store.Create(b.threadID, sessionID); err != nil {
		return err
	}
	for _, ev := range b.events {
		if _, err := store.Append(b.threadID, ev.Data); err != nil {
			return err
		}
	}
	return nil
}
