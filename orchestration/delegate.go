// Package orchestration builds multi-agent coordination on top of sessions:
// a delegation tool that spawns supervised child agents, a prioritized
// message bus, and session-wide progress aggregation.
package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/threadline-ai/threadline/agent"
	"github.com/threadline-ai/threadline/model"
	"github.com/threadline-ai/threadline/session"
	"github.com/threadline-ai/threadline/thread"
	"github.com/threadline-ai/threadline/tool"
)

// DelegateOptions configures the agents a DelegateTool spawns.
type DelegateOptions struct {
	// Model powers spawned delegates. Required.
	Model model.Model

	// Executor equips delegates with tools. Nil spawns tool-less delegates;
	// in particular, delegates never inherit the delegation tool itself, so
	// delegation depth is bounded at one unless explicitly configured.
	Executor *tool.Executor

	// Instructions is the system prompt for delegates.
	Instructions string

	// BudgetLimit, CompactionStrategy, and MaxModelCalls carry into each
	// delegate's config.
	BudgetLimit        int
	CompactionStrategy thread.Strategy
	MaxModelCalls      int
}

// DelegateTool lets a coordinator hand a task to a child agent on its own
// delegate thread and wait for the result. The wait observes the parent
// turn's cancellation: aborting the parent aborts the child and detaches
// from the wait instead of leaking it. Children register in the session, so
// session teardown reaps any delegate that outlives its parent turn.
type DelegateTool struct {
	session *session.Session
	opts    DelegateOptions
}

// NewDelegateTool constructs the delegation tool for a session.
func NewDelegateTool(sess *session.Session, opts DelegateOptions) (*DelegateTool, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("delegate tool: Model is required")
	}
	return &DelegateTool{session: sess, opts: opts}, nil
}

// Name implements tool.Tool.
func (t *DelegateTool) Name() string { return "delegate" }

// Description implements tool.Tool.
func (t *DelegateTool) Description() string {
	return "Delegate a self-contained task to a sub-agent and return its final answer. " +
		"Use for work that can proceed independently of the current conversation."
}

// Parameters implements tool.Tool.
func (t *DelegateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "Complete instructions for the sub-agent, including all needed context.",
			},
			"name": map[string]any{
				"type":        "string",
				"description": "Optional short name for the sub-agent.",
			},
		},
		"required": []string{"task"},
	}
}

// Call implements tool.Tool.
func (t *DelegateTool) Call(execCtx *tool.ExecContext, args map[string]any) (any, error) {
	task, _ := args["task"].(string)
	if strings.TrimSpace(task) == "" {
		return nil, tool.NewToolError(t.Name(), "task must not be empty", "invalid_argument")
	}
	name, _ := args["name"].(string)
	if name == "" {
		name = "delegate"
	}

	child, err := t.session.Spawn(agent.Config{
		Name:               name,
		Model:              t.opts.Model,
		Executor:           t.opts.Executor,
		Instructions:       t.opts.Instructions,
		BudgetLimit:        t.opts.BudgetLimit,
		CompactionStrategy: t.opts.CompactionStrategy,
		MaxModelCalls:      t.opts.MaxModelCalls,
	})
	if err != nil {
		return nil, fmt.Errorf("spawn delegate: %w", err)
	}

	// The child's turn runs on its own context rather than the parent turn's,
	// so a detached child can finish settling, but cancelling it below stops
	// a delegate whose turn has not started yet (Abort alone only interrupts
	// a turn already in flight).
	childCtx, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	type outcome struct {
		reply string
		err   error
	}
	// Buffered so the child goroutine settles even after a detach.
	done := make(chan outcome, 1)
	go func() {
		reply, err := child.SendMessage(childCtx, task)
		done <- outcome{reply: reply, err: err}
		_ = child.Close()
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("delegate %s: %w", child.ID(), out.err)
		}
		return out.reply, nil
	case <-execCtx.Done():
		// Parent turn aborted: cancel the child and detach. The goroutine
		// above records the child's settlement and closes it.
		cancelChild()
		child.Abort()
		return nil, execCtx.Err()
	}
}

var _ tool.Tool = (*DelegateTool)(nil)
