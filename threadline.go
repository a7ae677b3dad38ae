// Package threadline is an execution core for AI coding agents: an
// append-only thread event store with compaction and replay, a per-thread
// agent state machine driving model and tool loops, a concurrent tool
// executor with shared-turn cancellation, and session-scoped sub-agent
// orchestration.
//
// The subpackages compose bottom-up: core defines the event model, thread
// stores and compacts it, model wraps providers with retry, tool executes
// calls, agent sequences turns, and session/orchestration supervise groups
// of agents. This package offers a convenience constructor for the common
// single-coordinator setup.
package threadline

import (
	"github.com/threadline-ai/threadline/agent"
	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/logging"
	"github.com/threadline-ai/threadline/model"
	"github.com/threadline-ai/threadline/session"
	"github.com/threadline-ai/threadline/thread"
	"github.com/threadline-ai/threadline/tool"
)

// Options configures New.
type Options struct {
	// SessionID overrides the generated session id.
	SessionID string

	// Instructions is the coordinator's system prompt.
	Instructions string

	// Tools equips the coordinator with an executor over these tools.
	Tools []tool.Tool

	// BudgetLimit enables near-limit compaction with a summary strategy
	// driven by the same model.
	BudgetLimit int

	// MaxModelCalls caps model calls per turn. Defaults to 25.
	MaxModelCalls int

	// Logger receives execution records. Nil disables logging.
	Logger logging.Logger
}

// New builds a session with a single coordinator agent over an in-memory
// store. It is the quickest way to a working agent; anything beyond that
// composes session and agent directly.
func New(m model.Model, optFns ...func(*Options)) (*session.Session, *agent.Agent, error) {
	opts := Options{MaxModelCalls: 25}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.SessionID == "" {
		opts.SessionID = core.NewID()
	}

	store := thread.NewInMemoryStore()
	sess := session.New(opts.SessionID, store)

	cfg := agent.Config{
		ID:            "coordinator",
		Name:          "coordinator",
		Model:         m,
		Instructions:  opts.Instructions,
		MaxModelCalls: opts.MaxModelCalls,
		Logger:        opts.Logger,
	}
	if len(opts.Tools) > 0 {
		cfg.Executor = tool.NewExecutor(tool.NewRegistry(opts.Tools...))
	}
	if opts.BudgetLimit > 0 {
		cfg.BudgetLimit = opts.BudgetLimit
		cfg.CompactionStrategy = thread.NewSummaryStrategy(m, thread.SummaryOptions{})
	}

	coord, err := sess.SpawnCoordinator(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sess, coord, nil
}
