package tool

import (
	"context"
	"strings"

	"github.com/threadline-ai/threadline/logging"
)

// ExecContext carries the per-turn execution environment shared by every
// tool call dispatched in the same turn. The embedded context is the turn's
// cancellation signal: aborting the turn cancels all in-flight calls at
// once. The environment snapshot is taken when the context is created and
// never changes afterwards, so concurrent calls observe identical state.
type ExecContext struct {
	ctx     context.Context
	env     map[string]string
	workDir string
	callID  string
	logger  logging.Logger
}

// ExecContextOptions configures NewExecContext.
type ExecContextOptions struct {
	// Env is the environment snapshot exposed to tools, as KEY=VALUE pairs.
	// Nil means an empty environment; callers pass os.Environ() to inherit.
	Env []string

	// WorkDir is the working directory tools operate in.
	WorkDir string

	// Logger receives tool execution records. Nil disables logging.
	Logger logging.Logger
}

// NewExecContext builds the shared execution context for a turn. The ctx
// argument is the turn context; cancelling it aborts every call that shares
// this ExecContext.
func NewExecContext(ctx context.Context, opts ExecContextOptions) *ExecContext {
	env := make(map[string]string, len(opts.Env))
	for _, kv := range opts.Env {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ExecContext{
		ctx:     ctx,
		env:     env,
		workDir: opts.WorkDir,
		logger:  logger,
	}
}

// Context returns the shared turn context.
func (c *ExecContext) Context() context.Context { return c.ctx }

// Done proxies the turn context's cancellation channel.
func (c *ExecContext) Done() <-chan struct{} { return c.ctx.Done() }

// Err proxies the turn context's error.
func (c *ExecContext) Err() error { return c.ctx.Err() }

// CallID returns the id of the tool call this context was cloned for, or ""
// on the shared parent context.
func (c *ExecContext) CallID() string { return c.callID }

// WorkDir returns the working directory for this turn.
func (c *ExecContext) WorkDir() string { return c.workDir }

// Logger returns the execution logger.
func (c *ExecContext) Logger() logging.Logger { return c.logger }

// Getenv returns the value of a variable in the environment snapshot.
func (c *ExecContext) Getenv(key string) string { return c.env[key] }

// Environ returns a copy of the environment snapshot as KEY=VALUE pairs.
// Mutating the result does not affect the snapshot or other calls.
func (c *ExecContext) Environ() []string {
	out := make([]string, 0, len(c.env))
	for k, v := range c.env {
		out = append(out, k+"="+v)
	}
	return out
}

// WithCall returns a copy of the context tagged with a call id. The clone
// shares the turn context and environment snapshot with its parent.
func (c *ExecContext) WithCall(callID string) *ExecContext {
	clone := *c
	clone.callID = callID
	return &clone
}
