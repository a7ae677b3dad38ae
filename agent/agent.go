// Package agent implements the per-thread state machine driving the model
// and tool loop: it appends conversation events, calls the provider with
// retry, dispatches tool calls through the executor, and triggers compaction
// when the token budget nears its limit.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/threadline-ai/threadline/budget"
	"github.com/threadline-ai/threadline/logging"
	"github.com/threadline-ai/threadline/model"
	"github.com/threadline-ai/threadline/thread"
	"github.com/threadline-ai/threadline/tool"
)

var (
	// ErrAborted is returned by SendMessage when the turn was aborted.
	ErrAborted = errors.New("turn aborted")

	// ErrClosed is returned by SendMessage after Close.
	ErrClosed = errors.New("agent closed")

	// ErrBusy is returned when a turn is already in progress on the thread.
	ErrBusy = errors.New("turn already in progress")
)

// Config is the complete identity and wiring of an agent. All fields are
// fixed at construction; there is no post-construction mutation.
type Config struct {
	// ID identifies the agent. Required.
	ID string

	// Name is the human-readable agent name.
	Name string

	// ThreadID is the thread this agent owns. Required.
	ThreadID string

	// SessionID is the owning session. Required.
	SessionID string

	// Instructions is the system prompt sent on every model call.
	Instructions string

	// Model is the provider boundary. Required.
	Model model.Model

	// Store persists the thread's events. Required.
	Store thread.Store

	// Executor runs tool calls. Nil disables tool use.
	Executor *tool.Executor

	// BudgetLimit is the context ceiling in tokens; 0 disables the
	// near-limit compaction trigger.
	BudgetLimit int

	// BudgetThreshold overrides the fraction of BudgetLimit at which
	// compaction triggers. Zero uses the tracker default.
	BudgetThreshold float64

	// CompactionStrategy compacts the thread when the budget nears its
	// limit. Nil disables compaction even when NearLimit fires.
	CompactionStrategy thread.Strategy

	// RetryPolicy governs provider retries. Zero value uses the default.
	RetryPolicy model.RetryPolicy

	// MaxModelCalls caps model calls per turn; 0 means unlimited.
	MaxModelCalls int

	// WorkDir and Env seed each turn's tool execution context. A nil Env
	// means tools see an empty environment.
	WorkDir string
	Env     []string

	// Logger receives execution records. Nil disables logging.
	Logger logging.Logger

	// OnClose runs once when the agent is closed, after subscribers are
	// released. Used by sessions to deregister the agent.
	OnClose func() error
}

func (c Config) validate() error {
	if c.ID == "" {
		return fmt.Errorf("agent config: ID is required")
	}
	if c.ThreadID == "" {
		return fmt.Errorf("agent config: ThreadID is required")
	}
	if c.SessionID == "" {
		return fmt.Errorf("agent config: SessionID is required")
	}
	if c.Model == nil {
		return fmt.Errorf("agent config: Model is required")
	}
	if c.Store == nil {
		return fmt.Errorf("agent config: Store is required")
	}
	return nil
}

// Agent is a single-threaded-per-thread state machine: at most one turn runs
// at a time, so event append order on its thread is trivially consistent.
// Subscribe exposes a notification stream of messages, tool activity,
// retries, and compactions.
type Agent struct {
	cfg     Config
	tracker *budget.Tracker
	limiter *CallLimiter
	logger  logging.Logger

	mu         sync.Mutex
	state      State
	turnCancel context.CancelFunc
	closed     bool

	subMu   sync.Mutex
	subs    map[int]chan Notification
	nextSub int
}

// agentLogger resolves the configured logger, attaching session and thread
// identifiers when the logger is context-aware.
func agentLogger(cfg Config) logging.Logger {
	if cfg.Logger == nil {
		return logging.NoOpLogger{}
	}
	if rt, ok := cfg.Logger.(*logging.RuntimeLogger); ok {
		return rt.WithComponent("agent").WithThread(cfg.SessionID, cfg.ThreadID)
	}
	return cfg.Logger
}

// New constructs an agent and creates its thread in the store. The thread
// must not already exist.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = model.DefaultRetryPolicy()
	}
	logger := agentLogger(cfg)

	if _, err := cfg.Store.Create(cfg.ThreadID, cfg.SessionID); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	trackerOpts := func(o *budget.Options) {
		if cfg.BudgetThreshold > 0 {
			o.Threshold = cfg.BudgetThreshold
		}
	}
	return &Agent{
		cfg:     cfg,
		tracker: budget.NewTracker(cfg.BudgetLimit, trackerOpts),
		limiter: NewCallLimiter(cfg.MaxModelCalls),
		logger:  logger,
		state:   StateIdle,
		subs:    make(map[int]chan Notification),
	}, nil
}

// Resume constructs an agent over an existing thread instead of creating
// one. The tracker restarts at zero; usage before the resume is reflected
// through the thread's latest compaction, if any.
func Resume(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = model.DefaultRetryPolicy()
	}
	logger := agentLogger(cfg)
	if _, err := cfg.Store.Get(cfg.ThreadID); err != nil {
		return nil, fmt.Errorf("resume thread: %w", err)
	}
	trackerOpts := func(o *budget.Options) {
		if cfg.BudgetThreshold > 0 {
			o.Threshold = cfg.BudgetThreshold
		}
	}
	a := &Agent{
		cfg:     cfg,
		tracker: budget.NewTracker(cfg.BudgetLimit, trackerOpts),
		limiter: NewCallLimiter(cfg.MaxModelCalls),
		logger:  logger,
		state:   StateIdle,
		subs:    make(map[int]chan Notification),
	}
	return a, nil
}

// ID returns the agent id.
func (a *Agent) ID() string { return a.cfg.ID }

// Name returns the agent name.
func (a *Agent) Name() string { return a.cfg.Name }

// ThreadID returns the id of the thread this agent owns.
func (a *Agent) ThreadID() string { return a.cfg.ThreadID }

// SessionID returns the owning session id.
func (a *Agent) SessionID() string { return a.cfg.SessionID }

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// TokenUsage returns the tracker's current snapshot. This is the sole
// authoritative live usage figure for the agent's thread.
func (a *Agent) TokenUsage() budget.Snapshot {
	return a.tracker.Usage()
}

// Abort cancels the turn in progress, if any. In-flight tool calls are
// cancelled cooperatively and still settle; the turn ends with ErrAborted.
// Aborting an idle agent is a no-op, and repeated aborts are harmless.
func (a *Agent) Abort() {
	a.mu.Lock()
	cancel := a.turnCancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Subscribe registers a notification stream. The returned channel is closed
// on Unsubscribe or Close. Slow consumers lose notifications rather than
// blocking the turn loop.
func (a *Agent) Subscribe() (int, <-chan Notification) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	id := a.nextSub
	a.nextSub++
	ch := make(chan Notification, 64)
	a.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (a *Agent) Unsubscribe(id int) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	if ch, ok := a.subs[id]; ok {
		delete(a.subs, id)
		close(ch)
	}
}

// Close aborts any turn in progress, releases all subscribers, and runs the
// OnClose hook. It is idempotent; after Close, SendMessage fails with
// ErrClosed.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancel := a.turnCancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	a.subMu.Lock()
	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
	a.subMu.Unlock()

	if a.cfg.OnClose != nil {
		return a.cfg.OnClose()
	}
	return nil
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
	a.notify(Notification{Type: NotificationStateChange, State: s})
}

func (a *Agent) notify(n Notification) {
	n.AgentID = a.cfg.ID
	n.ThreadID = a.cfg.ThreadID
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
