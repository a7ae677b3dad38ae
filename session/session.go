// Package session groups a coordinator agent and its delegates under one
// ownership registry sharing a thread store, and tears them all down
// together.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/threadline-ai/threadline/agent"
	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/logging"
	"github.com/threadline-ai/threadline/thread"
)

// ErrDestroyed is returned when a destroyed session is asked to spawn.
var ErrDestroyed = errors.New("session destroyed")

// Options configures a Session.
type Options struct {
	// Logger receives session lifecycle records. Nil disables logging.
	Logger logging.Logger
}

// Session owns the agents working on one task: a coordinator plus any
// delegates it spawns. All agents share the session's thread store; delegate
// thread ids derive from the session id so a thread's ancestry is readable
// from its id alone. Destroy tears every agent down, tolerating individual
// failures.
type Session struct {
	id     string
	store  thread.Store
	logger logging.Logger

	mu           sync.Mutex
	coordinator  *agent.Agent
	delegates    map[string]*agent.Agent
	nextDelegate int
	destroyed    bool
}

// New creates an empty session over the given store.
func New(id string, store thread.Store, optFns ...func(*Options)) *Session {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Session{
		id:        id,
		store:     store,
		logger:    logger,
		delegates: make(map[string]*agent.Agent),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Store returns the session's thread store.
func (s *Session) Store() thread.Store { return s.store }

// SpawnCoordinator creates the session's coordinator agent. The config's
// session id and store are overridden with the session's own; the thread id
// defaults to the session id.
func (s *Session) SpawnCoordinator(cfg agent.Config) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.coordinator != nil {
		return nil, fmt.Errorf("session %s already has a coordinator", s.id)
	}
	if cfg.ThreadID == "" {
		cfg.ThreadID = s.id
	}
	a, err := s.newAgentLocked(cfg, agent.New)
	if err != nil {
		return nil, err
	}
	s.coordinator = a
	return a, nil
}

// ResumeCoordinator reattaches a coordinator over an existing thread,
// reconstructing a session from persisted events.
func (s *Session) ResumeCoordinator(cfg agent.Config) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.coordinator != nil {
		return nil, fmt.Errorf("session %s already has a coordinator", s.id)
	}
	if cfg.ThreadID == "" {
		cfg.ThreadID = s.id
	}
	a, err := s.newAgentLocked(cfg, agent.Resume)
	if err != nil {
		return nil, err
	}
	s.coordinator = a
	return a, nil
}

// Spawn creates a delegate agent on a fresh delegate thread. The thread id
// is derived from the session id and a per-session counter; the delegate
// inherits the session id and store.
func (s *Session) Spawn(cfg agent.Config) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil, ErrDestroyed
	}
	s.nextDelegate++
	cfg.ThreadID = core.DelegateThreadID(s.id, s.nextDelegate)
	if cfg.ID == "" {
		cfg.ID = cfg.ThreadID
	}
	a, err := s.newAgentLocked(cfg, agent.New)
	if err != nil {
		return nil, err
	}
	s.delegates[a.ID()] = a
	s.logger.Debug("delegate spawned",
		"session_id", s.id, "agent_id", a.ID(), "thread_id", a.ThreadID())
	return a, nil
}

// newAgentLocked fills in session-owned config fields and chains the
// agent's close hook to deregister it from the registry.
func (s *Session) newAgentLocked(cfg agent.Config, construct func(agent.Config) (*agent.Agent, error)) (*agent.Agent, error) {
	cfg.SessionID = s.id
	if cfg.Store == nil {
		cfg.Store = s.store
	}
	userClose := cfg.OnClose
	var agentID string
	cfg.OnClose = func() error {
		s.deregister(agentID)
		if userClose != nil {
			return userClose()
		}
		return nil
	}
	a, err := construct(cfg)
	if err != nil {
		return nil, err
	}
	agentID = a.ID()
	return a, nil
}

func (s *Session) deregister(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coordinator != nil && s.coordinator.ID() == agentID {
		s.coordinator = nil
		return
	}
	delete(s.delegates, agentID)
}

// Coordinator returns the coordinator agent, or nil before SpawnCoordinator.
func (s *Session) Coordinator() *agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator
}

// Get looks an agent up by id, coordinator included.
func (s *Session) Get(agentID string) (*agent.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coordinator != nil && s.coordinator.ID() == agentID {
		return s.coordinator, true
	}
	a, ok := s.delegates[agentID]
	return a, ok
}

// Agents returns every live agent, coordinator first, delegates in id order.
func (s *Session) Agents() []*agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*agent.Agent, 0, len(s.delegates)+1)
	if s.coordinator != nil {
		out = append(out, s.coordinator)
	}
	ids := make([]string, 0, len(s.delegates))
	for id := range s.delegates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, s.delegates[id])
	}
	return out
}

// Destroy closes every agent concurrently and empties the registry. One
// agent's failing or panicking close does not block the others; all failures
// are joined into the returned error. Destroy is idempotent.
func (s *Session) Destroy() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	agents := make([]*agent.Agent, 0, len(s.delegates)+1)
	if s.coordinator != nil {
		agents = append(agents, s.coordinator)
	}
	for _, a := range s.delegates {
		agents = append(agents, a)
	}
	s.coordinator = nil
	s.delegates = make(map[string]*agent.Agent)
	s.mu.Unlock()

	errs := make([]error, len(agents))
	var g errgroup.Group
	for i, a := range agents {
		i, a := i, a
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("close agent %s: panic: %v", a.ID(), r)
				}
			}()
			if err := a.Close(); err != nil {
				errs[i] = fmt.Errorf("close agent %s: %w", a.ID(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("session teardown finished with failures", "session_id", s.id, "error", err)
		return err
	}
	s.logger.Debug("session destroyed", "session_id", s.id, "agents", len(agents))
	return nil
}
