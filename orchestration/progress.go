package orchestration

import (
	"sort"
	"sync"
	"time"
)

// ProgressStatus describes how an agent's assigned work is going.
type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressNeedsHelp  ProgressStatus = "needs_help"
	ProgressDone       ProgressStatus = "done"
	ProgressFailed     ProgressStatus = "failed"
)

// AgentProgress is one agent's reported state.
type AgentProgress struct {
	AgentID string
	Status  ProgressStatus
	Percent float64
	Note    string
	Updated time.Time
}

// Summary aggregates a session's progress. NeedsAttention lists agents that
// are blocked or failed, in id order.
type Summary struct {
	Agents         []AgentProgress
	OverallPercent float64
	NeedsAttention []string
}

// ProgressTrackerOptions configures a ProgressTracker.
type ProgressTrackerOptions struct {
	// Interval is the period between pushed summaries. Defaults to 5s.
	Interval time.Duration
}

// ProgressTracker aggregates per-agent progress into session-wide summaries
// and pushes them to listeners on a ticker. Close stops the ticker and
// closes every listener channel; tests and sessions must call it or the
// ticker goroutine leaks.
type ProgressTracker struct {
	interval time.Duration

	mu        sync.Mutex
	agents    map[string]AgentProgress
	listeners map[int]chan Summary
	nextSub   int
	closed    bool
	stop      chan struct{}
	stopped   chan struct{}
}

// NewProgressTracker starts a tracker and its broadcast ticker.
func NewProgressTracker(optFns ...func(*ProgressTrackerOptions)) *ProgressTracker {
	opts := ProgressTrackerOptions{Interval: 5 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	t := &ProgressTracker{
		interval:  opts.Interval,
		agents:    make(map[string]AgentProgress),
		listeners: make(map[int]chan Summary),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *ProgressTracker) run() {
	defer close(t.stopped)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.broadcast()
		case <-t.stop:
			return
		}
	}
}

// Update records an agent's progress. Percent is clamped to [0, 100].
func (t *ProgressTracker) Update(agentID string, status ProgressStatus, percent float64, note string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if status == ProgressDone {
		percent = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.agents[agentID] = AgentProgress{
		AgentID: agentID,
		Status:  status,
		Percent: percent,
		Note:    note,
		Updated: time.Now().UTC(),
	}
}

// Remove forgets an agent, e.g. after it is closed.
func (t *ProgressTracker) Remove(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.agents, agentID)
}

// Summary returns the current aggregate.
func (t *ProgressTracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summaryLocked()
}

func (t *ProgressTracker) summaryLocked() Summary {
	ids := make([]string, 0, len(t.agents))
	for id := range t.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s := Summary{Agents: make([]AgentProgress, 0, len(ids))}
	var total float64
	for _, id := range ids {
		p := t.agents[id]
		s.Agents = append(s.Agents, p)
		total += p.Percent
		if p.Status == ProgressNeedsHelp || p.Status == ProgressFailed {
			s.NeedsAttention = append(s.NeedsAttention, id)
		}
	}
	if len(ids) > 0 {
		s.OverallPercent = total / float64(len(ids))
	}
	return s
}

// Subscribe registers a listener for pushed summaries. The channel is
// closed by Unsubscribe or Close. Slow listeners miss summaries rather than
// blocking the ticker.
func (t *ProgressTracker) Subscribe() (int, <-chan Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSub
	t.nextSub++
	ch := make(chan Summary, 8)
	t.listeners[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (t *ProgressTracker) Unsubscribe(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.listeners[id]; ok {
		delete(t.listeners, id)
		close(ch)
	}
}

func (t *ProgressTracker) broadcast() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	s := t.summaryLocked()
	for _, ch := range t.listeners {
		select {
		case ch <- s:
		default:
		}
	}
}

// Close stops the ticker and releases every listener. It is idempotent.
func (t *ProgressTracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for id, ch := range t.listeners {
		delete(t.listeners, id)
		close(ch)
	}
	t.mu.Unlock()

	close(t.stop)
	<-t.stopped
}
