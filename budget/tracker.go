// Package budget implements incremental token accounting against a context
// ceiling. A Tracker is the sole authoritative "current usage" source for its
// agent; it is compaction-aware and never rescans the thread for live
// reporting.
package budget

import (
	"fmt"
	"sync"

	"github.com/threadline-ai/threadline/core"
)

// DefaultCompactionThreshold is the fraction of the context limit at which
// NearLimit flips true.
const DefaultCompactionThreshold = 0.8

// Snapshot is a point-in-time view of accumulated usage.
type Snapshot struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Limit            int     `json:"limit"`
	PercentUsed      float64 `json:"percent_used"`
	NearLimit        bool    `json:"near_limit"`
}

// Tracker accumulates token usage strictly incrementally since the last
// reset. Safe for concurrent access.
type Tracker struct {
	mu        sync.Mutex
	limit     int
	threshold float64
	usage     core.TokenUsage
}

// Options configures a Tracker.
type Options struct {
	// Threshold is the fraction of Limit at which NearLimit triggers.
	Threshold float64
}

// NewTracker creates a tracker with the given context ceiling. A limit of 0
// disables NearLimit (PercentUsed stays 0).
func NewTracker(limit int, optFns ...func(o *Options)) *Tracker {
	opts := Options{Threshold: DefaultCompactionThreshold}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Tracker{limit: limit, threshold: opts.Threshold}
}

// RecordUsage adds one model response's usage to the running totals.
func (t *Tracker) RecordUsage(u core.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = t.usage.Add(u)
}

// Usage returns the current snapshot.
func (t *Tracker) Usage() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	s := Snapshot{
		PromptTokens:     t.usage.PromptTokens,
		CompletionTokens: t.usage.CompletionTokens,
		TotalTokens:      t.usage.TotalTokens,
		Limit:            t.limit,
	}
	if t.limit > 0 {
		s.PercentUsed = float64(s.TotalTokens) / float64(t.limit)
		s.NearLimit = s.PercentUsed >= t.threshold
	}
	return s
}

// HandleCompaction resets the counters to exactly the usage carried by the
// compaction's replacement events. Pre-compaction usage is discarded, never
// retained: post-compaction totals reflect what the compacted view costs,
// so they fall rather than rise.
func (t *Tracker) HandleCompaction(ev core.Event) error {
	d, ok := ev.Data.(core.CompactionData)
	if !ok {
		return fmt.Errorf("budget: event %s is %s, not a compaction", ev.ID, ev.Type)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = d.Usage
	return nil
}

// Reset clears accumulated usage. Used when a thread is replaced wholesale,
// e.g. on session reconstruction.
func (t *Tracker) Reset(u core.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = u
}
