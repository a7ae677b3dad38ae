package thread

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/internal/util"
	"github.com/threadline-ai/threadline/model"
)

// Store is a thread store that supports compaction. Agents depend on this
// interface; InMemoryStore is the in-process implementation.
type Store interface {
	core.ThreadStore
	Compact(ctx context.Context, threadID string, strategy Strategy) (core.Event, error)
}

// Strategy produces a compacted replacement for a thread view. Compact
// receives the current view (after any prior compaction has been applied)
// and returns the replacement event sequence to substitute for it. The
// replacement must be self-contained: replaying it alone reconstructs the
// context an agent needs to continue the conversation.
type Strategy interface {
	// ID identifies the strategy; it is recorded on the compaction event.
	ID() string

	// Compact returns the replacement events for the given view.
	Compact(ctx context.Context, view []core.Event) ([]core.Event, error)
}

// Compact runs a strategy over the thread's current view and appends the
// resulting compaction event. The thread must not receive appends between
// the view read and the compaction append; callers compact at turn
// boundaries when the agent is the sole writer. A concurrent append is
// detected and fails the compaction rather than dropping events.
func (s *InMemoryStore) Compact(ctx context.Context, threadID string, strategy Strategy) (core.Event, error) {
	s.mu.RLock()
	th, ok := s.threads[threadID]
	if !ok {
		s.mu.RUnlock()
		return core.Event{}, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	baseLen := th.Len()
	view := th.View()
	s.mu.RUnlock()

	replacement, err := strategy.Compact(ctx, view)
	if err != nil {
		return core.Event{}, fmt.Errorf("compaction strategy %s: %w", strategy.ID(), err)
	}

	var usage core.TokenUsage
	for _, ev := range replacement {
		if u, ok := ev.Usage(); ok {
			usage = usage.Add(u)
		}
	}
	data := core.CompactionData{
		StrategyID:         strategy.ID(),
		OriginalEventCount: len(view),
		CompactedEvents:    replacement,
		Usage:              usage,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok = s.threads[threadID]
	if !ok {
		return core.Event{}, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	if th.Len() != baseLen {
		return core.Event{}, fmt.Errorf("thread %s changed during compaction", threadID)
	}
	ev := core.NewEvent(threadID, data)
	th.Append(ev)
	return ev, nil
}

// SummaryOptions configures SummaryStrategy.
type SummaryOptions struct {
	// KeepRecent is the number of trailing view events carried over verbatim
	// after the summary. Tool call/result pairs are never split: the cut
	// point moves earlier until the kept suffix starts outside a pair.
	KeepRecent int

	// MaxSummaryChars truncates the model's summary when it exceeds this
	// length. Zero means no limit.
	MaxSummaryChars int

	// Instructions overrides the default summarization instructions.
	Instructions string
}

const defaultSummaryInstructions = `You summarize conversation history for an AI agent. ` +
	`Produce a concise summary of the conversation so far, preserving: user goals and constraints, ` +
	`decisions made, important tool outputs, and any unresolved questions. ` +
	`Write in third person. Do not add commentary.`

// SummaryStrategy compacts a view by asking a model to summarize the older
// portion and keeping the most recent events verbatim. If the model call
// fails, it falls back to truncation: the kept suffix alone with a short
// notice of how many events were dropped. Cancellation is not a failure in
// that sense; an aborted or timed-out summarization returns the error so
// nothing is recorded.
type SummaryStrategy struct {
	model model.Model
	opts  SummaryOptions
}

// NewSummaryStrategy constructs a summary strategy backed by the given model.
func NewSummaryStrategy(m model.Model, opts SummaryOptions) *SummaryStrategy {
	if opts.KeepRecent <= 0 {
		opts.KeepRecent = 10
	}
	if opts.Instructions == "" {
		opts.Instructions = defaultSummaryInstructions
	}
	return &SummaryStrategy{model: m, opts: opts}
}

// ID implements Strategy.
func (s *SummaryStrategy) ID() string { return "summary" }

// Compact implements Strategy.
func (s *SummaryStrategy) Compact(ctx context.Context, view []core.Event) ([]core.Event, error) {
	cut := splitPoint(view, s.opts.KeepRecent)
	older, kept := view[:cut], view[cut:]
	if len(older) == 0 {
		// Nothing old enough to summarize; keep the view as-is.
		return cloneEvents(view), nil
	}

	summary, usage, err := s.summarize(ctx, older)
	if err != nil {
		// A cancelled turn must not record a lossy truncation; surface the
		// cancellation so no compaction event is appended.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return truncateFallback(view, older, kept), nil
	}
	summary, _ = util.TruncateString(summary, s.opts.MaxSummaryChars)

	threadID := view[0].ThreadID
	out := make([]core.Event, 0, len(kept)+1)
	out = append(out, core.NewEvent(threadID, core.UserMessageData{
		Text: "[Conversation summary]\n" + summary,
	}))
	out = append(out, cloneEvents(kept)...)
	// Attribute the summarization cost so budget accounting stays truthful
	// after the tracker resets to the compacted view's usage.
	if !usage.IsZero() {
		out = append(out, core.NewEvent(threadID, core.AgentMessageData{Usage: usage}))
	}
	return out, nil
}

func (s *SummaryStrategy) summarize(ctx context.Context, older []core.Event) (string, core.TokenUsage, error) {
	resp, err := s.model.CreateResponse(ctx, model.Request{
		Instructions: s.opts.Instructions,
		Events:       older,
	})
	if err != nil {
		return "", core.TokenUsage{}, err
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", core.TokenUsage{}, fmt.Errorf("empty summary")
	}
	return resp.Content, resp.Usage, nil
}

// splitPoint returns the index separating the summarized prefix from the
// kept suffix, moved earlier as needed so the suffix never begins with a
// tool result whose call sits in the prefix.
func splitPoint(view []core.Event, keepRecent int) int {
	cut := len(view) - keepRecent
	if cut <= 0 {
		return 0
	}
	for cut > 0 {
		if t := view[cut].Type; t != core.EventTypeToolResult && t != core.EventTypeToolCall {
			break
		}
		cut--
	}
	// An agent message that requested tools must travel with its results.
	for cut > 0 {
		if calls := view[cut-1].ToolCalls(); len(calls) == 0 {
			break
		}
		cut--
	}
	return cut
}

func truncateFallback(view, older, kept []core.Event) []core.Event {
	threadID := view[0].ThreadID
	out := make([]core.Event, 0, len(kept)+1)
	out = append(out, core.NewEvent(threadID, core.UserMessageData{
		Text: fmt.Sprintf("[%d earlier events omitted]", len(older)),
	}))
	out = append(out, cloneEvents(kept)...)
	return out
}

func cloneEvents(events []core.Event) []core.Event {
	out := make([]core.Event, len(events))
	copy(out, events)
	return out
}

var _ Store = (*InMemoryStore)(nil)
