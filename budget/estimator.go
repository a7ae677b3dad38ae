package budget

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/threadline-ai/threadline/core"
)

// Estimator counts tokens in event text with a real tokenizer. It exists for
// offline compaction-policy analysis and for sizing compaction summaries;
// live reporting always goes through Tracker, which only accumulates
// provider-reported usage.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// NewEstimator selects a tokenizer for the given model name, falling back to
// cl100k_base for unknown models.
func NewEstimator(model string) (*Estimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("budget: get tokenizer: %w", err)
		}
	}
	return &Estimator{enc: enc}, nil
}

// CountText returns the token count of a string.
func (e *Estimator) CountText(text string) int {
	return len(e.enc.Encode(text, nil, nil))
}

// EstimateEvents returns the approximate prompt cost of replaying the given
// events, walking every textual payload including tool arguments and
// results. Compaction events recurse into their replacement events.
func (e *Estimator) EstimateEvents(events []core.Event) int {
	total := 0
	for _, ev := range events {
		switch d := ev.Data.(type) {
		case core.UserMessageData:
			total += e.CountText(d.Text)
		case core.AgentMessageData:
			total += e.CountText(d.Text)
			for _, call := range d.ToolCalls {
				total += e.CountText(call.Name) + e.CountText(call.Arguments)
			}
		case core.ToolCallData:
			total += e.CountText(d.Call.Name) + e.CountText(d.Call.Arguments)
		case core.ToolResultData:
			total += e.CountText(d.Result.Content)
		case core.CompactionData:
			total += e.EstimateEvents(d.CompactedEvents)
		}
	}
	return total
}
