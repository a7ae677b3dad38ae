package core

// BuildView derives the conversation view from a thread's raw event sequence.
//
// The view is a projection, recomputed on demand and never persisted:
//   - If one or more compaction events exist, only the latest matters. The
//     view is its CompactedEvents followed by every event appended after it;
//     everything earlier is ignored.
//   - Duplicate tool_result events sharing a call id collapse to the highest
//     precedence outcome (denied > failed > aborted > completed), keeping the
//     position of the first occurrence.
func BuildView(events []Event) []Event {
	start := 0
	var view []Event
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type != EventTypeCompaction {
			continue
		}
		if d, ok := events[i].Data.(CompactionData); ok {
			view = append(view, d.CompactedEvents...)
			start = i + 1
		}
		break
	}
	view = append(view, events[start:]...)
	return dedupeToolResults(view)
}

// dedupeToolResults collapses same-id tool_result events by status
// precedence. The winning payload occupies the slot of the first occurrence
// so relative ordering of distinct calls is stable.
func dedupeToolResults(events []Event) []Event {
	slot := make(map[string]int)
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		d, ok := ev.Data.(ToolResultData)
		if !ok {
			out = append(out, ev)
			continue
		}
		idx, seen := slot[d.Result.ID]
		if !seen {
			slot[d.Result.ID] = len(out)
			out = append(out, ev)
			continue
		}
		prev := out[idx].Data.(ToolResultData)
		if d.Result.Status.Supersedes(prev.Result.Status) {
			out[idx] = ev
		}
	}
	return out
}

// ViewUsage sums the token usage carried by the events of a view. It is the
// value a compaction stores as its replacement usage; live accounting uses
// the budget tracker, never a rescan.
func ViewUsage(events []Event) TokenUsage {
	var total TokenUsage
	for _, ev := range events {
		if u, ok := ev.Usage(); ok {
			total = total.Add(u)
		}
	}
	return total
}
