package core

import (
	"encoding/json"
	"testing"
)

func TestEvent_JSONRoundTrip(t *testing.T) {
	ev := NewAgentMessageEvent("t1", "done", []ToolCall{{ID: "c1", Name: "shell", Arguments: `{"command":"ls"}`}}, TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Event
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.ID != ev.ID || back.ThreadID != "t1" || back.Type != EventTypeAgentMessage {
		t.Fatalf("envelope fields lost: %+v", back)
	}
	d, ok := back.Data.(AgentMessageData)
	if !ok {
		t.Fatalf("expected AgentMessageData, got %T", back.Data)
	}
	if d.Text != "done" || len(d.ToolCalls) != 1 || d.ToolCalls[0].Name != "shell" {
		t.Errorf("payload lost: %+v", d)
	}
	if d.Usage.TotalTokens != 15 {
		t.Errorf("usage lost: %+v", d.Usage)
	}
}

func TestEvent_CompactionRoundTrip(t *testing.T) {
	inner := NewUserMessageEvent("t1", "original request")
	ev := NewEvent("t1", CompactionData{
		StrategyID:         "summary",
		OriginalEventCount: 7,
		CompactedEvents:    []Event{inner},
		Usage:              TokenUsage{TotalTokens: 42},
	})

	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Event
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d, ok := back.Data.(CompactionData)
	if !ok {
		t.Fatalf("expected CompactionData, got %T", back.Data)
	}
	if d.OriginalEventCount != 7 || len(d.CompactedEvents) != 1 {
		t.Fatalf("compaction payload lost: %+v", d)
	}
	if inner2, ok := d.CompactedEvents[0].Data.(UserMessageData); !ok || inner2.Text != "original request" {
		t.Errorf("nested event payload lost: %+v", d.CompactedEvents[0].Data)
	}
}

func TestEvent_UnknownTypePreserved(t *testing.T) {
	raw := `{"id":"e1","thread_id":"t1","type":"plan_update","timestamp":"2026-01-02T03:04:05Z","data":{"step":3}}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rd, ok := ev.Data.(RawEventData)
	if !ok {
		t.Fatalf("expected RawEventData, got %T", ev.Data)
	}
	if rd.Type() != EventType("plan_update") {
		t.Errorf("type not preserved: %s", rd.Type())
	}

	// Re-encoding must not lose the foreign payload.
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	var again Event
	if err := json.Unmarshal(b, &again); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if string(again.Data.(RawEventData).Payload) != `{"step":3}` {
		t.Errorf("payload not preserved: %s", again.Data.(RawEventData).Payload)
	}
}

func TestToolStatus_Supersedes(t *testing.T) {
	order := []ToolStatus{ToolStatusCompleted, ToolStatusAborted, ToolStatusFailed, ToolStatusDenied}
	for i, lower := range order {
		for _, higher := range order[i+1:] {
			if !higher.Supersedes(lower) {
				t.Errorf("%s should supersede %s", higher, lower)
			}
			if lower.Supersedes(higher) {
				t.Errorf("%s should not supersede %s", lower, higher)
			}
		}
	}
	if ToolStatusDenied.Supersedes(ToolStatusDenied) {
		t.Error("equal statuses must not supersede each other")
	}
}

func TestDelegateThreadID(t *testing.T) {
	if got := DelegateThreadID("sess-1", 2); got != "sess-1.2" {
		t.Errorf("unexpected delegate id %q", got)
	}
}
