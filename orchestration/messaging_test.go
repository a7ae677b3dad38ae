package orchestration

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPriorityDelivery(t *testing.T) {
	bus := NewBus()
	bus.Register("a1")

	require.NoError(t, bus.Send(Message{From: "x", To: "a1", Type: MessageStatus, Priority: PriorityLow, Payload: "low"}))
	require.NoError(t, bus.Send(Message{From: "x", To: "a1", Type: MessageStatus, Priority: PriorityNormal, Payload: "normal-1"}))
	require.NoError(t, bus.Send(Message{From: "x", To: "a1", Type: MessageHelpRequest, Priority: PriorityHigh, Payload: "urgent"}))
	require.NoError(t, bus.Send(Message{From: "x", To: "a1", Type: MessageStatus, Priority: PriorityNormal, Payload: "normal-2"}))

	var payloads []string
	for _, msg := range bus.Drain("a1") {
		payloads = append(payloads, msg.Payload)
	}
	assert.Equal(t, []string{"urgent", "normal-1", "normal-2", "low"}, payloads,
		"highest priority first, FIFO within a priority")
}

func TestBusTruncatesOversizedPayloads(t *testing.T) {
	bus := NewBus(func(o *BusOptions) { o.MaxPayloadBytes = 10 })
	bus.Register("a1")

	require.NoError(t, bus.Send(Message{To: "a1", Payload: strings.Repeat("x", 100)}))
	msg, ok := bus.Receive("a1")
	require.True(t, ok)
	assert.Len(t, msg.Payload, 10)
	assert.True(t, msg.Truncated, "oversized payloads are flagged, not rejected")

	require.NoError(t, bus.Send(Message{To: "a1", Payload: "short"}))
	msg, ok = bus.Receive("a1")
	require.True(t, ok)
	assert.False(t, msg.Truncated)
}

func TestBusTruncationKeepsPayloadValidUTF8(t *testing.T) {
	bus := NewBus(func(o *BusOptions) { o.MaxPayloadBytes = 10 })
	bus.Register("a1")

	// The 10th byte lands inside a multi-byte rune; the cut backs up to the
	// rune boundary instead of leaving a mangled tail.
	require.NoError(t, bus.Send(Message{To: "a1", Payload: "progress ☑ done"}))
	msg, ok := bus.Receive("a1")
	require.True(t, ok)
	assert.True(t, msg.Truncated)
	assert.True(t, utf8.ValidString(msg.Payload))
	assert.Equal(t, "progress ", msg.Payload)
}

func TestBusUnknownRecipient(t *testing.T) {
	bus := NewBus()
	err := bus.Send(Message{To: "ghost"})
	require.Error(t, err)
}

func TestBusBoundedInbox(t *testing.T) {
	bus := NewBus(func(o *BusOptions) { o.InboxCapacity = 2 })
	bus.Register("a1")

	require.NoError(t, bus.Send(Message{To: "a1", Priority: PriorityLow, Payload: "old-low"}))
	require.NoError(t, bus.Send(Message{To: "a1", Priority: PriorityNormal, Payload: "normal"}))

	// A high-priority message evicts the lowest-priority pending entry.
	require.NoError(t, bus.Send(Message{To: "a1", Priority: PriorityHigh, Payload: "urgent"}))
	assert.Equal(t, 2, bus.Pending("a1"))

	// A low-priority message into a full inbox of higher priorities is dropped.
	require.NoError(t, bus.Send(Message{To: "a1", Priority: PriorityLow, Payload: "late-low"}))
	assert.Equal(t, 2, bus.Pending("a1"))

	var payloads []string
	for _, msg := range bus.Drain("a1") {
		payloads = append(payloads, msg.Payload)
	}
	assert.Equal(t, []string{"urgent", "normal"}, payloads)
}

func TestBusDeregister(t *testing.T) {
	bus := NewBus()
	bus.Register("a1")
	require.NoError(t, bus.Send(Message{To: "a1", Payload: "pending"}))
	bus.Deregister("a1")
	assert.Equal(t, 0, bus.Pending("a1"))
	require.Error(t, bus.Send(Message{To: "a1"}))
}

func TestBusAssignsIDAndTimestamp(t *testing.T) {
	bus := NewBus()
	bus.Register("a1")
	require.NoError(t, bus.Send(Message{To: "a1", Payload: "hi"}))
	msg, ok := bus.Receive("a1")
	require.True(t, ok)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}
