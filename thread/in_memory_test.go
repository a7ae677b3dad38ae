package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/internal/testutil"
)

func TestInMemoryStoreCreateGet(t *testing.T) {
	store := NewInMemoryStore()

	th, err := store.Create("t1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "t1", th.ID)
	assert.Equal(t, "s1", th.SessionID)

	_, err = store.Create("t1", "s1")
	assert.Error(t, err, "duplicate create must fail")

	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStoreAppendOrdering(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Create("t1", "s1")
	require.NoError(t, err)

	first, err := store.Append("t1", core.UserMessageData{Text: "one"})
	require.NoError(t, err)
	second, err := store.Append("t1", core.UserMessageData{Text: "two"})
	require.NoError(t, err)

	events, err := store.Events("t1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
	assert.False(t, events[1].Timestamp.Before(events[0].Timestamp))
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	store := NewInMemoryStore()
	_, err := store.Create("t1", "s1")
	require.NoError(t, err)
	_, err = store.Append("t1", core.UserMessageData{Text: "hi"})
	require.NoError(t, err)

	events, err := store.Events("t1")
	require.NoError(t, err)
	events[0] = core.Event{}

	again, err := store.Events("t1")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, core.EventTypeUserMessage, again[0].Type)

	th, err := store.Get("t1")
	require.NoError(t, err)
	th.Append(core.NewEvent("t1", core.UserMessageData{Text: "rogue"}))
	again, err = store.Events("t1")
	require.NoError(t, err)
	assert.Len(t, again, 1, "mutating a returned thread must not affect the store")
}

func TestSeededThreadView(t *testing.T) {
	store := NewInMemoryStore()
	b := testutil.NewThreadBuilder("t1").
		Turns(2, core.TokenUsage{TotalTokens: 10}).
		ToolExchange("c1", "search", `{"pattern":"x"}`, "3 matches")
	require.NoError(t, b.Seed(store, "s1"))

	events, err := store.Events("t1")
	require.NoError(t, err)
	view := core.BuildView(events)
	assert.Len(t, view, 7)
	assert.Equal(t, core.EventTypeToolResult, view[6].Type)
	assert.Equal(t, 20, core.ViewUsage(view).TotalTokens)
}
