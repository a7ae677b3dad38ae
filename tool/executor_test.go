package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/logging"
)

func echoTool() Tool {
	return NewFunctionTool("echo", "Echo text back.",
		func(execCtx *ExecContext, args map[string]any) (any, error) {
			text, _ := args["text"].(string)
			return text, nil
		},
		func(o *FunctionToolOptions) {
			o.Parameters = map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
				"required": []string{"text"},
			}
		})
}

func blockingTool(started chan<- string) Tool {
	return NewFunctionTool("block", "Block until the turn is aborted.",
		func(execCtx *ExecContext, args map[string]any) (any, error) {
			if started != nil {
				started <- execCtx.CallID()
			}
			<-execCtx.Done()
			return nil, execCtx.Err()
		})
}

func newExecCtx(ctx context.Context) *ExecContext {
	return NewExecContext(ctx, ExecContextOptions{})
}

func TestExecuteLogsSettlement(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.NewRuntimeLogger(&logging.Config{
		Level:  slog.LevelDebug,
		Format: "json",
		Output: buf,
	}).WithComponent("executor")

	exec := NewExecutor(NewRegistry(echoTool()))
	execCtx := NewExecContext(context.Background(), ExecContextOptions{Logger: logger})

	exec.Execute(execCtx, core.ToolCall{ID: "c1", Name: "echo", Arguments: `{"text":"hi"}`})
	exec.Execute(execCtx, core.ToolCall{ID: "c2", Name: "missing", Arguments: `{}`})

	var recs []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(line, &rec))
		recs = append(recs, rec)
	}
	require.Len(t, recs, 2)
	assert.Equal(t, "tool call settled", recs[0]["msg"])
	assert.Equal(t, "executor", recs[0]["component"])
	assert.Equal(t, "echo", recs[0]["tool"])
	assert.Equal(t, "c1", recs[0]["call_id"])
	assert.Equal(t, "completed", recs[0]["status"])

	assert.Equal(t, "ERROR", recs[1]["level"], "failed settlements log at error level")
	assert.Equal(t, "failed", recs[1]["status"])
}

func TestExecuteCompletes(t *testing.T) {
	exec := NewExecutor(NewRegistry(echoTool()))
	res := exec.Execute(newExecCtx(context.Background()), core.ToolCall{
		ID:        "c1",
		Name:      "echo",
		Arguments: `{"text":"hello"}`,
	})
	assert.Equal(t, "c1", res.ID)
	assert.Equal(t, core.ToolStatusCompleted, res.Status)
	assert.Equal(t, "hello", res.Content)
}

func TestExecuteUnknownToolFails(t *testing.T) {
	exec := NewExecutor(NewRegistry())
	res := exec.Execute(newExecCtx(context.Background()), core.ToolCall{ID: "c1", Name: "nope"})
	assert.Equal(t, core.ToolStatusFailed, res.Status)
	assert.Contains(t, res.Content, "unknown tool")
}

func TestExecuteValidationFailure(t *testing.T) {
	exec := NewExecutor(NewRegistry(echoTool()))

	res := exec.Execute(newExecCtx(context.Background()), core.ToolCall{
		ID: "c1", Name: "echo", Arguments: `{}`,
	})
	assert.Equal(t, core.ToolStatusFailed, res.Status)
	assert.Contains(t, res.Content, "required field is missing")

	res = exec.Execute(newExecCtx(context.Background()), core.ToolCall{
		ID: "c2", Name: "echo", Arguments: `{"text":42}`,
	})
	assert.Equal(t, core.ToolStatusFailed, res.Status)

	res = exec.Execute(newExecCtx(context.Background()), core.ToolCall{
		ID: "c3", Name: "echo", Arguments: `not json`,
	})
	assert.Equal(t, core.ToolStatusFailed, res.Status)
	assert.Contains(t, res.Content, "invalid arguments")
}

func TestExecutePanicBecomesFailed(t *testing.T) {
	boom := NewFunctionTool("boom", "Always panics.",
		func(execCtx *ExecContext, args map[string]any) (any, error) {
			panic("kaboom")
		})
	exec := NewExecutor(NewRegistry(boom))
	res := exec.Execute(newExecCtx(context.Background()), core.ToolCall{ID: "c1", Name: "boom"})
	assert.Equal(t, core.ToolStatusFailed, res.Status)
	assert.Contains(t, res.Content, "kaboom")
}

func TestExecuteDenied(t *testing.T) {
	var invoked atomic.Bool
	guarded := NewFunctionTool("guarded", "Should never run.",
		func(execCtx *ExecContext, args map[string]any) (any, error) {
			invoked.Store(true)
			return "ran", nil
		})
	exec := NewExecutor(NewRegistry(guarded), func(o *ExecutorOptions) {
		o.Approver = FuncApprover(func(execCtx *ExecContext, call core.ToolCall) (bool, string) {
			return false, "operator rejected the call"
		})
	})
	res := exec.Execute(newExecCtx(context.Background()), core.ToolCall{ID: "c1", Name: "guarded"})
	assert.Equal(t, core.ToolStatusDenied, res.Status)
	assert.Equal(t, "operator rejected the call", res.Content)
	assert.False(t, invoked.Load(), "denied tool must not run")
}

func TestExecuteAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := NewExecutor(NewRegistry(echoTool()))
	res := exec.Execute(newExecCtx(ctx), core.ToolCall{
		ID: "c1", Name: "echo", Arguments: `{"text":"hi"}`,
	})
	assert.Equal(t, core.ToolStatusAborted, res.Status)
}

func TestExecuteBatchAllSettleOnce(t *testing.T) {
	exec := NewExecutor(NewRegistry(echoTool()), func(o *ExecutorOptions) {
		o.MaxConcurrent = 3
	})

	const n = 20
	calls := make([]core.ToolCall, 0, n)
	for i := 0; i < n; i++ {
		calls = append(calls, core.ToolCall{
			ID:        fmt.Sprintf("c%d", i),
			Name:      "echo",
			Arguments: fmt.Sprintf(`{"text":"m%d"}`, i),
		})
	}

	seen := make(map[string]int)
	for res := range exec.ExecuteBatch(newExecCtx(context.Background()), calls) {
		seen[res.ID]++
		assert.Equal(t, core.ToolStatusCompleted, res.Status)
	}
	require.Len(t, seen, n, "every call settles")
	for id, count := range seen {
		assert.Equal(t, 1, count, "call %s settled more than once", id)
	}
}

func TestExecuteBatchAbortMidFlight(t *testing.T) {
	started := make(chan string, 1)
	fast := NewFunctionTool("fast", "Finish immediately.",
		func(execCtx *ExecContext, args map[string]any) (any, error) {
			return "done", nil
		})
	exec := NewExecutor(NewRegistry(fast, blockingTool(started)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := exec.ExecuteBatch(newExecCtx(ctx), []core.ToolCall{
		{ID: "a", Name: "fast"},
		{ID: "b", Name: "block"},
	})

	// Abort the turn once the blocking call is actually running.
	<-started
	cancel()

	byID := make(map[string]core.ToolResult)
	for res := range results {
		byID[res.ID] = res
	}
	require.Len(t, byID, 2)
	// The fast call may complete before the abort or be aborted with it;
	// both are terminal. The blocked call must settle as aborted.
	assert.Contains(t, []core.ToolStatus{core.ToolStatusCompleted, core.ToolStatusAborted}, byID["a"].Status)
	assert.Equal(t, core.ToolStatusAborted, byID["b"].Status)
}

func TestExecuteBatchCancelledContextStillSettles(t *testing.T) {
	exec := NewExecutor(NewRegistry(echoTool()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := []core.ToolCall{
		{ID: "a", Name: "echo", Arguments: `{"text":"x"}`},
		{ID: "b", Name: "echo", Arguments: `{"text":"y"}`},
	}
	count := 0
	for res := range exec.ExecuteBatch(newExecCtx(ctx), calls) {
		count++
		assert.Equal(t, core.ToolStatusAborted, res.Status)
	}
	assert.Equal(t, 2, count)
}

func TestExecuteBatchEmpty(t *testing.T) {
	exec := NewExecutor(NewRegistry())
	results := exec.ExecuteBatch(newExecCtx(context.Background()), nil)
	select {
	case _, ok := <-results:
		assert.False(t, ok, "channel closes without results")
	case <-time.After(time.Second):
		t.Fatal("channel never closed")
	}
}

func TestExecuteRendersStructuredResults(t *testing.T) {
	structured := NewFunctionTool("structured", "Return a map.",
		func(execCtx *ExecContext, args map[string]any) (any, error) {
			return map[string]any{"count": 3}, nil
		})
	exec := NewExecutor(NewRegistry(structured))
	res := exec.Execute(newExecCtx(context.Background()), core.ToolCall{ID: "c1", Name: "structured"})
	require.Equal(t, core.ToolStatusCompleted, res.Status)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &decoded))
	assert.Equal(t, float64(3), decoded["count"])
}

func TestSessionApproverRemembersGrants(t *testing.T) {
	var prompts atomic.Int32
	approver := NewSessionApprover(FuncApprover(func(execCtx *ExecContext, call core.ToolCall) (bool, string) {
		prompts.Add(1)
		return call.Name != "forbidden", "not allowed"
	}))
	forbidden := NewFunctionTool("forbidden", "Never approved.",
		func(execCtx *ExecContext, args map[string]any) (any, error) {
			return "ran", nil
		})
	exec := NewExecutor(NewRegistry(echoTool(), forbidden), func(o *ExecutorOptions) {
		o.Approver = approver
	})

	execCtx := newExecCtx(context.Background())
	for i := 0; i < 3; i++ {
		res := exec.Execute(execCtx, core.ToolCall{
			ID: fmt.Sprintf("c%d", i), Name: "echo", Arguments: `{"text":"x"}`,
		})
		assert.Equal(t, core.ToolStatusCompleted, res.Status)
	}
	assert.Equal(t, int32(1), prompts.Load(), "grant is remembered after the first approval")

	// Denials are not remembered; each attempt prompts again.
	res := exec.Execute(execCtx, core.ToolCall{ID: "f1", Name: "forbidden"})
	assert.Equal(t, core.ToolStatusDenied, res.Status)
	res = exec.Execute(execCtx, core.ToolCall{ID: "f2", Name: "forbidden"})
	assert.Equal(t, core.ToolStatusDenied, res.Status)
	assert.Equal(t, int32(3), prompts.Load())
}

func TestExecContextEnvIsolation(t *testing.T) {
	execCtx := NewExecContext(context.Background(), ExecContextOptions{
		Env:     []string{"HOME=/home/u", "PATH=/usr/bin"},
		WorkDir: "/tmp",
	})
	assert.Equal(t, "/home/u", execCtx.Getenv("HOME"))

	env := execCtx.Environ()
	env[0] = "HOME=/mutated"
	assert.Equal(t, "/home/u", execCtx.Getenv("HOME"), "snapshot must be immutable")

	clone := execCtx.WithCall("c1")
	assert.Equal(t, "c1", clone.CallID())
	assert.Equal(t, "", execCtx.CallID())
	assert.Equal(t, "/tmp", clone.WorkDir())
}
