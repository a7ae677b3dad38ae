package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellToolRunsCommand(t *testing.T) {
	execCtx := NewExecContext(context.Background(), ExecContextOptions{
		Env:     []string{"GREETING=hi"},
		WorkDir: t.TempDir(),
	})
	shell := NewShellTool()

	out, err := shell.Call(execCtx, map[string]any{"command": "printf '%s' \"$GREETING\""})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestShellToolNonZeroExit(t *testing.T) {
	execCtx := NewExecContext(context.Background(), ExecContextOptions{WorkDir: t.TempDir()})
	shell := NewShellTool()

	_, err := shell.Call(execCtx, map[string]any{"command": "echo oops >&2; exit 3"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "command_failed", toolErr.Code)
	assert.Contains(t, toolErr.Message, "exit status 3")
	assert.Contains(t, toolErr.Message, "oops")
}

func TestShellToolAbortKillsProcess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	execCtx := NewExecContext(ctx, ExecContextOptions{WorkDir: t.TempDir()})
	shell := NewShellTool()

	done := make(chan error, 1)
	go func() {
		_, err := shell.Call(execCtx, map[string]any{"command": "sleep 30"})
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("command survived cancellation")
	}
}

func TestShellToolEmptyCommand(t *testing.T) {
	execCtx := NewExecContext(context.Background(), ExecContextOptions{})
	shell := NewShellTool()

	_, err := shell.Call(execCtx, map[string]any{"command": "  "})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "invalid_argument", toolErr.Code)
}
