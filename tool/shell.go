package tool

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/threadline-ai/threadline/internal/util"
)

// ShellTool runs shell commands inside the execution context's working
// directory and environment snapshot. The process is bound to the turn
// context: aborting the turn kills the command.
type ShellTool struct {
	shell          string
	maxOutputBytes int
}

// ShellToolOptions configures NewShellTool.
type ShellToolOptions struct {
	// Shell is the interpreter invoked with -c. Defaults to /bin/sh.
	Shell string

	// MaxOutputBytes truncates combined output beyond this size.
	// Defaults to 64 KiB.
	MaxOutputBytes int
}

// NewShellTool constructs the shell tool.
func NewShellTool(optFns ...func(*ShellToolOptions)) *ShellTool {
	opts := ShellToolOptions{
		Shell:          "/bin/sh",
		MaxOutputBytes: 64 * 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ShellTool{shell: opts.Shell, maxOutputBytes: opts.MaxOutputBytes}
}

// Name implements Tool.
func (t *ShellTool) Name() string { return "shell" }

// Description implements Tool.
func (t *ShellTool) Description() string {
	return "Run a shell command in the working directory and return its combined output."
}

// Parameters implements Tool.
func (t *ShellTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to run.",
			},
		},
		"required": []string{"command"},
	}
}

// Call implements Tool.
func (t *ShellTool) Call(execCtx *ExecContext, args map[string]any) (any, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, NewToolError(t.Name(), "command must not be empty", "invalid_argument")
	}

	cmd := exec.CommandContext(execCtx.Context(), t.shell, "-c", command)
	cmd.Dir = execCtx.WorkDir()
	cmd.Env = execCtx.Environ()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if ctxErr := execCtx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	output := out.String()
	if cut, truncated := util.TruncateString(output, t.maxOutputBytes); truncated {
		output = cut + "\n[output truncated]"
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return nil, NewToolError(t.Name(),
				fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), strings.TrimSpace(output)),
				"command_failed")
		}
		return nil, fmt.Errorf("run command: %w", runErr)
	}
	return output, nil
}
