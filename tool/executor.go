package tool

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/internal/util"
	"github.com/threadline-ai/threadline/logging"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// MaxConcurrent bounds the number of tool calls running at once within
	// a single batch. Defaults to 4.
	MaxConcurrent int64

	// Approver gates each call before execution. Defaults to AutoApprover.
	Approver Approver
}

// Executor resolves tool calls against a registry and produces exactly one
// terminal result per call. Execution never surfaces a Go error to the
// caller: every outcome, including panics, unknown tools, denials, and
// cancellation, becomes a core.ToolResult with the matching status.
type Executor struct {
	registry *Registry
	opts     ExecutorOptions
}

// NewExecutor constructs an executor over the given registry.
func NewExecutor(registry *Registry, optFns ...func(*ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		MaxConcurrent: 4,
		Approver:      AutoApprover{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.Approver == nil {
		opts.Approver = AutoApprover{}
	}
	return &Executor{registry: registry, opts: opts}
}

// Definitions returns model-facing definitions for every registered tool.
func (e *Executor) Definitions() []Definition {
	tools := e.registry.All()
	defs := make([]Definition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Definition is the model-facing description of a registered tool.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Execute runs a single tool call to a terminal result.
//
// Contract:
//   - Always returns a result carrying the call's id; never an error.
//   - Unknown tool, argument parse/validation failure, or a tool error
//     settle as failed.
//   - Approval denial settles as denied without invoking the tool.
//   - Cancellation of the shared turn context, before or during execution,
//     settles as aborted.
//   - A panicking tool settles as failed with the panic message.
func (e *Executor) Execute(execCtx *ExecContext, call core.ToolCall) core.ToolResult {
	start := time.Now()
	result := e.settle(execCtx, call)
	logSettlement(execCtx.Logger(), call, result, time.Since(start))
	return result
}

func (e *Executor) settle(execCtx *ExecContext, call core.ToolCall) core.ToolResult {
	callCtx := execCtx.WithCall(call.ID)

	t, ok := e.registry.Get(call.Name)
	if !ok {
		return failedResult(call.ID, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	if ok, reason := e.opts.Approver.Approve(callCtx, call); !ok {
		if reason == "" {
			reason = "call was not approved"
		}
		return core.ToolResult{ID: call.ID, Status: core.ToolStatusDenied, Content: reason}
	}

	if err := callCtx.Err(); err != nil {
		return abortedResult(call.ID)
	}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		return failedResult(call.ID, fmt.Sprintf("invalid arguments: %v", err))
	}
	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		return failedResult(call.ID, err.Error())
	}

	value, err := e.invoke(callCtx, t, args)
	if err != nil {
		if callCtx.Err() != nil {
			return abortedResult(call.ID)
		}
		return failedResult(call.ID, err.Error())
	}
	if err := callCtx.Err(); err != nil {
		// The tool returned normally after the turn was aborted; the turn's
		// outcome is still aborted so the model never sees partial work.
		return abortedResult(call.ID)
	}

	content, err := renderResult(value)
	if err != nil {
		return failedResult(call.ID, fmt.Sprintf("unencodable result: %v", err))
	}
	return core.ToolResult{ID: call.ID, Status: core.ToolStatusCompleted, Content: content}
}

// logSettlement records the terminal result of a call, through the domain
// record when the logger supports it.
func logSettlement(logger logging.Logger, call core.ToolCall, res core.ToolResult, dur time.Duration) {
	if dl, ok := logger.(logging.DomainLogger); ok {
		dl.LogToolCall(call.Name, res.ID, res.Status, dur)
		return
	}
	logger.Debug("tool call settled",
		"tool", call.Name,
		"call_id", res.ID,
		"status", string(res.Status),
		"duration_ms", dur.Milliseconds(),
	)
}

// invoke calls the tool with panic recovery.
func (e *Executor) invoke(callCtx *ExecContext, t Tool, args map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Call(callCtx, args)
}

// ExecuteBatch runs a set of tool calls concurrently, bounded by
// MaxConcurrent, and streams results on the returned channel in settlement
// order. Every call settles exactly once; the channel is closed after the
// last result. A turn context that is already cancelled still settles each
// call, as aborted.
func (e *Executor) ExecuteBatch(execCtx *ExecContext, calls []core.ToolCall) <-chan core.ToolResult {
	results := make(chan core.ToolResult, len(calls))
	if len(calls) == 0 {
		close(results)
		return results
	}

	sem := semaphore.NewWeighted(e.opts.MaxConcurrent)
	done := make(chan struct{}, len(calls))
	for _, call := range calls {
		go func(call core.ToolCall) {
			defer func() { done <- struct{}{} }()
			if err := sem.Acquire(execCtx.Context(), 1); err != nil {
				res := abortedResult(call.ID)
				logSettlement(execCtx.Logger(), call, res, 0)
				results <- res
				return
			}
			defer sem.Release(1)
			results <- e.Execute(execCtx, call)
		}(call)
	}
	go func() {
		for range calls {
			<-done
		}
		close(results)
	}()
	return results
}

func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func renderResult(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func failedResult(id, message string) core.ToolResult {
	return core.ToolResult{ID: id, Status: core.ToolStatusFailed, Content: message}
}

func abortedResult(id string) core.ToolResult {
	return core.ToolResult{ID: id, Status: core.ToolStatusAborted, Content: "tool call aborted"}
}
