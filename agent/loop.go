package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/logging"
	"github.com/threadline-ai/threadline/model"
	"github.com/threadline-ai/threadline/tool"
)

// SendMessage runs one turn: it appends the user message, then alternates
// model calls and tool execution until the model responds without tool
// calls, and returns that final response text.
//
// Contract:
//   - One turn at a time per agent; a concurrent call fails with ErrBusy.
//   - Abort (or ctx cancellation) ends the turn with ErrAborted after
//     in-flight tool calls have settled and been recorded.
//   - Retry exhaustion and fatal provider errors fail the turn; transient
//     attempts surface as retry notifications, not errors.
//   - The budget check runs after every agent message; crossing the
//     threshold compacts the thread synchronously and resets the tracker.
func (a *Agent) SendMessage(ctx context.Context, text string) (string, error) {
	turnCtx, cancel, err := a.beginTurn(ctx)
	if err != nil {
		return "", err
	}
	defer a.endTurn(cancel)

	if _, err := a.cfg.Store.Append(a.cfg.ThreadID, core.UserMessageData{Text: text}); err != nil {
		a.setState(StateFailed)
		return "", fmt.Errorf("append user message: %w", err)
	}

	reply, err := a.runLoop(turnCtx)
	if err != nil {
		return "", err
	}
	a.setState(StateIdle)
	return reply, nil
}

func (a *Agent) beginTurn(ctx context.Context) (context.Context, context.CancelFunc, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, nil, ErrClosed
	}
	if a.state != StateIdle {
		return nil, nil, ErrBusy
	}
	turnCtx, cancel := context.WithCancel(ctx)
	a.state = StateProcessing
	a.turnCancel = cancel
	a.limiter.Reset()
	return turnCtx, cancel, nil
}

func (a *Agent) endTurn(cancel context.CancelFunc) {
	cancel()
	a.mu.Lock()
	a.turnCancel = nil
	if a.state != StateIdle {
		// Aborted and failed are transitional; the agent is ready for the
		// next turn as soon as the outcome has been recorded.
		a.state = StateIdle
	}
	a.mu.Unlock()
}

func (a *Agent) runLoop(turnCtx context.Context) (string, error) {
	for {
		if err := a.limiter.Increment(); err != nil {
			a.setState(StateFailed)
			return "", err
		}

		resp, err := a.callModel(turnCtx)
		if err != nil {
			if turnCtx.Err() != nil {
				a.setState(StateAborted)
				return "", ErrAborted
			}
			a.setState(StateFailed)
			return "", err
		}

		if _, err := a.cfg.Store.Append(a.cfg.ThreadID, core.AgentMessageData{
			Text:      resp.Content,
			ToolCalls: resp.ToolCalls,
			Usage:     resp.Usage,
		}); err != nil {
			a.setState(StateFailed)
			return "", fmt.Errorf("append agent message: %w", err)
		}
		a.tracker.RecordUsage(resp.Usage)
		a.notify(Notification{
			Type:  NotificationAgentMessage,
			Text:  resp.Content,
			Usage: resp.Usage,
		})

		a.maybeCompact(turnCtx)

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		if err := a.runTools(turnCtx, resp.ToolCalls); err != nil {
			return "", err
		}
		a.setState(StateProcessing)
	}
}

func (a *Agent) callModel(turnCtx context.Context) (*model.Response, error) {
	a.setState(StateModelCall)

	events, err := a.cfg.Store.Events(a.cfg.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	req := model.Request{
		Instructions: a.cfg.Instructions,
		Events:       core.BuildView(events),
		Tools:        a.toolDefinitions(),
	}

	policy := a.cfg.RetryPolicy
	policy.OnRetry = func(attempt int, delay time.Duration, attemptErr error) {
		a.logger.Warn("model call retry",
			"agent_id", a.cfg.ID, "attempt", attempt, "delay", delay, "error", attemptErr)
		a.notify(Notification{
			Type:    NotificationRetryAttempt,
			Attempt: attempt,
			Delay:   delay,
			Err:     attemptErr.Error(),
		})
	}

	start := time.Now()
	resp, err := model.Do(turnCtx, policy, func(ctx context.Context) (*model.Response, error) {
		return a.cfg.Model.CreateResponse(ctx, req)
	})
	if err != nil {
		if turnCtx.Err() == nil && model.IsRetryable(err) {
			a.notify(Notification{
				Type:     NotificationRetryExhausted,
				Attempts: policy.MaxAttempts,
				Err:      err.Error(),
			})
		}
		a.logModelCall(core.TokenUsage{}, time.Since(start), err)
		return nil, fmt.Errorf("model call: %w", err)
	}
	a.logModelCall(resp.Usage, time.Since(start), nil)
	return resp, nil
}

func (a *Agent) logModelCall(usage core.TokenUsage, dur time.Duration, err error) {
	name := a.cfg.Model.Info().Name
	if dl, ok := a.logger.(logging.DomainLogger); ok {
		dl.LogModelCall(name, usage, dur, err)
		return
	}
	if err != nil {
		a.logger.Error("model call failed",
			"agent_id", a.cfg.ID, "model", name, "duration", dur, "error", err)
		return
	}
	a.logger.Debug("model call completed",
		"agent_id", a.cfg.ID, "model", name, "duration", dur, "total_tokens", usage.TotalTokens)
}

func (a *Agent) runTools(turnCtx context.Context, calls []core.ToolCall) error {
	a.setState(StateToolExecution)

	for i := range calls {
		if _, err := a.cfg.Store.Append(a.cfg.ThreadID, core.ToolCallData{Call: calls[i]}); err != nil {
			a.setState(StateFailed)
			return fmt.Errorf("append tool call: %w", err)
		}
		a.notify(Notification{Type: NotificationToolCall, ToolCall: &calls[i]})
	}

	if a.cfg.Executor == nil {
		// No executor: every requested call settles as failed so the
		// machine never hangs on an unsettleable call.
		for _, call := range calls {
			res := core.ToolResult{
				ID:      call.ID,
				Status:  core.ToolStatusFailed,
				Content: "no tool executor configured",
			}
			if err := a.appendResult(res); err != nil {
				return err
			}
		}
		return a.afterSettlement(turnCtx)
	}

	execCtx := tool.NewExecContext(turnCtx, tool.ExecContextOptions{
		Env:     a.cfg.Env,
		WorkDir: a.cfg.WorkDir,
		Logger:  a.logger,
	})
	// Results append in settlement order, whatever order the calls were
	// dispatched in.
	for res := range a.cfg.Executor.ExecuteBatch(execCtx, calls) {
		if err := a.appendResult(res); err != nil {
			return err
		}
	}
	return a.afterSettlement(turnCtx)
}

func (a *Agent) appendResult(res core.ToolResult) error {
	if _, err := a.cfg.Store.Append(a.cfg.ThreadID, core.ToolResultData{Result: res}); err != nil {
		a.setState(StateFailed)
		return fmt.Errorf("append tool result: %w", err)
	}
	a.notify(Notification{Type: NotificationToolResult, ToolResult: &res})
	return nil
}

// afterSettlement decides the turn's fate once every dispatched call has
// settled: an aborted turn ends here, with all results already recorded.
func (a *Agent) afterSettlement(turnCtx context.Context) error {
	if turnCtx.Err() != nil {
		a.setState(StateAborted)
		return ErrAborted
	}
	return nil
}

func (a *Agent) maybeCompact(turnCtx context.Context) {
	if a.cfg.CompactionStrategy == nil {
		return
	}
	snap := a.tracker.Usage()
	if !snap.NearLimit {
		return
	}

	ev, err := a.cfg.Store.Compact(turnCtx, a.cfg.ThreadID, a.cfg.CompactionStrategy)
	if err != nil {
		// Compaction failure does not fail the turn; the next budget check
		// will try again.
		a.logger.Warn("compaction failed", "agent_id", a.cfg.ID, "error", err)
		return
	}
	if err := a.tracker.HandleCompaction(ev); err != nil {
		a.logger.Warn("tracker reset failed", "agent_id", a.cfg.ID, "error", err)
		return
	}
	data, _ := ev.Data.(core.CompactionData)
	if dl, ok := a.logger.(logging.DomainLogger); ok {
		dl.LogCompaction(data.StrategyID, data.OriginalEventCount, len(data.CompactedEvents), data.Usage)
	} else {
		a.logger.Info("thread compacted",
			"agent_id", a.cfg.ID, "strategy", data.StrategyID,
			"replaced", data.OriginalEventCount, "kept", len(data.CompactedEvents))
	}
	a.notify(Notification{
		Type:               NotificationCompaction,
		CompactionStrategy: data.StrategyID,
		CompactedFrom:      data.OriginalEventCount,
	})
}

func (a *Agent) toolDefinitions() []model.ToolDefinition {
	if a.cfg.Executor == nil {
		return nil
	}
	defs := a.cfg.Executor.Definitions()
	out := make([]model.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, model.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return out
}
