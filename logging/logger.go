// Package logging provides a tiny abstraction over slog so the runtime can
// depend on a minimal interface (Logger) while letting users plug any
// structured logger. It also offers a contextual RuntimeLogger with
// session/thread attachment and domain helpers for tool calls, model calls
// and compaction.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/threadline-ai/threadline/core"
)

// Logger is the minimal logging interface used throughout the runtime.
// Arguments follow slog's alternating key/value convention.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DomainLogger extends Logger with records for the runtime's own events.
// Components type-assert their Logger for it and fall back to generic
// records when the assertion fails; RuntimeLogger is the canonical
// implementation.
type DomainLogger interface {
	Logger
	LogToolCall(name, callID string, status core.ToolStatus, dur time.Duration)
	LogModelCall(model string, usage core.TokenUsage, dur time.Duration, err error)
	LogCompaction(strategyID string, replaced, kept int, usage core.TokenUsage)
}

// SlogAdapter wraps *slog.Logger to implement Logger.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger { return &SlogAdapter{Logger: logger} }

// NewDefaultLogger creates a Logger using slog.Default().
func NewDefaultLogger() Logger { return NewSlogAdapter(slog.Default()) }

// NoOpLogger discards all log messages. Useful for tests or when logging is
// disabled; it is the default everywhere a Logger is optional.
type NoOpLogger struct{}

// Debug implements Logger.
func (NoOpLogger) Debug(string, ...any) {}

// Info implements Logger.
func (NoOpLogger) Info(string, ...any) {}

// Warn implements Logger.
func (NoOpLogger) Warn(string, ...any) {}

// Error implements Logger.
func (NoOpLogger) Error(string, ...any) {}

// Config configures construction of a RuntimeLogger.
type Config struct {
	Level     slog.Level
	Format    string // "json" or "text"
	Output    io.Writer
	AddSource bool
	Component string
	SessionID string
	ThreadID  string
}

// DefaultConfig returns a baseline JSON info-level configuration.
func DefaultConfig() *Config {
	return &Config{Level: slog.LevelInfo, Format: "json", Output: os.Stdout}
}

// RuntimeLogger wraps slog adding contextual cloning helpers and domain
// convenience methods. With* methods return cheap copies.
type RuntimeLogger struct {
	logger    *slog.Logger
	component string
	sessionID string
	threadID  string
}

// NewRuntimeLogger builds a RuntimeLogger from a config (or defaults if nil).
func NewRuntimeLogger(cfg *Config) *RuntimeLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	return &RuntimeLogger{
		logger:    slog.New(handler),
		component: cfg.Component,
		sessionID: cfg.SessionID,
		threadID:  cfg.ThreadID,
	}
}

// WithComponent sets the logical component (agent, executor, store, ...).
func (l *RuntimeLogger) WithComponent(c string) *RuntimeLogger {
	nl := *l
	nl.component = c
	return &nl
}

// WithThread attaches session and thread identifiers.
func (l *RuntimeLogger) WithThread(sessionID, threadID string) *RuntimeLogger {
	nl := *l
	nl.sessionID = sessionID
	nl.threadID = threadID
	return &nl
}

func (l *RuntimeLogger) attrs(extra ...slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(extra)+3)
	if l.component != "" {
		out = append(out, slog.String("component", l.component))
	}
	if l.sessionID != "" {
		out = append(out, slog.String("session_id", l.sessionID))
	}
	if l.threadID != "" {
		out = append(out, slog.String("thread_id", l.threadID))
	}
	return append(out, extra...)
}

func (l *RuntimeLogger) log(level slog.Level, msg string, args ...any) {
	base := l.logger
	for _, a := range l.attrs() {
		base = base.With(a)
	}
	base.Log(context.Background(), level, msg, args...)
}

// Debug logs at debug level.
func (l *RuntimeLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }

// Info logs at info level.
func (l *RuntimeLogger) Info(msg string, args ...any) { l.log(slog.LevelInfo, msg, args...) }

// Warn logs at warn level.
func (l *RuntimeLogger) Warn(msg string, args ...any) { l.log(slog.LevelWarn, msg, args...) }

// Error logs at error level.
func (l *RuntimeLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

// LogToolCall records execution details for a settled tool call.
func (l *RuntimeLogger) LogToolCall(name, callID string, status core.ToolStatus, dur time.Duration) {
	level := slog.LevelInfo
	if status == core.ToolStatusFailed {
		level = slog.LevelError
	}
	l.log(level, "tool call settled",
		"tool", name,
		"call_id", callID,
		"status", string(status),
		"duration_ms", dur.Milliseconds(),
	)
}

// LogModelCall records model call latency and token usage.
func (l *RuntimeLogger) LogModelCall(model string, usage core.TokenUsage, dur time.Duration, err error) {
	if err != nil {
		l.log(slog.LevelError, "model call failed", "model", model, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	l.log(slog.LevelInfo, "model call completed",
		"model", model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"duration_ms", dur.Milliseconds(),
	)
}

// LogCompaction records the outcome of a thread compaction.
func (l *RuntimeLogger) LogCompaction(strategyID string, replaced, kept int, usage core.TokenUsage) {
	l.log(slog.LevelInfo, "thread compacted",
		"strategy", strategyID,
		"replaced_events", replaced,
		"kept_events", kept,
		"summary_tokens", usage.TotalTokens,
	)
}

var _ DomainLogger = (*RuntimeLogger)(nil)
