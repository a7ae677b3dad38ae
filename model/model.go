package model

import (
	"context"

	"github.com/threadline-ai/threadline/core"
)

// ToolDefinition declaratively exposes a callable tool to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input built from a conversation view.
// Events is the derived view of the agent's thread (post-compaction); the
// adapter converts it to provider messages.
type Request struct {
	Instructions string            `json:"instructions,omitempty"`
	Events       []core.Event      `json:"events"`
	Tools        []ToolDefinition  `json:"tools,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Response is the unified result of one model call.
type Response struct {
	Content      string          `json:"content,omitempty"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	Usage        core.TokenUsage `json:"usage"`
	FinishReason string          `json:"finish_reason,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the provider boundary driven by the agent loop. Implementations
// surface failures through the typed error taxonomy in this package so
// callers can classify them retryable or fatal.
type Model interface {
	CreateResponse(ctx context.Context, req Request) (*Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Chunk is a fragment of a streaming response. The terminal chunk carries
// Final=true together with the assembled Response.
type Chunk struct {
	Delta string
	Final bool
	// Response is set on the final chunk only.
	Response *Response
}

// Streamer is an optional capability of a Model. Once a stream has begun
// emitting output, the call is not retryable; retry policy applies only to
// CreateResponse and to stream establishment before the first chunk.
type Streamer interface {
	StreamResponse(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
}
