// Package openai adapts the OpenAI Chat Completions API (including
// function/tool calling) to the model.Model interface.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/threadline-ai/threadline/core"
	"github.com/threadline-ai/threadline/model"
)

// Options configures the OpenAI adapter. Fields mirror a deliberately
// minimal subset of Chat Completion parameters.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates an OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// CreateResponse implements model.Model.
func (m *Model) CreateResponse(ctx context.Context, req model.Request) (*model.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req),
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Name,
					Description: openai.String(tdef.Description),
					Parameters:  tdef.Parameters,
				},
			}
		}
		params.Tools = tools
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &model.NetworkError{Message: "openai: no choices returned"}
	}

	choice := resp.Choices[0]
	out := &model.Response{
		Content: choice.Message.Content,
		Usage: core.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
		FinishReason: choice.FinishReason,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// buildMessages converts a conversation view into chat messages, attaching
// tool responses immediately after the assistant turn that requested them.
func buildMessages(req model.Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		messages = append(messages, openai.SystemMessage(req.Instructions))
	}

	results := map[string]core.ToolResult{}
	for _, ev := range req.Events {
		if d, ok := ev.Data.(core.ToolResultData); ok {
			results[d.Result.ID] = d.Result
		}
	}

	for _, ev := range req.Events {
		switch d := ev.Data.(type) {
		case core.UserMessageData:
			messages = append(messages, openai.UserMessage(d.Text))
		case core.AgentMessageData:
			if len(d.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(d.Text))
				continue
			}
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(d.ToolCalls))
			for i, call := range d.ToolCalls {
				toolCalls[i] = openai.ChatCompletionMessageToolCallParam{
					ID:   call.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      call.Name,
						Arguments: call.Arguments,
					},
				}
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				},
			})
			for _, call := range d.ToolCalls {
				if result, ok := results[call.ID]; ok {
					messages = append(messages, openai.ToolMessage(result.Content, call.ID))
				}
			}
		}
	}
	return messages
}

// mapError converts SDK failures into the typed taxonomy.
func mapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return model.ErrorFromStatusCode("openai", apierr.StatusCode, apierr.Code, apierr.Error(), nil)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &model.NetworkError{Message: fmt.Sprintf("openai: %v", err), Cause: err}
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
