package tool

import (
	"github.com/threadline-ai/threadline/internal/util"
)

// FunctionTool wraps a plain Go function as a Tool. The parameter schema is
// either supplied explicitly or derived from a struct prototype with
// util.CreateSchema.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(execCtx *ExecContext, args map[string]any) (any, error)
}

// FunctionToolOptions configures NewFunctionTool.
type FunctionToolOptions struct {
	// Parameters is the JSON schema for the tool's arguments.
	Parameters map[string]any

	// ParametersFrom derives the schema from a struct prototype when
	// Parameters is nil.
	ParametersFrom any
}

// NewFunctionTool creates a tool from a function.
func NewFunctionTool(name, description string, fn func(execCtx *ExecContext, args map[string]any) (any, error), optFns ...func(*FunctionToolOptions)) *FunctionTool {
	opts := FunctionToolOptions{}
	for _, optFn := range optFns {
		optFn(&opts)
	}
	params := opts.Parameters
	if params == nil && opts.ParametersFrom != nil {
		params = util.CreateSchema(opts.ParametersFrom)
	}
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  params,
		fn:          fn,
	}
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call implements Tool.
func (t *FunctionTool) Call(execCtx *ExecContext, args map[string]any) (any, error) {
	return t.fn(execCtx, args)
}
