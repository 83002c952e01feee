package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stratumhq/agentpipe/types"
)

// Result is the outcome of one tool invocation. Text and JSON are
// alternatives; IsError marks a failure the model should see.
type Result struct {
	Text    string `json:"text,omitempty"`
	JSON    any    `json:"json,omitempty"`
	IsError bool   `json:"isError,omitempty"`
}

// Tool is a callable function exposed to the model.
type Tool interface {
	Name() string
	Description() string
	ParameterSchema() map[string]any
	Handle(ctx context.Context, args json.RawMessage, tc *Context) (Result, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	name        string
	description string
	schema      map[string]any
	fn          func(ctx context.Context, args json.RawMessage, tc *Context) (Result, error)
}

func NewFunc(name, description string, schema map[string]any, fn func(ctx context.Context, args json.RawMessage, tc *Context) (Result, error)) *Func {
	return &Func{name: name, description: description, schema: schema, fn: fn}
}

func (t *Func) Name() string                    { return t.name }
func (t *Func) Description() string             { return t.description }
func (t *Func) ParameterSchema() map[string]any { return t.schema }

func (t *Func) Handle(ctx context.Context, args json.RawMessage, tc *Context) (Result, error) {
	if t.fn == nil {
		return Result{}, fmt.Errorf("tool %q has no handler function", t.name)
	}
	return t.fn(ctx, args, tc)
}

// Definition converts a tool into the provider-callable function spec.
func Definition(t Tool) types.ToolDefinition {
	schema := t.ParameterSchema()
	if len(schema) == 0 {
		schema = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return types.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		JSONSchema:  schema,
	}
}
