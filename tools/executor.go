package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stratumhq/agentpipe/pipeline"
	"github.com/stratumhq/agentpipe/types"
)

// Pipeline events fired around each tool invocation.
const (
	EventBeforeExecute = "tool.before_execute"
	EventAfterExecute  = "tool.after_execute"
)

// ExecutePayload travels through the tool pipelines. Before handlers
// may rewrite Args; after handlers may rewrite Result.
type ExecutePayload struct {
	Tool    Tool
	Args    json.RawMessage
	Context *Context
	Result  *Result
}

// Executor runs tools through the tool pipeline events, applying an
// optional per-invocation timeout.
type Executor struct {
	pipelines *pipeline.Runner
	timeout   time.Duration
}

type ExecutorOption func(*Executor)

func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d >= 0 {
			e.timeout = d
		}
	}
}

func NewExecutor(pipelines *pipeline.Runner, opts ...ExecutorOption) *Executor {
	e := &Executor{pipelines: pipelines}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute invokes one tool inside the before/after pipeline pair.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage, tc *Context) (Result, error) {
	if tool == nil {
		return Result{}, fmt.Errorf("tool is required")
	}
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	payload := &ExecutePayload{Tool: tool, Args: args, Context: tc}
	out, err := e.pipelines.RunIfActive(ctx, EventBeforeExecute, payload, func(ctx context.Context, p any) (any, error) {
		ep, ok := p.(*ExecutePayload)
		if !ok {
			return nil, fmt.Errorf("pipeline %q returned %T, expected *tools.ExecutePayload", EventBeforeExecute, p)
		}
		result, err := e.invoke(ctx, ep.Tool, ep.Args, ep.Context)
		if err != nil {
			return nil, err
		}
		ep.Result = &result
		return ep, nil
	})
	if err != nil {
		return Result{}, err
	}

	out, err = e.pipelines.RunIfActive(ctx, EventAfterExecute, out, nil)
	if err != nil {
		return Result{}, err
	}
	final, ok := out.(*ExecutePayload)
	if !ok {
		return Result{}, fmt.Errorf("pipeline %q returned %T, expected *tools.ExecutePayload", EventAfterExecute, out)
	}
	if final.Result == nil {
		return Result{}, fmt.Errorf("tool %q pipeline discarded the result", tool.Name())
	}
	return *final.Result, nil
}

func (e *Executor) invoke(ctx context.Context, tool Tool, args json.RawMessage, tc *Context) (Result, error) {
	cancel := func() {}
	if e.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()
	return tool.Handle(ctx, args, tc)
}

// Handles binds tools to a shared tool context, yielding the handles a
// provider request carries into its generation loop.
func (e *Executor) Handles(ts []Tool, tc *Context) []types.ToolHandle {
	out := make([]types.ToolHandle, 0, len(ts))
	for _, t := range ts {
		tool := t
		out = append(out, types.ToolHandle{
			Definition: Definition(tool),
			Run: func(ctx context.Context, args json.RawMessage) (types.ToolResult, error) {
				result, err := e.Execute(ctx, tool, args, tc)
				if err != nil {
					return types.ToolResult{}, err
				}
				return encodeResult(result)
			},
		})
	}
	return out
}

func encodeResult(r Result) (types.ToolResult, error) {
	if r.JSON != nil {
		encoded, err := json.Marshal(r.JSON)
		if err != nil {
			return types.ToolResult{}, fmt.Errorf("failed to encode tool output: %w", err)
		}
		return types.ToolResult{Content: string(encoded), IsError: r.IsError}, nil
	}
	return types.ToolResult{Content: r.Text, IsError: r.IsError}, nil
}
