package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stratumhq/agentpipe/pipeline"
)

func newTestRunner() *pipeline.Runner {
	return pipeline.NewRunner(pipeline.NewRegistry())
}

func upperTool() Tool {
	return NewFunc("upper", "uppercases input", nil, func(_ context.Context, args json.RawMessage, tc *Context) (Result, error) {
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return Result{}, err
		}
		return Result{Text: in.Text, JSON: nil}, nil
	})
}

func TestExecutor_RunsBeforeAndAfterPipelines(t *testing.T) {
	registry := pipeline.NewRegistry()
	registry.Register(EventBeforeExecute, pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		ep := payload.(*ExecutePayload)
		ep.Args = json.RawMessage(`{"text":"rewritten"}`)
		return next(ctx, ep)
	}), 0)
	registry.Register(EventAfterExecute, pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		ep := payload.(*ExecutePayload)
		ep.Result = &Result{Text: ep.Result.Text + " [checked]"}
		return next(ctx, ep)
	}), 0)

	executor := NewExecutor(pipeline.NewRunner(registry))
	result, err := executor.Execute(context.Background(), upperTool(), json.RawMessage(`{"text":"orig"}`), nil)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result.Text != "rewritten [checked]" {
		t.Fatalf("expected pipeline rewrites applied, got %q", result.Text)
	}
}

func TestExecutor_RejectsForeignPayloadType(t *testing.T) {
	registry := pipeline.NewRegistry()
	registry.Register(EventBeforeExecute, pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		return next(ctx, "not a payload")
	}), 0)

	executor := NewExecutor(pipeline.NewRunner(registry))
	_, err := executor.Execute(context.Background(), upperTool(), json.RawMessage(`{"text":"x"}`), nil)
	if err == nil || !strings.Contains(err.Error(), "expected *tools.ExecutePayload") {
		t.Fatalf("expected payload type error, got %v", err)
	}

	registry = pipeline.NewRegistry()
	registry.Register(EventAfterExecute, pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		return next(ctx, 42)
	}), 0)

	executor = NewExecutor(pipeline.NewRunner(registry))
	_, err = executor.Execute(context.Background(), upperTool(), json.RawMessage(`{"text":"x"}`), nil)
	if err == nil || !strings.Contains(err.Error(), "expected *tools.ExecutePayload") {
		t.Fatalf("expected payload type error, got %v", err)
	}
}

func TestExecutor_ContextMetadataReachesTool(t *testing.T) {
	var seen any
	tool := NewFunc("peek", "reads metadata", nil, func(_ context.Context, _ json.RawMessage, tc *Context) (Result, error) {
		seen, _ = tc.Value("tenant")
		return Result{Text: "ok"}, nil
	})

	executor := NewExecutor(newTestRunner())
	tc := NewContext("helper", map[string]any{"tenant": "acme"})
	if _, err := executor.Execute(context.Background(), tool, nil, tc); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if seen != "acme" {
		t.Fatalf("expected metadata visible to tool, got %v", seen)
	}
}

func TestExecutor_HandlesEncodeJSONResults(t *testing.T) {
	tool := NewFunc("json", "returns json", nil, func(_ context.Context, _ json.RawMessage, _ *Context) (Result, error) {
		return Result{JSON: map[string]any{"answer": 42}}, nil
	})

	executor := NewExecutor(newTestRunner())
	handles := executor.Handles([]Tool{tool}, nil)
	if len(handles) != 1 {
		t.Fatalf("expected 1 handle, got %d", len(handles))
	}
	out, err := handles[0].Run(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("handle run failed: %v", err)
	}
	if out.Content != `{"answer":42}` {
		t.Fatalf("unexpected encoded result: %q", out.Content)
	}
}

func TestRegistry_BundleAndWildcardSelection(t *testing.T) {
	MustRegisterFactory("reg_a", "", func() Tool { return upperTool() })
	MustRegisterFactory("reg_b", "", func() Tool { return upperTool() })
	if err := RegisterBundle("pair", "", []string{"reg_a", "reg_b"}); err != nil {
		t.Fatalf("bundle registration failed: %v", err)
	}

	selected, err := BuildSelection([]string{"@pair"})
	if err != nil {
		t.Fatalf("selection failed: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("expected 2 tools from bundle, got %d", len(selected))
	}

	if _, err := BuildSelection([]string{"@missing"}); err == nil {
		t.Fatalf("expected unknown bundle error")
	}
	if _, err := BuildSelection([]string{"nope"}); err == nil {
		t.Fatalf("expected unknown tool error")
	}
}
