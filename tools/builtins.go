package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

func init() {
	MustRegisterFactory("current_time", "Returns the current UTC time in RFC3339 format.", func() Tool {
		return NewFunc("current_time", "Returns the current UTC time in RFC3339 format.", map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}, func(_ context.Context, _ json.RawMessage, _ *Context) (Result, error) {
			return Result{Text: time.Now().UTC().Format(time.RFC3339)}, nil
		})
	})

	MustRegisterFactory("calculator", "Evaluates basic arithmetic on two operands.", func() Tool {
		schema := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"operation": map[string]any{
					"type": "string",
					"enum": []string{"add", "subtract", "multiply", "divide"},
				},
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"operation", "a", "b"},
		}
		return NewFunc("calculator", "Evaluates basic arithmetic on two operands.", schema, calculate)
	})
}

func calculate(_ context.Context, args json.RawMessage, _ *Context) (Result, error) {
	var in struct {
		Operation string  `json:"operation"`
		A         float64 `json:"a"`
		B         float64 `json:"b"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return Result{}, fmt.Errorf("invalid calculator arguments: %w", err)
	}
	var value float64
	switch in.Operation {
	case "add":
		value = in.A + in.B
	case "subtract":
		value = in.A - in.B
	case "multiply":
		value = in.A * in.B
	case "divide":
		if in.B == 0 {
			return Result{Text: "division by zero", IsError: true}, nil
		}
		value = in.A / in.B
	default:
		return Result{}, fmt.Errorf("unknown operation %q", in.Operation)
	}
	return Result{JSON: map[string]any{"result": value}}, nil
}
