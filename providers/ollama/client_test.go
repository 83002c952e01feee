package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/types"
)

func TestClientGenerate_OpenAICompatibleRoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Fatalf("expected bearer auth header")
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req["model"] != "llama3.2" {
			t.Fatalf("unexpected model: %#v", req["model"])
		}
		messages, _ := req["messages"].([]any)
		first, _ := messages[0].(map[string]any)
		if first["role"] != "system" {
			t.Fatalf("expected system message first, got %#v", first)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "result",
					"tool_calls": [{
						"id": "tc-1",
						"type": "function",
						"function": {"name": "calc", "arguments": "{\"x\":1}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
		}`))
	}))
	defer ts.Close()

	client, err := New(
		WithBaseURL(ts.URL),
		WithModel("llama3.2"),
		WithAPIKey("test-key"),
		WithHTTPClient(ts.Client()),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := client.Generate(context.Background(), types.Request{
		SystemPrompt: "system",
		Messages:     []types.Message{{Role: types.RoleUser, Content: "hello"}},
		Tools: []types.ToolHandle{{
			Definition: types.ToolDefinition{Name: "calc", Description: "does math"},
		}},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Message.Content != "result" {
		t.Fatalf("unexpected content: %q", resp.Message.Content)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].Name != "calc" {
		t.Fatalf("unexpected tool calls: %#v", resp.Message.ToolCalls)
	}
	if resp.FinishReason != types.FinishToolCalls {
		t.Fatalf("unexpected finish reason: %q", resp.FinishReason)
	}
	usage, ok := resp.Usage.(map[string]any)
	if !ok || usage["total_tokens"] != 10 {
		t.Fatalf("unexpected usage: %#v", resp.Usage)
	}
}

func TestClientGenerateStructured_JSONObjectMode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		format, _ := req["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Fatalf("expected json_object format, got %#v", format)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {"role": "assistant", "content": "{\"city\":\"Oslo\"}"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`))
	}))
	defer ts.Close()

	client, err := New(WithBaseURL(ts.URL), WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := client.GenerateStructured(context.Background(), types.Request{
		Prompt:         "where?",
		ResponseSchema: map[string]any{"type": "object"},
	})
	if err != nil {
		t.Fatalf("GenerateStructured failed: %v", err)
	}
	var out struct{ City string }
	if err := json.Unmarshal(resp.Structured, &out); err != nil || out.City != "Oslo" {
		t.Fatalf("unexpected structured payload: %s", resp.Structured)
	}
}

func TestClientGenerate_MalformedArgumentsNormalized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "tc-1",
						"function": {"name": "calc", "arguments": "not json"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer ts.Close()

	client, err := New(WithBaseURL(ts.URL), WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := client.Generate(context.Background(), types.Request{Prompt: "go"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	args := resp.Message.ToolCalls[0].Arguments
	if !json.Valid(args) {
		t.Fatalf("arguments were not normalized to JSON: %s", args)
	}
}

func TestClientGenerate_OverloadedTranslated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("model loading"))
	}))
	defer ts.Close()

	client, err := New(WithBaseURL(ts.URL), WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Generate(context.Background(), types.Request{Prompt: "hi"})
	var overloaded *llm.OverloadedError
	if !errors.As(err, &overloaded) {
		t.Fatalf("expected OverloadedError, got %v", err)
	}
}

func TestClientStream_NotSupported(t *testing.T) {
	client, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.Stream(context.Background(), types.Request{}); !errors.Is(err, llm.ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
}
