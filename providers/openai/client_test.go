package openai

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

func TestClientGenerate_RoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		messages, _ := req["messages"].([]any)
		if len(messages) != 2 {
			t.Fatalf("expected system + user messages, got %#v", messages)
		}
		first, _ := messages[0].(map[string]any)
		if first["role"] != "system" || first["content"] != "be brief" {
			t.Fatalf("unexpected first message: %#v", first)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {"role": "assistant", "content": "result"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
		}`))
	}))
	defer ts.Close()

	client, err := New("test-key", WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := client.Generate(context.Background(), types.Request{
		SystemPrompt: "be brief",
		Prompt:       "hello",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Message.Content != "result" {
		t.Fatalf("unexpected content: %q", resp.Message.Content)
	}
	if resp.FinishReason != types.FinishStop {
		t.Fatalf("unexpected finish reason: %q", resp.FinishReason)
	}
	usage, ok := resp.Usage.(map[string]any)
	if !ok || usage["total_tokens"] != 10 {
		t.Fatalf("unexpected usage: %#v", resp.Usage)
	}
}

func TestClientGenerate_ToolCalls(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		tools, _ := req["tools"].([]any)
		if len(tools) != 1 {
			t.Fatalf("expected one tool, got %#v", tools)
		}
		tool, _ := tools[0].(map[string]any)
		fn, _ := tool["function"].(map[string]any)
		if tool["type"] != "function" || fn["name"] != "lookup" {
			t.Fatalf("unexpected tool shape: %#v", tool)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call-1",
						"type": "function",
						"function": {"name": "lookup", "arguments": "{\"q\":\"go\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 4, "completion_tokens": 2, "total_tokens": 6}
		}`))
	}))
	defer ts.Close()

	client, err := New("test-key", WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := client.Generate(context.Background(), types.Request{
		Prompt: "look it up",
		Tools: []types.ToolHandle{{
			Definition: types.ToolDefinition{
				Name:        "lookup",
				Description: "search",
				JSONSchema:  map[string]any{"type": "object"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.FinishReason != types.FinishToolCalls {
		t.Fatalf("unexpected finish reason: %q", resp.FinishReason)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("unexpected tool calls: %#v", resp.Message.ToolCalls)
	}
	call := resp.Message.ToolCalls[0]
	if call.ID != "call-1" || call.Name != "lookup" || string(call.Arguments) != `{"q":"go"}` {
		t.Fatalf("unexpected call: %#v", call)
	}
}

func TestClientGenerateStructured_JSONSchemaFormat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		format, _ := req["response_format"].(map[string]any)
		if format["type"] != "json_schema" {
			t.Fatalf("expected json_schema response format, got %#v", format)
		}
		js, _ := format["json_schema"].(map[string]any)
		schema, _ := js["schema"].(map[string]any)
		if schema["type"] != "object" {
			t.Fatalf("schema did not round-trip: %#v", js)
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

	client, err := New("test-key", WithBaseURL(ts.URL))
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

func TestClientGenerate_RateLimitTranslated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_exceeded"}}`))
	}))
	defer ts.Close()

	client, err := New("test-key", WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.Generate(context.Background(), types.Request{Prompt: "hi"})
	var rl *llm.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rl.Provider != "openai" || rl.StatusCode != 429 {
		t.Fatalf("unexpected error detail: %+v", rl)
	}
}

func TestClientStream_TextAndToolCalls(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","function":{"name":"lookup","arguments":"{\"q\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		}
		for _, chunk := range chunks {
			_, _ = w.Write([]byte("data: " + chunk + "\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer ts.Close()

	client, err := New("test-key", WithBaseURL(ts.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stream, err := client.Stream(context.Background(), types.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}

	var text string
	var calls []*types.ToolCall
	var finish types.FinishReason
	for event, err := range stream {
		if err != nil {
			t.Fatalf("stream error: %v", err)
		}
		switch event.Type {
		case types.StreamText:
			text += event.Text
		case types.StreamToolCall:
			calls = append(calls, event.ToolCall)
		case types.StreamFinish:
			finish = event.FinishReason
		}
	}

	if text != "Hello" {
		t.Fatalf("unexpected text: %q", text)
	}
	if len(calls) != 1 || calls[0].Name != "lookup" || string(calls[0].Arguments) != `{"q":"go"}` {
		t.Fatalf("unexpected tool calls: %#v", calls)
	}
	if finish != types.FinishToolCalls {
		t.Fatalf("unexpected finish reason: %q", finish)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}
