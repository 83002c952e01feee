package azureopenai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stratumhq/agentpipe/types"
)

func TestClientGenerate_DeploymentRouting(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/deployments/prod-gpt4o/") {
			t.Fatalf("request not routed to deployment: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2024-10-21" {
			t.Fatalf("missing api-version query: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Api-Key") != "test-key" {
			t.Fatalf("missing api-key header")
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

	client, err := New("test-key",
		WithEndpoint(ts.URL),
		WithDeployment("prod-gpt4o"),
		WithModel("gpt-4o"),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if client.Name() != "azureopenai" {
		t.Fatalf("unexpected provider name: %q", client.Name())
	}

	resp, err := client.Generate(context.Background(), types.Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Message.Content != "result" {
		t.Fatalf("unexpected content: %q", resp.Message.Content)
	}
	usage, ok := resp.Usage.(map[string]any)
	if !ok || usage["total_tokens"] != 10 {
		t.Fatalf("unexpected usage: %#v", resp.Usage)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty api key")
	}
	if _, err := New("key"); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
	if _, err := New("key", WithEndpoint("https://example.openai.azure.com")); err == nil {
		t.Fatalf("expected error for missing deployment")
	}
}
