package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/pipeline"
)

func newTestClient(p llm.Provider) (*Client, *Registry) {
	reg := NewRegistry()
	resolver := NewResolver(reg)
	runner := pipeline.NewRunner(pipeline.NewRegistry())
	exec := NewExecutor(func(name string) (llm.Provider, error) {
		if name != p.Name() {
			return nil, errors.New("no such provider")
		}
		return p, nil
	}, runner)
	return NewClient(resolver, exec), reg
}

func TestClientRunByKey(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	client, reg := newTestClient(provider)
	if err := reg.Register(MustNew(Config{
		Key: "support", Provider: "fake", Model: "m",
		SystemPrompt: "You help {name} in {region}.",
	}), false); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := client.Agent("support").
		WithVariable("name", "Dana").
		WithVariable("region", "eu").
		WithInput("hello").
		Execute(context.Background())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("unexpected response: %q", resp.Text)
	}
	if provider.lastReq.SystemPrompt != "You help Dana in eu." {
		t.Fatalf("unexpected system prompt: %q", provider.lastReq.SystemPrompt)
	}
}

func TestClientRunUnknownAgent(t *testing.T) {
	client, _ := newTestClient(&fakeProvider{name: "fake"})
	_, err := client.Run(context.Background(), "missing", "hi")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestPendingRequestIsReusableTemplate(t *testing.T) {
	provider := &fakeProvider{name: "fake"}
	client, reg := newTestClient(provider)
	if err := reg.Register(MustNew(Config{
		Key: "greeter", Provider: "fake", Model: "m",
		SystemPrompt: "Greet {name}.",
	}), false); err != nil {
		t.Fatalf("register: %v", err)
	}

	template := client.Agent("greeter").WithInput("hi")
	if _, err := template.WithVariable("name", "Ann").Execute(context.Background()); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	first := provider.lastReq.SystemPrompt

	if _, err := template.WithVariable("name", "Bob").Execute(context.Background()); err != nil {
		t.Fatalf("second execute: %v", err)
	}
	second := provider.lastReq.SystemPrompt

	if first != "Greet Ann." || second != "Greet Bob." {
		t.Fatalf("template leaked state: %q then %q", first, second)
	}
}
