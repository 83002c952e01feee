package agent

import (
	"testing"

	"github.com/stratumhq/agentpipe/types"
)

func TestContextWithReturnsNewValue(t *testing.T) {
	base := NewContext()
	withVar := base.WithVariable("name", "Ann")

	if len(base.Variables()) != 0 {
		t.Fatalf("base context mutated: %v", base.Variables())
	}
	if withVar.Variables()["name"] != "Ann" {
		t.Fatalf("derived context missing variable")
	}
}

func TestContextBranching(t *testing.T) {
	root := NewContext().WithVariable("region", "eu")
	left := root.WithVariable("name", "Ann")
	right := root.WithVariable("name", "Bob")

	if left.Variables()["name"] != "Ann" || right.Variables()["name"] != "Bob" {
		t.Fatalf("branches interfere: %v vs %v", left.Variables(), right.Variables())
	}
	if root.Variables()["name"] != nil {
		t.Fatalf("root polluted: %v", root.Variables())
	}
	if left.Variables()["region"] != "eu" || right.Variables()["region"] != "eu" {
		t.Fatalf("shared ancestor state lost")
	}
}

func TestContextMessagesCopied(t *testing.T) {
	c := NewContext().WithMessage(types.RoleUser, "hi")
	msgs := c.Messages()
	msgs[0].Content = "tampered"

	if c.Messages()[0].Content != "hi" {
		t.Fatalf("getter must return a copy")
	}
}

func TestContextAccumulatesMessages(t *testing.T) {
	c := NewContext().
		WithMessage(types.RoleUser, "one").
		WithMessage(types.RoleAssistant, "two")
	if !c.HasMessages() {
		t.Fatalf("expected messages")
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Role != types.RoleAssistant {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestContextModifiersAppend(t *testing.T) {
	c := NewContext().
		WithRequestModifier(func(req *types.Request) { req.Model = "a" }).
		WithRequestModifier(func(req *types.Request) { req.Model = req.Model + "b" })

	var req types.Request
	for _, m := range c.Modifiers() {
		m(&req)
	}
	if req.Model != "ab" {
		t.Fatalf("modifiers must apply in registration order, got %q", req.Model)
	}
}

func TestContextHandlersPerEvent(t *testing.T) {
	h := struct{ name string }{"h"}
	c := NewContext().WithHandler("agent.after_execute", h)
	if len(c.Handlers("agent.after_execute")) != 1 {
		t.Fatalf("handler not recorded")
	}
	if len(c.Handlers("agent.before_execute")) != 0 {
		t.Fatalf("handlers must be scoped per event")
	}
}

func TestContextRetryAndOverrides(t *testing.T) {
	c := NewContext().
		WithRetryPolicy(types.RetryPolicy{MaxAttempts: 4}).
		WithProvider("openai").
		WithModel("gpt-x")

	if c.RetryPolicy() == nil || c.RetryPolicy().MaxAttempts != 4 {
		t.Fatalf("retry policy missing")
	}
	if c.Provider() != "openai" || c.Model() != "gpt-x" {
		t.Fatalf("overrides missing")
	}
	if NewContext().RetryPolicy() != nil {
		t.Fatalf("fresh context must have no retry policy")
	}
}
