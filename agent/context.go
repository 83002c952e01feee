package agent

import (
	"github.com/stratumhq/agentpipe/types"
)

// RequestModifier is the escape hatch for provider-specific features
// the core API does not wrap: modifiers captured on the context are
// applied to the built request, in order, immediately before the
// terminal provider call.
type RequestModifier func(*types.Request)

// Context is the immutable per-call bundle of conversation history,
// variables, metadata, and overrides. Every With method returns a new
// Context; a value handed to Execute is never mutated.
type Context struct {
	messages    []types.Message
	variables   map[string]any
	metadata    map[string]any
	provider    string
	model       string
	attachments []types.Attachment
	schema      map[string]any
	modifiers   []RequestModifier
	retry       *types.RetryPolicy
	handlers    map[string][]any
}

func NewContext() *Context {
	return &Context{}
}

func (c *Context) clone() *Context {
	out := &Context{
		provider: c.provider,
		model:    c.model,
		retry:    c.retry,
		schema:   c.schema,
	}
	out.messages = append([]types.Message(nil), c.messages...)
	out.attachments = append([]types.Attachment(nil), c.attachments...)
	out.modifiers = append([]RequestModifier(nil), c.modifiers...)
	if c.variables != nil {
		out.variables = make(map[string]any, len(c.variables))
		for k, v := range c.variables {
			out.variables[k] = v
		}
	}
	if c.metadata != nil {
		out.metadata = make(map[string]any, len(c.metadata))
		for k, v := range c.metadata {
			out.metadata[k] = v
		}
	}
	if c.handlers != nil {
		out.handlers = make(map[string][]any, len(c.handlers))
		for event, hs := range c.handlers {
			out.handlers[event] = append([]any(nil), hs...)
		}
	}
	return out
}

func (c *Context) WithMessage(role types.Role, content string) *Context {
	return c.WithMessages(types.Message{Role: role, Content: content})
}

func (c *Context) WithMessages(messages ...types.Message) *Context {
	out := c.clone()
	out.messages = append(out.messages, messages...)
	return out
}

func (c *Context) WithVariable(key string, value any) *Context {
	out := c.clone()
	if out.variables == nil {
		out.variables = map[string]any{}
	}
	out.variables[key] = value
	return out
}

func (c *Context) WithVariables(vars map[string]any) *Context {
	out := c.clone()
	if out.variables == nil {
		out.variables = make(map[string]any, len(vars))
	}
	for k, v := range vars {
		out.variables[k] = v
	}
	return out
}

func (c *Context) WithMetadata(key string, value any) *Context {
	out := c.clone()
	if out.metadata == nil {
		out.metadata = map[string]any{}
	}
	out.metadata[key] = value
	return out
}

func (c *Context) WithProvider(provider string) *Context {
	out := c.clone()
	out.provider = provider
	return out
}

func (c *Context) WithModel(model string) *Context {
	out := c.clone()
	out.model = model
	return out
}

func (c *Context) WithAttachment(a types.Attachment) *Context {
	out := c.clone()
	out.attachments = append(out.attachments, a)
	return out
}

// WithSchema routes the call to the structured output path and, for
// that call, disables tools and multi-turn history.
func (c *Context) WithSchema(schema map[string]any) *Context {
	out := c.clone()
	out.schema = schema
	return out
}

func (c *Context) WithRequestModifier(m RequestModifier) *Context {
	out := c.clone()
	if m != nil {
		out.modifiers = append(out.modifiers, m)
	}
	return out
}

func (c *Context) WithRetryPolicy(p types.RetryPolicy) *Context {
	out := c.clone()
	out.retry = &p
	return out
}

// WithHandler attaches a one-off pipeline handler for this call only.
func (c *Context) WithHandler(event string, handler any) *Context {
	out := c.clone()
	if out.handlers == nil {
		out.handlers = map[string][]any{}
	}
	out.handlers[event] = append(out.handlers[event], handler)
	return out
}

func (c *Context) Messages() []types.Message {
	return append([]types.Message(nil), c.messages...)
}

func (c *Context) HasMessages() bool { return len(c.messages) > 0 }

func (c *Context) Variables() map[string]any {
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

func (c *Context) Metadata() map[string]any {
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

func (c *Context) Provider() string { return c.provider }
func (c *Context) Model() string    { return c.model }

func (c *Context) Attachments() []types.Attachment {
	return append([]types.Attachment(nil), c.attachments...)
}

func (c *Context) Schema() map[string]any { return c.schema }

func (c *Context) Modifiers() []RequestModifier {
	return append([]RequestModifier(nil), c.modifiers...)
}

func (c *Context) RetryPolicy() *types.RetryPolicy { return c.retry }

func (c *Context) Handlers(event string) []any {
	return append([]any(nil), c.handlers[event]...)
}
