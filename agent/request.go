package agent

import (
	"context"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/pipeline"
	"github.com/stratumhq/agentpipe/types"
)

// Client is the stateless entry point: it resolves an agent reference
// through the registry and decorators, then hands the call to the
// executor. A Client is safe for concurrent use.
type Client struct {
	resolver *Resolver
	executor *Executor
}

func NewClient(resolver *Resolver, executor *Executor) *Client {
	return &Client{resolver: resolver, executor: executor}
}

// Run resolves ref and executes it with the given input and a fresh
// context.
func (c *Client) Run(ctx context.Context, ref any, input string) (*Response, error) {
	return c.Agent(ref).WithInput(input).Execute(ctx)
}

// Agent starts a pending request for ref. Configuration happens
// through the fluent With* methods; nothing runs until Execute or
// StreamResponse.
func (c *Client) Agent(ref any) *PendingRequest {
	return &PendingRequest{client: c, ref: ref, ec: NewContext()}
}

// PendingRequest accumulates per-call configuration. Every With*
// method returns a new PendingRequest; earlier values are never
// mutated, so a partially configured request can be reused as a
// template.
type PendingRequest struct {
	client *Client
	ref    any
	input  string
	ec     *Context
}

func (p *PendingRequest) fork(ec *Context) *PendingRequest {
	return &PendingRequest{client: p.client, ref: p.ref, input: p.input, ec: ec}
}

func (p *PendingRequest) WithInput(input string) *PendingRequest {
	next := p.fork(p.ec)
	next.input = input
	return next
}

// WithMessages supplies prior conversation turns. The input passed to
// Execute becomes the final user turn.
func (p *PendingRequest) WithMessages(messages []types.Message) *PendingRequest {
	return p.fork(p.ec.WithMessages(messages...))
}

func (p *PendingRequest) WithVariable(name string, value any) *PendingRequest {
	return p.fork(p.ec.WithVariable(name, value))
}

func (p *PendingRequest) WithVariables(vars map[string]any) *PendingRequest {
	return p.fork(p.ec.WithVariables(vars))
}

func (p *PendingRequest) WithMetadata(key string, value any) *PendingRequest {
	return p.fork(p.ec.WithMetadata(key, value))
}

func (p *PendingRequest) WithProvider(name string) *PendingRequest {
	return p.fork(p.ec.WithProvider(name))
}

func (p *PendingRequest) WithModel(model string) *PendingRequest {
	return p.fork(p.ec.WithModel(model))
}

func (p *PendingRequest) WithAttachment(att types.Attachment) *PendingRequest {
	return p.fork(p.ec.WithAttachment(att))
}

// WithSchema switches the call to structured output mode.
func (p *PendingRequest) WithSchema(schema map[string]any) *PendingRequest {
	return p.fork(p.ec.WithSchema(schema))
}

func (p *PendingRequest) WithRetryPolicy(policy types.RetryPolicy) *PendingRequest {
	return p.fork(p.ec.WithRetryPolicy(policy))
}

// WithHandler attaches a pipeline handler for this call only.
func (p *PendingRequest) WithHandler(event string, handler pipeline.Handler) *PendingRequest {
	return p.fork(p.ec.WithHandler(event, handler))
}

// ModifyRequest registers a typed callback that edits the provider
// request after it is built but before dispatch.
func (p *PendingRequest) ModifyRequest(modify RequestModifier) *PendingRequest {
	return p.fork(p.ec.WithRequestModifier(modify))
}

func (p *PendingRequest) Execute(ctx context.Context) (*Response, error) {
	ag, err := p.client.resolver.Resolve(p.ref)
	if err != nil {
		return nil, err
	}
	return p.client.executor.Execute(ctx, ag, p.input, p.ec)
}

func (p *PendingRequest) StreamResponse(ctx context.Context) (llm.Stream, error) {
	ag, err := p.client.resolver.Resolve(p.ref)
	if err != nil {
		return nil, err
	}
	return p.client.executor.Stream(ctx, ag, p.input, p.ec)
}
