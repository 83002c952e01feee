package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/observe"
	"github.com/stratumhq/agentpipe/pipeline"
	"github.com/stratumhq/agentpipe/prompt"
	"github.com/stratumhq/agentpipe/schema"
	"github.com/stratumhq/agentpipe/tools"
	"github.com/stratumhq/agentpipe/types"
	"github.com/stratumhq/agentpipe/usage"
)

// Pipeline events fired per execution, in order. agent.on_error fires
// only on failure, before the error is re-thrown.
const (
	EventBeforeExecute = "agent.before_execute"
	EventAfterExecute  = "agent.after_execute"
	EventOnError       = "agent.on_error"
)

// ProviderResolver returns a configured transport for a provider name.
type ProviderResolver func(name string) (llm.Provider, error)

// ExecutePayload travels through agent.before_execute. Handlers may
// substitute the agent, input, or context entirely. A handler that
// sets Cached resolves the call without a provider round-trip; the
// after_execute pipeline does not run for served cache hits.
type ExecutePayload struct {
	Agent   Agent
	Input   string
	Context *Context
	Cached  *Response
}

// ResultPayload travels through agent.after_execute. Handlers may
// post-process or replace Response.
type ResultPayload struct {
	Agent        Agent
	Input        string
	Context      *Context
	SystemPrompt string
	Response     *Response
}

// ErrorPayload travels through agent.on_error.
type ErrorPayload struct {
	Agent        Agent
	Input        string
	Context      *Context
	SystemPrompt string
	Err          error
}

// Executor orchestrates one agent call: prompt build, request build,
// provider dispatch, and response normalization, with every stage
// routed through the pipeline events.
type Executor struct {
	providers ProviderResolver
	pipelines *pipeline.Runner
	prompts   *prompt.Builder
	toolExec  *tools.Executor
	usage     *usage.Registry
	observer  observe.Sink
}

type ExecutorOption func(*Executor)

func WithPromptBuilder(b *prompt.Builder) ExecutorOption {
	return func(e *Executor) { e.prompts = b }
}

func WithToolExecutor(te *tools.Executor) ExecutorOption {
	return func(e *Executor) { e.toolExec = te }
}

func WithUsageRegistry(r *usage.Registry) ExecutorOption {
	return func(e *Executor) { e.usage = r }
}

func WithObserver(sink observe.Sink) ExecutorOption {
	return func(e *Executor) { e.observer = sink }
}

func NewExecutor(providers ProviderResolver, pipelines *pipeline.Runner, opts ...ExecutorOption) *Executor {
	e := &Executor{providers: providers, pipelines: pipelines}
	for _, opt := range opts {
		opt(e)
	}
	if e.pipelines == nil {
		e.pipelines = pipeline.NewRunner(pipeline.NewRegistry())
	}
	if e.prompts == nil {
		e.prompts = prompt.NewBuilder(e.pipelines)
	}
	if e.toolExec == nil {
		e.toolExec = tools.NewExecutor(e.pipelines)
	}
	if e.usage == nil {
		e.usage = usage.NewRegistry()
	}
	return e
}

func (e *Executor) Pipelines() *pipeline.Runner { return e.pipelines }

// Execute runs one blocking agent call and returns the normalized
// response.
func (e *Executor) Execute(ctx context.Context, ag Agent, input string, ec *Context) (*Response, error) {
	if ec == nil {
		ec = NewContext()
	}
	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	e.emit(ctx, observe.Event{
		Kind: observe.KindRun, Status: observe.StatusStarted,
		RunID: runID, AgentKey: ag.Key(), Timestamp: startedAt,
	})

	resp, systemPrompt, err := e.execute(ctx, ag, input, ec)
	if err != nil {
		e.fireOnError(ctx, ag, input, ec, systemPrompt, err)
		e.emit(ctx, observe.Event{
			Kind: observe.KindRun, Status: observe.StatusFailed,
			RunID: runID, AgentKey: ag.Key(), Error: err.Error(),
			Timestamp: time.Now().UTC(), DurationMs: time.Since(startedAt).Milliseconds(),
		})
		return nil, e.wrap(ag, err)
	}

	e.emit(ctx, observe.Event{
		Kind: observe.KindRun, Status: observe.StatusCompleted,
		RunID: runID, AgentKey: ag.Key(),
		Timestamp: time.Now().UTC(), DurationMs: time.Since(startedAt).Milliseconds(),
	})
	return resp, nil
}

func (e *Executor) execute(ctx context.Context, ag Agent, input string, ec *Context) (*Response, string, error) {
	out, err := e.pipelines.RunWithRuntime(ctx, EventBeforeExecute,
		&ExecutePayload{Agent: ag, Input: input, Context: ec},
		ec.Handlers(EventBeforeExecute), nil)
	if err != nil {
		return nil, "", err
	}
	before, ok := out.(*ExecutePayload)
	if !ok {
		return nil, "", configErrorf("pipeline %q returned %T, expected *agent.ExecutePayload", EventBeforeExecute, out)
	}
	ag, input, ec = before.Agent, before.Input, before.Context
	if ec == nil {
		ec = NewContext()
	}
	if before.Cached != nil {
		return before.Cached, "", nil
	}

	systemPrompt, err := e.prompts.Build(ctx, ag, ec)
	if err != nil {
		return nil, "", err
	}

	req, providerName, structured, err := e.buildRequest(ag, input, ec, systemPrompt)
	if err != nil {
		return nil, systemPrompt, err
	}

	provider, err := e.providers(providerName)
	if err != nil {
		return nil, systemPrompt, configErrorf("unknown provider %q: %v", providerName, err)
	}

	var resp *Response
	if structured {
		structuredResp, err := provider.GenerateStructured(ctx, req)
		if err != nil {
			return nil, systemPrompt, err
		}
		if err := schema.Validate(req.ResponseSchema, structuredResp.Structured); err != nil {
			return nil, systemPrompt, &llm.DecodeError{
				Provider: providerName,
				Message:  "structured output failed schema validation",
				Cause:    err,
			}
		}
		resp = e.normalizeStructured(providerName, structuredResp)
	} else {
		textResp, err := llm.GenerateWithTools(ctx, provider, req)
		if err != nil {
			return nil, systemPrompt, err
		}
		resp = e.normalizeText(providerName, textResp)
	}

	out, err = e.pipelines.RunWithRuntime(ctx, EventAfterExecute,
		&ResultPayload{Agent: ag, Input: input, Context: ec, SystemPrompt: systemPrompt, Response: resp},
		ec.Handlers(EventAfterExecute), nil)
	if err != nil {
		return nil, systemPrompt, err
	}
	after, ok := out.(*ResultPayload)
	if !ok || after.Response == nil {
		return nil, systemPrompt, configErrorf("pipeline %q discarded the response", EventAfterExecute)
	}
	return after.Response, systemPrompt, nil
}

// Stream runs one streaming agent call. Streaming is mutually
// exclusive with structured output.
func (e *Executor) Stream(ctx context.Context, ag Agent, input string, ec *Context) (llm.Stream, error) {
	if ec == nil {
		ec = NewContext()
	}
	stream, err := e.stream(ctx, ag, input, ec)
	if err != nil {
		e.fireOnError(ctx, ag, input, ec, "", err)
		return nil, e.wrap(ag, err)
	}
	return stream, nil
}

func (e *Executor) stream(ctx context.Context, ag Agent, input string, ec *Context) (llm.Stream, error) {
	if schemaFor(ag, ec) != nil {
		return nil, configErrorf("agent %q: streaming cannot be combined with structured output", ag.Key())
	}

	out, err := e.pipelines.RunWithRuntime(ctx, EventBeforeExecute,
		&ExecutePayload{Agent: ag, Input: input, Context: ec},
		ec.Handlers(EventBeforeExecute), nil)
	if err != nil {
		return nil, err
	}
	before, ok := out.(*ExecutePayload)
	if !ok {
		return nil, configErrorf("pipeline %q returned %T, expected *agent.ExecutePayload", EventBeforeExecute, out)
	}
	ag, input, ec = before.Agent, before.Input, before.Context
	if ec == nil {
		ec = NewContext()
	}

	systemPrompt, err := e.prompts.Build(ctx, ag, ec)
	if err != nil {
		return nil, err
	}
	req, providerName, _, err := e.buildRequest(ag, input, ec, systemPrompt)
	if err != nil {
		return nil, err
	}
	provider, err := e.providers(providerName)
	if err != nil {
		return nil, configErrorf("unknown provider %q: %v", providerName, err)
	}
	return provider.Stream(ctx, req)
}

// buildRequest turns agent + input + context into a provider request
// and reports which terminal call to use.
func (e *Executor) buildRequest(ag Agent, input string, ec *Context, systemPrompt string) (types.Request, string, bool, error) {
	providerName := ag.Provider()
	if ec.Provider() != "" {
		providerName = ec.Provider()
	}
	if providerName == "" {
		return types.Request{}, "", false, configErrorf("agent %q has no provider configured", ag.Key())
	}
	model := ag.Model()
	if ec.Model() != "" {
		model = ec.Model()
	}
	if model == "" {
		return types.Request{}, "", false, configErrorf("agent %q has no model configured", ag.Key())
	}

	req := types.Request{
		Model:           model,
		SystemPrompt:    systemPrompt,
		Temperature:     ag.Temperature(),
		MaxOutputTokens: ag.MaxTokens(),
		ClientOptions:   ag.ClientOptions(),
		ProviderOptions: ag.ProviderOptions(),
		Retry:           ec.RetryPolicy(),
	}

	schema := schemaFor(ag, ec)
	structured := schema != nil
	if structured {
		// Structured extraction is single-shot: no tools, no history.
		req.ResponseSchema = schema
		req.Prompt = input
	} else {
		if agentTools := ag.Tools(); len(agentTools) > 0 {
			tc := tools.NewContext(ag.Key(), ec.Metadata())
			req.Tools = e.toolExec.Handles(agentTools, tc)
			req.MaxSteps = ag.MaxSteps()
		}
		providerTools, err := normalizeProviderTools(ag.ProviderTools())
		if err != nil {
			return types.Request{}, "", false, err
		}
		req.ProviderTools = providerTools

		if ec.HasMessages() {
			messages, err := conversation(ec.Messages(), input)
			if err != nil {
				return types.Request{}, "", false, err
			}
			req.Messages = messages
		} else {
			req.Prompt = input
			req.Attachments = ec.Attachments()
		}
	}

	for _, modify := range ec.Modifiers() {
		modify(&req)
	}
	return req, providerName, structured, nil
}

// schemaFor picks the structured output schema: a schema staged on the
// context wins over the agent's static one.
func schemaFor(ag Agent, ec *Context) map[string]any {
	if s := ec.Schema(); s != nil {
		return s
	}
	return ag.Schema()
}

// conversation validates history roles and appends the current input
// as the final user turn.
func conversation(history []types.Message, input string) ([]types.Message, error) {
	for _, m := range history {
		switch m.Role {
		case types.RoleUser, types.RoleAssistant, types.RoleSystem:
		default:
			return nil, configErrorf("unknown message role %q in conversation history", m.Role)
		}
	}
	return append(history, types.Message{Role: types.RoleUser, Content: input}), nil
}

// normalizeProviderTools accepts the three declared forms for a
// provider-level named tool: a string shorthand, a map carrying a
// "type" key, or a prebuilt map passed through as-is.
func normalizeProviderTools(entries []any) ([]map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		switch v := entry.(type) {
		case string:
			out = append(out, map[string]any{"type": v})
		case map[string]any:
			if _, ok := v["type"]; !ok {
				return nil, configErrorf("provider tool entry %v is missing a \"type\" key", v)
			}
			out = append(out, v)
		default:
			return nil, configErrorf("provider tool entry %T is not a string or map", entry)
		}
	}
	return out, nil
}

// fireOnError runs the error pipeline on a best-effort basis: it is
// observability, not recovery, so a failing error-handler is swallowed
// and the original error propagates.
func (e *Executor) fireOnError(ctx context.Context, ag Agent, input string, ec *Context, systemPrompt string, cause error) {
	defer func() {
		if rec := recover(); rec != nil {
			e.emit(ctx, observe.Event{
				Kind: observe.KindPipeline, Status: observe.StatusFailed,
				AgentKey: ag.Key(), Name: EventOnError, Error: fmt.Sprintf("panic: %v", rec),
				Timestamp: time.Now().UTC(),
			})
		}
	}()
	payload := &ErrorPayload{Agent: ag, Input: input, Context: ec, SystemPrompt: systemPrompt, Err: cause}
	if _, err := e.pipelines.RunWithRuntime(ctx, EventOnError, payload, ec.Handlers(EventOnError), nil); err != nil {
		e.emit(ctx, observe.Event{
			Kind: observe.KindPipeline, Status: observe.StatusFailed,
			AgentKey: ag.Key(), Name: EventOnError, Error: err.Error(),
			Timestamp: time.Now().UTC(),
		})
	}
}

// wrap converts foreign errors into ExecutionFailedError; domain
// errors propagate unchanged.
func (e *Executor) wrap(ag Agent, err error) error {
	if isDomainError(err) {
		return err
	}
	return &ExecutionFailedError{AgentKey: ag.Key(), Message: err.Error(), Cause: err}
}

func (e *Executor) emit(ctx context.Context, event observe.Event) {
	if e.observer == nil {
		return
	}
	_ = e.observer.Emit(ctx, event)
}
