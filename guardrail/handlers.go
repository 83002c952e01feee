package guardrail

import (
	"context"

	"github.com/stratumhq/agentpipe/agent"
	"github.com/stratumhq/agentpipe/pipeline"
)

// InputHandler wraps a chain as an agent.before_execute pipeline
// handler. Blocks abort the call before any provider traffic; redacted
// input replaces the original.
func InputHandler(chain *Chain) pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		p, ok := payload.(*agent.ExecutePayload)
		if !ok || chain == nil {
			return next(ctx, payload)
		}
		text, _, err := chain.Apply(ctx, p.Input)
		if err != nil {
			return nil, err
		}
		p.Input = text
		return next(ctx, p)
	})
}

// OutputHandler wraps a chain as an agent.after_execute pipeline
// handler operating on the normalized response text.
func OutputHandler(chain *Chain) pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		p, ok := payload.(*agent.ResultPayload)
		if !ok || chain == nil || p.Response == nil || p.Response.Text == "" {
			return next(ctx, payload)
		}
		text, _, err := chain.Apply(ctx, p.Response.Text)
		if err != nil {
			return nil, err
		}
		p.Response.Text = text
		return next(ctx, p)
	})
}

// Register wires input and output chains onto an executor's pipelines.
func Register(pipelines *pipeline.Registry, input, output *Chain, priority int) {
	if input != nil {
		pipelines.Register(agent.EventBeforeExecute, InputHandler(input), priority)
	}
	if output != nil {
		pipelines.Register(agent.EventAfterExecute, OutputHandler(output), priority)
	}
}
