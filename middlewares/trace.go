package middlewares

import (
	"github.com/stratumhq/agentpipe/agent"
	"github.com/stratumhq/agentpipe/observe"
	"github.com/stratumhq/agentpipe/pipeline"
	"github.com/stratumhq/agentpipe/prompt"
	"github.com/stratumhq/agentpipe/tools"
)

// DefaultTraceEvents is the set of pipeline events instrumented when
// no explicit list is given.
var DefaultTraceEvents = []string{
	agent.EventBeforeExecute,
	agent.EventAfterExecute,
	agent.EventOnError,
	prompt.EventBeforeBuild,
	prompt.EventAfterBuild,
	tools.EventBeforeExecute,
	tools.EventAfterExecute,
}

// RegisterTrace attaches an observe.TraceHandler to each event so
// every chain invocation emits a timed event to the sink. The handlers
// register at a high priority to wrap the rest of the chain.
func RegisterTrace(registry *pipeline.Registry, sink observe.Sink, events ...string) {
	if sink == nil {
		return
	}
	if len(events) == 0 {
		events = DefaultTraceEvents
	}
	for _, event := range events {
		registry.Register(event, observe.TraceHandler(sink, event), 1000)
	}
}
