package observe

import (
	"context"
	"time"

	"github.com/stratumhq/agentpipe/pipeline"
)

// TraceHandler records every dispatch of a pipeline event to a sink,
// with duration and failure capture. It is payload-agnostic, so one
// handler works on any event.
func TraceHandler(sink Sink, eventName string) pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		if sink == nil {
			return next(ctx, payload)
		}
		start := time.Now()
		out, err := next(ctx, payload)

		kind, status := Classify(eventName)
		event := Event{
			Kind:       kind,
			Status:     status,
			Name:       eventName,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			event.Status = StatusFailed
			event.Error = err.Error()
		}
		_ = sink.Emit(ctx, event)
		return out, err
	})
}
