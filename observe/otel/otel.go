// Package otel bridges observe.Sink to OpenTelemetry tracing so agent
// runs, pipeline stages, provider calls, and tool calls show up in any
// OTel-compatible backend.
package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stratumhq/agentpipe/observe"
)

const instrumentationName = "github.com/stratumhq/agentpipe"

// Sink implements observe.Sink by emitting OpenTelemetry spans.
type Sink struct {
	tracer trace.Tracer
}

// NewSink creates an OTel sink from the given TracerProvider. A nil
// provider yields a noop tracer.
func NewSink(tp trace.TracerProvider) *Sink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Sink{tracer: tp.Tracer(instrumentationName)}
}

func (s *Sink) Emit(_ context.Context, event observe.Event) error {
	event.Normalize()

	_, span := s.tracer.Start(context.Background(), spanNameFor(event), trace.WithTimestamp(event.Timestamp))

	attrs := []attribute.KeyValue{
		attribute.String("agent.event.kind", string(event.Kind)),
	}
	if event.RunID != "" {
		attrs = append(attrs, attribute.String("agent.run.id", event.RunID))
	}
	if event.AgentKey != "" {
		attrs = append(attrs, attribute.String("agent.key", event.AgentKey))
	}
	if event.Provider != "" {
		attrs = append(attrs, attribute.String("agent.provider", event.Provider))
	}
	if event.Tool != "" {
		attrs = append(attrs, attribute.String("agent.tool.name", event.Tool))
	}
	if event.Name != "" {
		attrs = append(attrs, attribute.String("agent.event.name", event.Name))
	}
	if event.Status != "" {
		attrs = append(attrs, attribute.String("agent.status", string(event.Status)))
	}
	if event.Message != "" {
		attrs = append(attrs, attribute.String("agent.message", truncate(event.Message, 1024)))
	}
	if event.DurationMs > 0 {
		attrs = append(attrs, attribute.Int64("agent.duration_ms", event.DurationMs))
	}
	for k, v := range event.Attributes {
		attrs = append(attrs, attribute.String("agent.attr."+k, fmt.Sprintf("%v", v)))
	}
	span.SetAttributes(attrs...)

	if event.Status == observe.StatusFailed {
		span.SetStatus(codes.Error, event.Error)
		if event.Error != "" {
			span.RecordError(fmt.Errorf("%s", event.Error))
		}
	} else if event.Status == observe.StatusCompleted {
		span.SetStatus(codes.Ok, "")
	}

	endTime := event.Timestamp
	if event.DurationMs > 0 {
		endTime = endTime.Add(time.Duration(event.DurationMs) * time.Millisecond)
	}
	span.End(trace.WithTimestamp(endTime))
	return nil
}

func spanNameFor(event observe.Event) string {
	switch event.Kind {
	case observe.KindRun:
		return "agent.run"
	case observe.KindProvider:
		if event.Provider != "" {
			return "agent.llm." + event.Provider
		}
		return "agent.llm.generate"
	case observe.KindTool:
		if event.Tool != "" {
			return "agent.tool." + event.Tool
		}
		return "agent.tool.call"
	case observe.KindPipeline:
		if event.Name != "" {
			return "agent.pipeline." + event.Name
		}
		return "agent.pipeline.stage"
	default:
		if event.Name != "" {
			return "agent." + event.Name
		}
		return "agent.event"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
