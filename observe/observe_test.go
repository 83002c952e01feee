package observe

import (
	"context"
	"errors"
	"testing"

	"github.com/stratumhq/agentpipe/pipeline"
)

type captureSink struct {
	events []Event
}

func (c *captureSink) Emit(_ context.Context, event Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		status Status
	}{
		{"agent.before_execute", KindRun, StatusStarted},
		{"agent.after_execute", KindRun, StatusCompleted},
		{"agent.on_error", KindRun, StatusFailed},
		{"agent.system_prompt.before_build", KindPipeline, StatusStarted},
		{"tool.after_execute", KindTool, StatusCompleted},
		{"provider.generate", KindProvider, StatusCompleted},
		{"something.else", KindCustom, StatusCompleted},
	}
	for _, tt := range tests {
		kind, status := Classify(tt.name)
		if kind != tt.kind || status != tt.status {
			t.Errorf("%s: got %s/%s, want %s/%s", tt.name, kind, status, tt.kind, tt.status)
		}
	}
}

func TestFanoutStopsOnError(t *testing.T) {
	first := &captureSink{}
	failing := SinkFunc(func(context.Context, Event) error { return errors.New("down") })
	second := &captureSink{}

	sink := Fanout(first, failing, second)
	if err := sink.Emit(context.Background(), Event{Kind: KindRun}); err == nil {
		t.Fatalf("expected error from failing sink")
	}
	if len(first.events) != 1 {
		t.Fatalf("first sink should receive the event")
	}
	if len(second.events) != 0 {
		t.Fatalf("sinks after a failure should not receive the event")
	}
}

func TestFanoutCollapses(t *testing.T) {
	if _, ok := Fanout().(NoopSink); !ok {
		t.Fatalf("empty fanout should be noop")
	}
	only := &captureSink{}
	if Fanout(nil, only) != Sink(only) {
		t.Fatalf("single-sink fanout should return the sink itself")
	}
}

func TestBufferedDeliversAndFlushesOnClose(t *testing.T) {
	downstream := &captureSink{}
	buffered := NewBuffered(downstream, 8)

	for i := 0; i < 3; i++ {
		if err := buffered.Emit(context.Background(), Event{Kind: KindRun}); err != nil {
			t.Fatalf("emit failed: %v", err)
		}
	}
	buffered.Close()

	if len(downstream.events) != 3 {
		t.Fatalf("expected 3 delivered events, got %d", len(downstream.events))
	}
}

func TestTraceHandlerRecordsFailure(t *testing.T) {
	sink := &captureSink{}
	registry := pipeline.NewRegistry()
	registry.Register("agent.before_execute", TraceHandler(sink, "agent.before_execute"), 100)
	registry.Register("agent.before_execute", pipeline.HandlerFunc(
		func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
			return nil, errors.New("downstream broke")
		}), 0)
	runner := pipeline.NewRunner(registry)

	if _, err := runner.Run(context.Background(), "agent.before_execute", "payload", nil); err == nil {
		t.Fatalf("expected error to propagate")
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 trace event, got %d", len(sink.events))
	}
	if sink.events[0].Status != StatusFailed || sink.events[0].Error == "" {
		t.Fatalf("failure not recorded: %+v", sink.events[0])
	}
}

func TestEventNormalizeDefaults(t *testing.T) {
	var e Event
	e.Normalize()
	if e.Kind != KindCustom || e.Timestamp.IsZero() || e.Attributes == nil {
		t.Fatalf("normalize did not fill defaults: %+v", e)
	}
}
