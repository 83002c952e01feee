package redisstream

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/stratumhq/agentpipe/observe"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	prefix := "agentpipe:tracetest:" + uuid.NewString()
	s, err := New(addr, WithPrefix(prefix))
	if err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	t.Cleanup(func() {
		_ = s.client.Del(context.Background(), s.stream).Err()
		_ = s.Close()
	})
	return s
}

func TestSink_EmitAndTail(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	events := []observe.Event{
		{Kind: observe.KindRun, Status: observe.StatusStarted, RunID: "r1", AgentKey: "support"},
		{Kind: observe.KindRun, Status: observe.StatusCompleted, RunID: "r1", AgentKey: "support", DurationMs: 12},
	}
	for _, e := range events {
		if err := s.Emit(ctx, e); err != nil {
			t.Fatalf("emit failed: %v", err)
		}
	}

	got, err := s.Tail(ctx, 10)
	if err != nil {
		t.Fatalf("tail failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Status != observe.StatusCompleted {
		t.Fatalf("expected newest first, got %+v", got[0])
	}
	if got[0].RunID != "r1" || got[0].AgentKey != "support" {
		t.Fatalf("unexpected event: %+v", got[0])
	}
}
