package middlewares

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stratumhq/agentpipe/agent"
	"github.com/stratumhq/agentpipe/pipeline"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	cache, err := NewCache(
		WithCacheClient(client),
		WithCachePrefix("agentpipe:cachetest:"+uuid.NewString()),
		WithCacheTTL(time.Minute),
	)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	return cache
}

func TestCache_StoreThenLookup(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	ag := agent.MustNew(agent.Config{Key: "support", Provider: "fake", Model: "m"})
	ec := agent.NewContext().WithVariable("region", "eu")

	store := cache.Store()
	if _, err := store.Handle(ctx, &agent.ResultPayload{
		Agent: ag, Input: "hello", Context: ec,
		Response: &agent.Response{Text: "cached answer"},
	}, passthrough); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	lookup := cache.Lookup()
	out, err := lookup.Handle(ctx, &agent.ExecutePayload{Agent: ag, Input: "hello", Context: ec}, failIfCalled(t))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	p := out.(*agent.ExecutePayload)
	if p.Cached == nil || p.Cached.Text != "cached answer" {
		t.Fatalf("expected cache hit, got %#v", p.Cached)
	}
}

func TestCache_MissFallsThrough(t *testing.T) {
	cache := newTestCache(t)

	ag := agent.MustNew(agent.Config{Key: "support", Provider: "fake", Model: "m"})
	called := false
	out, err := cache.Lookup().Handle(context.Background(),
		&agent.ExecutePayload{Agent: ag, Input: "never stored"},
		func(ctx context.Context, p any) (any, error) {
			called = true
			return p, nil
		})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !called {
		t.Fatalf("miss did not fall through to next")
	}
	if out.(*agent.ExecutePayload).Cached != nil {
		t.Fatalf("unexpected cached response on miss")
	}
}

func TestCache_DistinctVariablesDistinctKeys(t *testing.T) {
	cache := &Cache{prefix: "agentpipe:cache"}

	ag := agent.MustNew(agent.Config{Key: "support", Provider: "fake", Model: "m"})
	eu := &agent.ExecutePayload{Agent: ag, Input: "hi", Context: agent.NewContext().WithVariable("region", "eu")}
	us := &agent.ExecutePayload{Agent: ag, Input: "hi", Context: agent.NewContext().WithVariable("region", "us")}
	if cache.key(eu) == cache.key(us) {
		t.Fatalf("different variables produced the same cache key")
	}
}

func TestNewCache_RequiresClient(t *testing.T) {
	if _, err := NewCache(); err == nil {
		t.Fatalf("expected error without a redis client")
	}
}

func passthrough(ctx context.Context, p any) (any, error) { return p, nil }

func failIfCalled(t *testing.T) pipeline.Next {
	return func(ctx context.Context, p any) (any, error) {
		t.Fatalf("next called on cache hit")
		return p, nil
	}
}
