// Package middlewares carries reusable pipeline handlers that hook
// into the agent execution events.
package middlewares

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stratumhq/agentpipe/agent"
	"github.com/stratumhq/agentpipe/pipeline"
)

const defaultCacheTTL = 5 * time.Minute

// Cache is a redis-backed response cache. Lookup short-circuits
// agent.before_execute on a hit; Store writes completed responses on
// agent.after_execute. Redis failures are treated as misses, the
// execution itself never fails because of the cache.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type CacheOption func(*Cache)

func WithCacheClient(client *redis.Client) CacheOption {
	return func(c *Cache) { c.client = client }
}

func WithCacheAddr(addr string) CacheOption {
	return func(c *Cache) { c.client = redis.NewClient(&redis.Options{Addr: addr}) }
}

func WithCachePrefix(prefix string) CacheOption {
	return func(c *Cache) { c.prefix = prefix }
}

func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

func NewCache(opts ...CacheOption) (*Cache, error) {
	c := &Cache{prefix: "agentpipe:cache", ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		return nil, fmt.Errorf("cache requires a redis client")
	}
	return c, nil
}

// Lookup returns the before_execute handler.
func (c *Cache) Lookup() pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		p, ok := payload.(*agent.ExecutePayload)
		if !ok {
			return next(ctx, payload)
		}
		// Any error, redis.Nil included, is a miss.
		raw, err := c.client.Get(ctx, c.key(p)).Bytes()
		if err != nil {
			return next(ctx, payload)
		}
		var resp agent.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return next(ctx, payload)
		}
		p.Cached = &resp
		return p, nil
	})
}

// Store returns the after_execute handler.
func (c *Cache) Store() pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, payload any, next pipeline.Next) (any, error) {
		p, ok := payload.(*agent.ResultPayload)
		if !ok || p.Response == nil {
			return next(ctx, payload)
		}
		if raw, err := json.Marshal(p.Response); err == nil {
			key := c.key(&agent.ExecutePayload{Agent: p.Agent, Input: p.Input, Context: p.Context})
			_ = c.client.Set(ctx, key, raw, c.ttl).Err()
		}
		return next(ctx, payload)
	})
}

// Register wires both handlers into the registry. Lookup runs at the
// given priority, Store at the same priority on the after event.
func (c *Cache) Register(registry *pipeline.Registry, priority int) {
	registry.Register(agent.EventBeforeExecute, c.Lookup(), priority)
	registry.Register(agent.EventAfterExecute, c.Store(), priority)
}

// key derives a stable digest from everything that shapes the request
// text: agent key, input, overrides, and variables. Variables marshal
// with sorted keys, so equal maps hash equally.
func (c *Cache) key(p *agent.ExecutePayload) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", p.Agent.Key(), p.Input)
	if ec := p.Context; ec != nil {
		fmt.Fprintf(h, "%s\x00%s\x00", ec.Provider(), ec.Model())
		if vars := ec.Variables(); len(vars) > 0 {
			raw, _ := json.Marshal(vars)
			h.Write(raw)
		}
		if msgs := ec.Messages(); len(msgs) > 0 {
			raw, _ := json.Marshal(msgs)
			h.Write(raw)
		}
	}
	return c.prefix + ":" + hex.EncodeToString(h.Sum(nil))
}
