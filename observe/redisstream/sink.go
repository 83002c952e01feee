// Package redisstream publishes run events to a Redis Stream so
// external consumers (dashboards, alerting, offline analysis) can tail
// them without coupling to the process that runs the agents.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stratumhq/agentpipe/observe"
)

const (
	defaultPrefix = "agentpipe:trace"
	defaultMaxLen = 10_000
)

type Sink struct {
	client *goredis.Client
	addr   string
	prefix string
	maxLen int64
	stream string
}

type Option func(*Sink)

func WithClient(client *goredis.Client) Option {
	return func(s *Sink) {
		if client != nil {
			s.client = client
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		prefix = strings.TrimSpace(prefix)
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithMaxLen bounds the stream via approximate XADD trimming.
func WithMaxLen(n int64) Option {
	return func(s *Sink) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

func New(addr string, opts ...Option) (*Sink, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	s := &Sink{
		addr:   addr,
		prefix: defaultPrefix,
		maxLen: defaultMaxLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = goredis.NewClient(&goredis.Options{Addr: s.addr})
	}
	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	s.stream = s.prefix + ":events"
	return s, nil
}

func (s *Sink) Emit(ctx context.Context, event observe.Event) error {
	if s == nil || s.client == nil {
		return nil
	}
	event.Normalize()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode trace event: %w", err)
	}
	err = s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"payload": string(payload),
			"kind":    string(event.Kind),
			"run_id":  event.RunID,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish trace event: %w", err)
	}
	return nil
}

// Tail returns the most recent events in the stream, newest first.
func (s *Sink) Tail(ctx context.Context, limit int) ([]observe.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		if err == goredis.Nil {
			return []observe.Event{}, nil
		}
		return nil, fmt.Errorf("failed to read trace stream: %w", err)
	}
	out := make([]observe.Event, 0, len(entries))
	for _, entry := range entries {
		payload, _ := entry.Values["payload"].(string)
		if payload == "" {
			continue
		}
		var event observe.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (s *Sink) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

var _ observe.Sink = (*Sink)(nil)
