package observe

import (
	"context"
	"sync"
)

// Sink receives events. Implementations must tolerate concurrent Emit
// calls.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) error { return nil }

// Fanout duplicates every event to each downstream sink, stopping at
// the first error.
func Fanout(sinks ...Sink) Sink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return NoopSink{}
	case 1:
		return kept[0]
	}
	return fanoutSink(kept)
}

type fanoutSink []Sink

func (f fanoutSink) Emit(ctx context.Context, event Event) error {
	for _, sink := range f {
		if err := sink.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Buffered decouples Emit from the downstream sink with a bounded
// queue. Events are dropped when the queue is full so the execution
// hot path never blocks on observability.
type Buffered struct {
	downstream Sink
	queue      chan Event
	once       sync.Once
	done       chan struct{}
}

func NewBuffered(downstream Sink, capacity int) *Buffered {
	if downstream == nil {
		downstream = NoopSink{}
	}
	if capacity <= 0 {
		capacity = 256
	}
	b := &Buffered{
		downstream: downstream,
		queue:      make(chan Event, capacity),
		done:       make(chan struct{}),
	}
	go b.drain()
	return b
}

func (b *Buffered) Emit(ctx context.Context, event Event) error {
	if b == nil {
		return nil
	}
	event.Normalize()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case b.queue <- event:
		return nil
	default:
		return nil
	}
}

// Close stops accepting events and waits for queued events to flush.
func (b *Buffered) Close() {
	if b == nil {
		return
	}
	b.once.Do(func() { close(b.queue) })
	<-b.done
}

func (b *Buffered) drain() {
	defer close(b.done)
	for event := range b.queue {
		_ = b.downstream.Emit(context.Background(), event)
	}
}
