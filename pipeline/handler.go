package pipeline

import "context"

// Next continues the handler chain with the (possibly modified) payload.
type Next func(ctx context.Context, payload any) (any, error)

// Handler is one link in a named pipeline. A handler must call next to
// continue the chain; returning without calling next short-circuits the
// remaining handlers and the terminal.
type Handler interface {
	Handle(ctx context.Context, payload any, next Next) (any, error)
}

type HandlerFunc func(ctx context.Context, payload any, next Next) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, payload any, next Next) (any, error) {
	return f(ctx, payload, next)
}

// Ref defers handler construction to the runner's resolver. The named
// handler is resolved at invocation time, not registration time.
type Ref string

// Predicate gates a conditional handler on the in-flight payload.
type Predicate func(payload any) bool

// Conditional wraps a handler so it only runs when its predicate holds;
// otherwise it delegates straight to the next link. A nil predicate
// means no gate, the handler always runs.
type Conditional struct {
	handler   Handler
	predicate Predicate
}

func When(handler Handler, predicate Predicate) *Conditional {
	return &Conditional{handler: handler, predicate: predicate}
}

func (c *Conditional) Handle(ctx context.Context, payload any, next Next) (any, error) {
	if c.predicate != nil && !c.predicate(payload) {
		return next(ctx, payload)
	}
	return c.handler.Handle(ctx, payload, next)
}
