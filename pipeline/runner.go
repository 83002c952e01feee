package pipeline

import (
	"context"
	"fmt"
)

// Resolver turns a Ref into a handler instance at invocation time.
type Resolver func(name string) (any, error)

// Runner executes a named pipeline as a chain of responsibility over an
// opaque payload. The runner never inspects payload contents.
type Runner struct {
	registry *Registry
	resolve  Resolver
}

type RunnerOption func(*Runner)

// WithResolver installs the factory used to resolve Ref handlers.
func WithResolver(resolve Resolver) RunnerOption {
	return func(r *Runner) { r.resolve = resolve }
}

func NewRunner(registry *Registry, opts ...RunnerOption) *Runner {
	if registry == nil {
		registry = NewRegistry()
	}
	r := &Runner{registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Registry() *Registry { return r.registry }

// Run executes the event's handlers highest-priority first, ending in
// terminal. A nil terminal is an identity passthrough.
func (r *Runner) Run(ctx context.Context, name string, payload any, terminal Next) (any, error) {
	return r.runChain(ctx, name, r.registry.HandlersWithPriority(name), payload, terminal)
}

// RunIfActive behaves like Run, except an inactive event passes the
// payload through terminal untouched without invoking any handler.
func (r *Runner) RunIfActive(ctx context.Context, name string, payload any, terminal Next) (any, error) {
	if !r.registry.Active(name) {
		if terminal == nil {
			return payload, nil
		}
		return terminal(ctx, payload)
	}
	return r.Run(ctx, name, payload, terminal)
}

// RunWithRuntime merges the caller's one-off handlers (implicit
// priority 0) with the globally registered set, re-sorts, and runs the
// combined chain. Global registry state is untouched.
func (r *Runner) RunWithRuntime(ctx context.Context, name string, payload any, runtime []any, terminal Next) (any, error) {
	regs := r.registry.HandlersWithPriority(name)
	if len(runtime) > 0 {
		merged := append([]Registration(nil), regs...)
		seq := 0
		for _, reg := range merged {
			if reg.seq > seq {
				seq = reg.seq
			}
		}
		for _, h := range runtime {
			seq++
			merged = append(merged, Registration{Handler: h, Priority: 0, seq: seq})
		}
		sortRegistrations(merged)
		regs = merged
	}
	return r.runChain(ctx, name, regs, payload, terminal)
}

func (r *Runner) runChain(ctx context.Context, name string, regs []Registration, payload any, terminal Next) (any, error) {
	next := terminal
	if next == nil {
		next = func(_ context.Context, p any) (any, error) { return p, nil }
	}
	// Compose right to left so the highest-priority handler is outermost.
	for i := len(regs) - 1; i >= 0; i-- {
		reg := regs[i]
		inner := next
		next = func(ctx context.Context, p any) (any, error) {
			h, err := r.coerce(name, reg.Handler)
			if err != nil {
				return nil, err
			}
			return h.Handle(ctx, p, inner)
		}
	}
	return next(ctx, payload)
}

// coerce resolves a registered value into a Handler. A value that
// cannot be made into a Handler is a configuration error, never a
// silent skip.
func (r *Runner) coerce(event string, registered any) (Handler, error) {
	switch h := registered.(type) {
	case Handler:
		return h, nil
	case func(ctx context.Context, payload any, next Next) (any, error):
		return HandlerFunc(h), nil
	case Ref:
		if r.resolve == nil {
			return nil, fmt.Errorf("pipeline event %q: handler ref %q registered but no resolver configured", event, string(h))
		}
		resolved, err := r.resolve(string(h))
		if err != nil {
			return nil, fmt.Errorf("pipeline event %q: failed to resolve handler %q: %w", event, string(h), err)
		}
		if handler, ok := resolved.(Handler); ok {
			return handler, nil
		}
		return nil, fmt.Errorf("pipeline event %q: resolved handler %q (%T) does not implement pipeline.Handler", event, string(h), resolved)
	default:
		return nil, fmt.Errorf("pipeline event %q: registered handler %T does not implement pipeline.Handler", event, registered)
	}
}
