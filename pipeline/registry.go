package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Registration is one handler bound to an event with a priority.
// Handler may be a Handler, a HandlerFunc-compatible func, or a Ref
// resolved lazily at run time.
type Registration struct {
	Handler  any
	Priority int
	seq      int
}

type event struct {
	name        string
	description string
	active      bool
	defined     bool
	handlers    []Registration
}

// Registry stores named extension points and their priority-ordered
// handler lists. Events that were never defined default to active.
type Registry struct {
	mu     sync.RWMutex
	events map[string]*event
	seq    int
}

func NewRegistry() *Registry {
	return &Registry{events: map[string]*event{}}
}

func (r *Registry) ensure(name string) *event {
	ev, ok := r.events[name]
	if !ok {
		ev = &event{name: name, active: true}
		r.events[name] = ev
	}
	return ev
}

// Define registers or updates event metadata. Repeated calls are
// idempotent: last write wins for description and active, and existing
// handlers are kept.
func (r *Registry) Define(name, description string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := r.ensure(name)
	ev.description = description
	ev.active = active
	ev.defined = true
}

// Register appends a handler to the event's list at the given priority.
func (r *Registry) Register(name string, handler any, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := r.ensure(name)
	r.seq++
	ev.handlers = append(ev.handlers, Registration{Handler: handler, Priority: priority, seq: r.seq})
}

// RegisterWhen registers a handler gated on a payload predicate.
func (r *Registry) RegisterWhen(name string, handler Handler, predicate Predicate, priority int) {
	r.Register(name, When(handler, predicate), priority)
}

// Handlers returns the event's handlers sorted by descending priority.
// Registration order breaks ties.
func (r *Registry) Handlers(name string) []any {
	regs := r.HandlersWithPriority(name)
	out := make([]any, len(regs))
	for i, reg := range regs {
		out[i] = reg.Handler
	}
	return out
}

func (r *Registry) HandlersWithPriority(name string) []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.events[name]
	if !ok {
		return nil
	}
	out := append([]Registration(nil), ev.handlers...)
	sortRegistrations(out)
	return out
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.events[name]
	return ok
}

// Active reports whether the event is enabled. Events with no explicit
// definition are active by default.
func (r *Registry) Active(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.events[name]
	if !ok {
		return true
	}
	return ev.active
}

// SetActive toggles an event. Toggling an event that has neither a
// definition nor any registered handler is an error so that typo'd
// event names do not no-op silently.
func (r *Registry) SetActive(name string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[name]
	if !ok || (!ev.defined && len(ev.handlers) == 0) {
		return fmt.Errorf("pipeline event %q is not defined and has no handlers", name)
	}
	ev.active = active
	return nil
}

func sortRegistrations(regs []Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].Priority != regs[j].Priority {
			return regs[i].Priority > regs[j].Priority
		}
		return regs[i].seq < regs[j].seq
	})
}
