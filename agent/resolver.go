package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Resolver normalizes an agent reference — an instance, a registry
// key, or a constructor — into a concrete agent, then threads it
// through the registered decorator chain.
type Resolver struct {
	registry *Registry

	mu         sync.RWMutex
	decorators []Decorator
}

func NewResolver(registry *Registry) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Resolver{registry: registry}
}

func (r *Resolver) Registry() *Registry { return r.registry }

// AddDecorator appends a decorator to the chain. Order of addition is
// only a tiebreak; priority decides application order.
func (r *Resolver) AddDecorator(d Decorator) {
	if d.Decorate == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decorators = append(r.decorators, d)
}

// Resolve turns ref into a decorated agent instance.
func (r *Resolver) Resolve(ref any) (Agent, error) {
	resolved, err := r.resolveBase(ref)
	if err != nil {
		return nil, err
	}
	return r.decorate(resolved), nil
}

func (r *Resolver) resolveBase(ref any) (Agent, error) {
	switch v := ref.(type) {
	case Agent:
		return v, nil
	case string:
		return r.registry.Get(v)
	case Constructor:
		return r.construct("constructor", v)
	case func() (Agent, error):
		return r.construct("constructor", v)
	default:
		return nil, &InvalidDefinitionError{Ref: fmt.Sprintf("%T", ref)}
	}
}

func (r *Resolver) construct(ref string, build func() (Agent, error)) (Agent, error) {
	instance, err := build()
	if err != nil {
		return nil, &ResolutionError{Ref: ref, Cause: err}
	}
	if instance == nil || instance.Key() == "" {
		return nil, &InvalidDefinitionError{Ref: ref}
	}
	return instance, nil
}

// decorate applies matching decorators in ascending priority order,
// each wrapping the previous result, so the highest-priority
// decorator ends up outermost and its overrides win. AppliesTo sees
// the already decorated agent, so a decorator can react to earlier
// decorations.
func (r *Resolver) decorate(a Agent) Agent {
	r.mu.RLock()
	chain := append([]Decorator(nil), r.decorators...)
	r.mu.RUnlock()

	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Priority < chain[j].Priority })
	current := a
	for _, d := range chain {
		if d.AppliesTo != nil && !d.AppliesTo(current) {
			continue
		}
		if next := d.Decorate(current); next != nil {
			current = next
		}
	}
	return current
}
