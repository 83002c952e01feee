package agent

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds an agent instance on demand, the registry's
// stand-in for container-based instantiation.
type Constructor func() (Agent, error)

// Registry is a key-to-instance map of registered agent definitions.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: map[string]Agent{}}
}

// Register instantiates ref if needed and delegates to
// RegisterInstance. Accepted refs: an Agent or a Constructor.
func (r *Registry) Register(ref any, override bool) error {
	switch v := ref.(type) {
	case Agent:
		return r.RegisterInstance(v, override)
	case Constructor:
		instance, err := v()
		if err != nil {
			return &ResolutionError{Ref: "constructor", Cause: err}
		}
		return r.RegisterInstance(instance, override)
	case func() (Agent, error):
		return r.Register(Constructor(v), override)
	default:
		return &InvalidDefinitionError{Ref: fmt.Sprintf("%T", ref)}
	}
}

// RegisterInstance stores an agent under its key. Duplicate keys error
// unless override is set.
func (r *Registry) RegisterInstance(a Agent, override bool) error {
	if a == nil || a.Key() == "" {
		return configErrorf("agent instance with a non-empty key is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.Key()]; exists && !override {
		return &DuplicateError{Key: a.Key()}
	}
	r.agents[a.Key()] = a
	return nil
}

func (r *Registry) Get(key string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	return a, nil
}

func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[key]
	return ok
}

func (r *Registry) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for k := range r.agents {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Unregister(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.agents[key]
	delete(r.agents, key)
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = map[string]Agent{}
}
