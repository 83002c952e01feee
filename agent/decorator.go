package agent

import (
	"github.com/stratumhq/agentpipe/tools"
)

// Decorator is one predicate-gated transform in the decoration chain.
// Decorate must return a new Agent wrapping its argument; the argument
// is never mutated. Decorators apply in descending priority order, each
// wrapping the previous result, so the highest-priority decorator sits
// innermost and the lowest wraps the whole stack.
type Decorator struct {
	Priority  int
	AppliesTo func(Agent) bool
	Decorate  func(Agent) Agent
}

// Overrides lists the facets a decoration replaces. Nil fields fall
// through to the decorated agent.
type Overrides struct {
	SystemPrompt    *string
	Provider        *string
	Model           *string
	Temperature     *float64
	MaxTokens       *int
	MaxSteps        *int
	ExtraTools      []tools.Tool
	Schema          map[string]any
	ClientOptions   map[string]any
	ProviderOptions map[string]any
}

// WithOverrides returns an immutable overlay re-exposing the full agent
// contract by delegation, replacing only the facets set in o.
func WithOverrides(base Agent, o Overrides) Agent {
	return &decorated{base: base, o: o}
}

type decorated struct {
	base Agent
	o    Overrides
}

var _ Agent = (*decorated)(nil)

func (d *decorated) Key() string          { return d.base.Key() }
func (d *decorated) Name() string         { return d.base.Name() }
func (d *decorated) Description() string  { return d.base.Description() }
func (d *decorated) Type() Type           { return d.base.Type() }
func (d *decorated) ProviderTools() []any { return d.base.ProviderTools() }

func (d *decorated) SystemPrompt() string {
	if d.o.SystemPrompt != nil {
		return *d.o.SystemPrompt
	}
	return d.base.SystemPrompt()
}

func (d *decorated) Provider() string {
	if d.o.Provider != nil {
		return *d.o.Provider
	}
	return d.base.Provider()
}

func (d *decorated) Model() string {
	if d.o.Model != nil {
		return *d.o.Model
	}
	return d.base.Model()
}

func (d *decorated) Temperature() *float64 {
	if d.o.Temperature != nil {
		return d.o.Temperature
	}
	return d.base.Temperature()
}

func (d *decorated) MaxTokens() int {
	if d.o.MaxTokens != nil {
		return *d.o.MaxTokens
	}
	return d.base.MaxTokens()
}

func (d *decorated) MaxSteps() int {
	if d.o.MaxSteps != nil {
		return *d.o.MaxSteps
	}
	return d.base.MaxSteps()
}

func (d *decorated) Tools() []tools.Tool {
	if len(d.o.ExtraTools) == 0 {
		return d.base.Tools()
	}
	combined := append([]tools.Tool(nil), d.base.Tools()...)
	return append(combined, d.o.ExtraTools...)
}

func (d *decorated) Schema() map[string]any {
	if d.o.Schema != nil {
		return d.o.Schema
	}
	return d.base.Schema()
}

func (d *decorated) ClientOptions() map[string]any {
	if d.o.ClientOptions != nil {
		return d.o.ClientOptions
	}
	return d.base.ClientOptions()
}

func (d *decorated) ProviderOptions() map[string]any {
	if d.o.ProviderOptions != nil {
		return d.o.ProviderOptions
	}
	return d.base.ProviderOptions()
}
