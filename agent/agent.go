// Package agent implements the agent execution pipeline: resolving
// agent definitions, building provider requests from an execution
// context, routing every call through named pipeline events, and
// normalizing provider responses.
package agent

import (
	"fmt"
	"strings"

	"github.com/stratumhq/agentpipe/tools"
)

type Type string

const (
	TypeAPI Type = "api"
	TypeCLI Type = "cli"
)

// Agent is the capability contract a resolvable agent satisfies. All
// optional facets default to absent or empty.
type Agent interface {
	Key() string
	Name() string
	Description() string
	Type() Type
	Provider() string
	Model() string
	SystemPrompt() string
	Tools() []tools.Tool
	ProviderTools() []any
	Schema() map[string]any
	Temperature() *float64
	MaxTokens() int
	MaxSteps() int
	ClientOptions() map[string]any
	ProviderOptions() map[string]any
}

// Config declares an agent definition. Key is required and must be
// unique within a registry.
type Config struct {
	Key             string
	Name            string
	Description     string
	Type            Type
	Provider        string
	Model           string
	SystemPrompt    string
	Tools           []tools.Tool
	ProviderTools   []any
	Schema          map[string]any
	Temperature     *float64
	MaxTokens       int
	MaxSteps        int
	ClientOptions   map[string]any
	ProviderOptions map[string]any
}

// Definition is the plain value implementation of Agent: one reusable
// LLM behavior as a named configuration bundle.
type Definition struct {
	cfg Config
}

func New(cfg Config) (*Definition, error) {
	cfg.Key = strings.TrimSpace(cfg.Key)
	if cfg.Key == "" {
		return nil, fmt.Errorf("agent key is required")
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Key
	}
	if cfg.Type == "" {
		cfg.Type = TypeAPI
	}
	return &Definition{cfg: cfg}, nil
}

// MustNew is New for statically-known configurations.
func MustNew(cfg Config) *Definition {
	d, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Definition) Key() string                     { return d.cfg.Key }
func (d *Definition) Name() string                    { return d.cfg.Name }
func (d *Definition) Description() string             { return d.cfg.Description }
func (d *Definition) Type() Type                      { return d.cfg.Type }
func (d *Definition) Provider() string                { return d.cfg.Provider }
func (d *Definition) Model() string                   { return d.cfg.Model }
func (d *Definition) SystemPrompt() string            { return d.cfg.SystemPrompt }
func (d *Definition) Tools() []tools.Tool             { return d.cfg.Tools }
func (d *Definition) ProviderTools() []any            { return d.cfg.ProviderTools }
func (d *Definition) Schema() map[string]any          { return d.cfg.Schema }
func (d *Definition) Temperature() *float64           { return d.cfg.Temperature }
func (d *Definition) MaxTokens() int                  { return d.cfg.MaxTokens }
func (d *Definition) MaxSteps() int                   { return d.cfg.MaxSteps }
func (d *Definition) ClientOptions() map[string]any   { return d.cfg.ClientOptions }
func (d *Definition) ProviderOptions() map[string]any { return d.cfg.ProviderOptions }
