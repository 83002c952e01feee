// Package runtimeconfig loads agent definitions from a JSON file and
// registers them into an agent registry. Tool references resolve
// through the tool factory registry, so "@bundle" and "*" selections
// work the same way they do in code.
package runtimeconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stratumhq/agentpipe/agent"
	"github.com/stratumhq/agentpipe/tools"
)

type Config struct {
	Agents []AgentConfig `json:"agents"`
}

// AgentConfig is the file shape of one agent definition.
type AgentConfig struct {
	Key           string         `json:"key"`
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	Provider      string         `json:"provider"`
	Model         string         `json:"model"`
	SystemPrompt  string         `json:"systemPrompt,omitempty"`
	Tools         []string       `json:"tools,omitempty"`
	ProviderTools []any          `json:"providerTools,omitempty"`
	Schema        map[string]any `json:"schema,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	MaxTokens     int            `json:"maxTokens,omitempty"`
	MaxSteps      int            `json:"maxSteps,omitempty"`
}

func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, fmt.Errorf("config path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %q: %w", absPath, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config file %q as JSON: %w", absPath, err)
	}

	for i := range cfg.Agents {
		a := &cfg.Agents[i]
		a.Key = strings.TrimSpace(a.Key)
		a.Provider = strings.TrimSpace(a.Provider)
		a.Model = strings.TrimSpace(a.Model)
		a.SystemPrompt = strings.TrimSpace(a.SystemPrompt)
		clean := make([]string, 0, len(a.Tools))
		for _, t := range a.Tools {
			if t = strings.TrimSpace(t); t != "" {
				clean = append(clean, t)
			}
		}
		a.Tools = clean
		if a.Key == "" {
			return Config{}, fmt.Errorf("config file %q: agent %d has no key", absPath, i)
		}
	}
	return cfg, nil
}

// Apply builds every declared agent and registers it. Existing keys
// are overridden, so a config file can refine code-registered agents.
func (c Config) Apply(registry *agent.Registry) error {
	for _, ac := range c.Agents {
		def, err := ac.Build()
		if err != nil {
			return err
		}
		if err := registry.RegisterInstance(def, true); err != nil {
			return fmt.Errorf("failed to register agent %q: %w", ac.Key, err)
		}
	}
	return nil
}

// Build materializes one declaration into an agent definition.
func (ac AgentConfig) Build() (agent.Agent, error) {
	selected, err := tools.BuildSelection(ac.Tools)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", ac.Key, err)
	}
	def, err := agent.New(agent.Config{
		Key:           ac.Key,
		Name:          ac.Name,
		Description:   ac.Description,
		Provider:      ac.Provider,
		Model:         ac.Model,
		SystemPrompt:  ac.SystemPrompt,
		Tools:         selected,
		ProviderTools: ac.ProviderTools,
		Schema:        ac.Schema,
		Temperature:   ac.Temperature,
		MaxTokens:     ac.MaxTokens,
		MaxSteps:      ac.MaxSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", ac.Key, err)
	}
	return def, nil
}
