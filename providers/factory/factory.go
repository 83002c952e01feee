// Package factory builds providers from environment configuration so
// binaries can switch backends without code changes.
package factory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stratumhq/agentpipe/internal/config"
	"github.com/stratumhq/agentpipe/llm"
	anthropicprov "github.com/stratumhq/agentpipe/providers/anthropic"
	azureopenaiprov "github.com/stratumhq/agentpipe/providers/azureopenai"
	geminiprov "github.com/stratumhq/agentpipe/providers/gemini"
	ollamaprov "github.com/stratumhq/agentpipe/providers/ollama"
	openaiprov "github.com/stratumhq/agentpipe/providers/openai"
)

// FromEnv constructs the provider selected by AGENT_PROVIDER. Each
// backend reads its own credential and model variables.
func FromEnv(ctx context.Context) (llm.Provider, error) {
	provider := strings.ToLower(config.Getenv("AGENT_PROVIDER", "openai"))
	switch provider {
	case "openai":
		key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when AGENT_PROVIDER=openai")
		}
		opts := []openaiprov.Option{openaiprov.WithModel(config.Getenv("OPENAI_MODEL", "gpt-4o-mini"))}
		if baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); baseURL != "" {
			opts = append(opts, openaiprov.WithBaseURL(baseURL))
		}
		return openaiprov.New(key, opts...)

	case "anthropic":
		key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when AGENT_PROVIDER=anthropic")
		}
		opts := []anthropicprov.Option{anthropicprov.WithModel(config.Getenv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"))}
		if baseURL := strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")); baseURL != "" {
			opts = append(opts, anthropicprov.WithBaseURL(baseURL))
		}
		return anthropicprov.New(key, opts...)

	case "gemini":
		key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required when AGENT_PROVIDER=gemini")
		}
		return geminiprov.New(ctx, key, geminiprov.WithModel(config.Getenv("GEMINI_MODEL", "gemini-2.5-flash")))

	case "ollama":
		return ollamaprov.New(
			ollamaprov.WithModel(config.Getenv("OLLAMA_MODEL", "llama3.1:8b")),
			ollamaprov.WithBaseURL(config.Getenv("OLLAMA_BASE_URL", "http://127.0.0.1:11434")),
			ollamaprov.WithAPIKey(strings.TrimSpace(os.Getenv("OLLAMA_API_KEY"))),
		)

	case "azureopenai":
		apiKey := strings.TrimSpace(os.Getenv("AZURE_OPENAI_API_KEY"))
		if apiKey == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_API_KEY is required when AGENT_PROVIDER=azureopenai")
		}
		endpoint := strings.TrimSpace(os.Getenv("AZURE_OPENAI_ENDPOINT"))
		if endpoint == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT is required when AGENT_PROVIDER=azureopenai")
		}
		deployment := strings.TrimSpace(os.Getenv("AZURE_OPENAI_DEPLOYMENT"))
		if deployment == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_DEPLOYMENT is required when AGENT_PROVIDER=azureopenai")
		}
		return azureopenaiprov.New(
			apiKey,
			azureopenaiprov.WithEndpoint(endpoint),
			azureopenaiprov.WithDeployment(deployment),
			azureopenaiprov.WithModel(config.Getenv("AZURE_OPENAI_MODEL", deployment)),
			azureopenaiprov.WithAPIVersion(config.Getenv("AZURE_OPENAI_API_VERSION", "2024-10-21")),
		)
	}

	return nil, fmt.Errorf("unsupported AGENT_PROVIDER %q (use openai, anthropic, gemini, ollama, or azureopenai)", provider)
}
