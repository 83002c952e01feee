// Package azureopenai exposes Azure OpenAI deployments through the
// shared OpenAI transport. Azure routes requests by deployment name
// rather than model, so the SDK config maps every model to the
// configured deployment.
package azureopenai

import (
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/stratumhq/agentpipe/providers/openai"
)

const defaultAPIVersion = "2024-10-21"

type Option func(*config)

type config struct {
	endpoint   string
	deployment string
	model      string
	apiVersion string
}

func WithEndpoint(endpoint string) Option {
	return func(c *config) { c.endpoint = strings.TrimRight(endpoint, "/") }
}

func WithDeployment(deployment string) Option {
	return func(c *config) { c.deployment = deployment }
}

func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

func WithAPIVersion(apiVersion string) Option {
	return func(c *config) { c.apiVersion = apiVersion }
}

func New(apiKey string, opts ...Option) (*openai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("azure openai api key is required")
	}
	cfg := config{apiVersion: defaultAPIVersion}
	for _, opt := range opts {
		opt(&cfg)
	}
	if strings.TrimSpace(cfg.endpoint) == "" {
		return nil, fmt.Errorf("azure openai endpoint is required")
	}
	if strings.TrimSpace(cfg.deployment) == "" {
		return nil, fmt.Errorf("azure openai deployment is required")
	}
	if strings.TrimSpace(cfg.model) == "" {
		cfg.model = cfg.deployment
	}

	sdkCfg := goopenai.DefaultAzureConfig(apiKey, cfg.endpoint)
	sdkCfg.APIVersion = cfg.apiVersion
	sdkCfg.AzureModelMapperFunc = func(string) string { return cfg.deployment }

	return openai.New("",
		openai.WithSDKClient(goopenai.NewClientWithConfig(sdkCfg)),
		openai.WithProviderName("azureopenai"),
		openai.WithModel(cfg.model),
	)
}
