// Package anthropic implements the llm.Provider contract over the
// Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/types"
)

const (
	defaultModel      = "claude-3-5-sonnet-latest"
	anthropicVersion  = "2023-06-01"
	defaultMaxTokens  = 1024
	defaultAPIBaseURL = "https://api.anthropic.com"

	// Forced tool name used to coerce schema-shaped output.
	structuredToolName = "record_result"
)

type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		model:   defaultModel,
		baseURL: defaultAPIBaseURL,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Tools:            true,
		Streaming:        false,
		StructuredOutput: true,
	}
}

func (c *Client) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	payload := c.buildPayload(req)
	if len(req.Tools) > 0 {
		payload.Tools = toAnthropicTools(req.Tools)
		payload.ToolChoice = &anthropicToolChoice{Type: "auto"}
	}
	for _, pt := range req.ProviderTools {
		payload.Tools = append(payload.Tools, pt)
	}

	apiResp, err := c.send(ctx, payload)
	if err != nil {
		return types.Response{}, err
	}

	out := types.Message{Role: types.RoleAssistant}
	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			args := block.Input
			if args == nil {
				args = map[string]any{}
			}
			rawArgs, _ := json.Marshal(args)
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: rawArgs,
			})
		}
	}
	out.Content = strings.TrimSpace(out.Content)

	return types.Response{
		Message:      out,
		FinishReason: finishReasonFor(apiResp.StopReason),
		Usage:        rawUsage(apiResp),
	}, nil
}

// GenerateStructured forces a single tool call whose input schema is
// the response schema, then returns the tool input as the structured
// payload.
func (c *Client) GenerateStructured(ctx context.Context, req types.Request) (types.StructuredResponse, error) {
	if len(req.ResponseSchema) == 0 {
		return types.StructuredResponse{}, fmt.Errorf("anthropic structured output requires a response schema")
	}
	payload := c.buildPayload(req)
	payload.Tools = []any{anthropicTool{
		Name:        structuredToolName,
		Description: "Record the answer in the required shape.",
		InputSchema: req.ResponseSchema,
	}}
	payload.ToolChoice = &anthropicToolChoice{Type: "tool", Name: structuredToolName}

	apiResp, err := c.send(ctx, payload)
	if err != nil {
		return types.StructuredResponse{}, err
	}

	for _, block := range apiResp.Content {
		if block.Type != "tool_use" || block.Name != structuredToolName {
			continue
		}
		raw, err := json.Marshal(block.Input)
		if err != nil {
			return types.StructuredResponse{}, &llm.DecodeError{Provider: c.Name(), Message: "failed to encode structured output", Cause: err}
		}
		return types.StructuredResponse{
			Structured:   raw,
			FinishReason: types.FinishStop,
			Usage:        rawUsage(apiResp),
		}, nil
	}
	return types.StructuredResponse{}, &llm.DecodeError{Provider: c.Name(), Message: "model returned no structured block"}
}

func (c *Client) Stream(ctx context.Context, req types.Request) (llm.Stream, error) {
	return nil, llm.ErrNotSupported
}

func (c *Client) buildPayload(req types.Request) anthropicRequest {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	messages := req.Messages
	if len(messages) == 0 {
		messages = []types.Message{{Role: types.RoleUser, Content: req.Prompt}}
	}
	return anthropicRequest{
		Model:       model,
		System:      req.SystemPrompt,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Messages:    toAnthropicMessages(messages),
	}
}

func (c *Client) send(ctx context.Context, payload anthropicRequest) (anthropicResponse, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return anthropicResponse{}, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return anthropicResponse{}, fmt.Errorf("failed to create anthropic request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return anthropicResponse{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return anthropicResponse{}, fmt.Errorf("failed to read anthropic response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return anthropicResponse{}, llm.TranslateStatus(c.Name(), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return anthropicResponse{}, &llm.DecodeError{Provider: c.Name(), Message: "failed to decode anthropic response", Cause: err}
	}
	return apiResp, nil
}

func finishReasonFor(stopReason string) types.FinishReason {
	switch stopReason {
	case "end_turn", "stop_sequence":
		return types.FinishStop
	case "max_tokens":
		return types.FinishLength
	case "tool_use":
		return types.FinishToolCalls
	default:
		return types.FinishUnknown
	}
}

func rawUsage(apiResp anthropicResponse) any {
	if apiResp.Usage.InputTokens == 0 && apiResp.Usage.OutputTokens == 0 {
		return nil
	}
	return map[string]any{
		"input_tokens":  apiResp.Usage.InputTokens,
		"output_tokens": apiResp.Usage.OutputTokens,
		"total_tokens":  apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
	}
}

func toAnthropicTools(in []types.ToolHandle) []any {
	tools := make([]any, 0, len(in))
	for _, h := range in {
		schema := h.Definition.JSONSchema
		if len(schema) == 0 {
			schema = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		tools = append(tools, anthropicTool{
			Name:        h.Definition.Name,
			Description: h.Definition.Description,
			InputSchema: schema,
		})
	}
	return tools
}

func toAnthropicMessages(in []types.Message) []anthropicMessage {
	msgs := make([]anthropicMessage, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case types.RoleUser:
			msgs = append(msgs, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{
					{Type: "text", Text: m.Content},
				},
			})
		case types.RoleAssistant:
			blocks := make([]anthropicContentBlock, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{
					Type: "text",
					Text: m.Content,
				})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if len(tc.Arguments) > 0 {
					_ = json.Unmarshal(tc.Arguments, &args)
				}
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: args,
				})
			}
			if len(blocks) > 0 {
				msgs = append(msgs, anthropicMessage{
					Role:    "assistant",
					Content: blocks,
				})
			}
		case types.RoleTool:
			msgs = append(msgs, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{
					{
						Type:      "tool_result",
						ToolUseID: m.ToolCallID,
						Content:   m.Content,
					},
				},
			})
		}
	}
	return msgs
}

type anthropicRequest struct {
	Model       string               `json:"model"`
	System      string               `json:"system,omitempty"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature *float64             `json:"temperature,omitempty"`
	Messages    []anthropicMessage   `json:"messages"`
	Tools       []any                `json:"tools,omitempty"`
	ToolChoice  *anthropicToolChoice `json:"tool_choice,omitempty"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   any            `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

var _ llm.Provider = (*Client)(nil)
