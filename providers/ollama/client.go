// Package ollama implements the llm.Provider contract against a local
// Ollama daemon through its OpenAI-compatible chat endpoint.
package ollama

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

const defaultModel = "llama3.1:8b"

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

func WithAPIKey(apiKey string) Option {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func New(opts ...Option) (*Client, error) {
	c := &Client{
		model:   defaultModel,
		baseURL: "http://127.0.0.1:11434",
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Tools:            true,
		Streaming:        false,
		StructuredOutput: true,
	}
}

func (c *Client) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	apiResp, err := c.complete(ctx, req, nil)
	if err != nil {
		return types.Response{}, err
	}

	choice := apiResp.Choices[0]
	out := types.Message{
		Role:    types.RoleAssistant,
		Content: messageContentToString(choice.Message.Content),
	}
	if len(choice.Message.ToolCalls) > 0 {
		out.ToolCalls = make([]types.ToolCall, 0, len(choice.Message.ToolCalls))
		for _, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, types.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: normalizeJSONArgs(tc.Function.Arguments),
			})
		}
	}

	return types.Response{
		Message:      out,
		FinishReason: finishReasonFor(choice.FinishReason),
		Usage:        usageMap(apiResp.Usage),
	}, nil
}

// GenerateStructured forces JSON object output. The daemon does not
// enforce the schema itself; callers validate the payload against it.
func (c *Client) GenerateStructured(ctx context.Context, req types.Request) (types.StructuredResponse, error) {
	if len(req.ResponseSchema) == 0 {
		return types.StructuredResponse{}, fmt.Errorf("ollama structured output requires a response schema")
	}
	apiResp, err := c.complete(ctx, req, map[string]any{"type": "json_object"})
	if err != nil {
		return types.StructuredResponse{}, err
	}

	choice := apiResp.Choices[0]
	content := strings.TrimSpace(messageContentToString(choice.Message.Content))
	if !json.Valid([]byte(content)) {
		return types.StructuredResponse{}, &llm.DecodeError{Provider: c.Name(), Message: "structured response is not valid JSON"}
	}
	return types.StructuredResponse{
		Structured:   json.RawMessage(content),
		FinishReason: finishReasonFor(choice.FinishReason),
		Usage:        usageMap(apiResp.Usage),
	}, nil
}

func (c *Client) Stream(ctx context.Context, req types.Request) (llm.Stream, error) {
	return nil, fmt.Errorf("ollama: %w", llm.ErrNotSupported)
}

func (c *Client) complete(ctx context.Context, req types.Request, responseFormat map[string]any) (*chatResponse, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	messages := req.Messages
	if len(messages) == 0 {
		messages = []types.Message{{Role: types.RoleUser, Content: req.Prompt}}
	}

	payload := chatRequest{
		Model:          model,
		Messages:       make([]chatMessage, 0, len(messages)+1),
		ResponseFormat: responseFormat,
	}
	if req.MaxOutputTokens > 0 {
		payload.MaxTokens = req.MaxOutputTokens
	}
	if req.Temperature != nil {
		payload.Temperature = req.Temperature
	}

	if req.SystemPrompt != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	payload.Messages = append(payload.Messages, toChatMessages(messages)...)

	if len(req.Tools) > 0 {
		payload.ToolChoice = "auto"
		payload.Tools = toChatTools(req.Tools)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ollama response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, llm.TranslateStatus(c.Name(), resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &llm.DecodeError{Provider: c.Name(), Message: "invalid JSON response", Cause: err}
	}
	if len(apiResp.Choices) == 0 {
		return nil, &llm.DecodeError{Provider: c.Name(), Message: "response has no choices"}
	}
	return &apiResp, nil
}

func toChatMessages(in []types.Message) []chatMessage {
	msgs := make([]chatMessage, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case types.RoleUser, types.RoleSystem:
			msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
		case types.RoleAssistant:
			out := chatMessage{Role: "assistant", Content: m.Content}
			if len(m.ToolCalls) > 0 {
				out.ToolCalls = make([]chatToolCall, 0, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					args := "{}"
					if len(tc.Arguments) > 0 {
						args = string(tc.Arguments)
					}
					out.ToolCalls = append(out.ToolCalls, chatToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: chatFunctionCall{
							Name:      tc.Name,
							Arguments: args,
						},
					})
				}
			}
			msgs = append(msgs, out)
		case types.RoleTool:
			msgs = append(msgs, chatMessage{
				Role:       "tool",
				Name:       m.Name,
				ToolCallID: m.ToolCallID,
				Content:    m.Content,
			})
		}
	}
	return msgs
}

func toChatTools(handles []types.ToolHandle) []chatTool {
	tools := make([]chatTool, 0, len(handles))
	for _, h := range handles {
		params := h.Definition.JSONSchema
		if len(params) == 0 {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        h.Definition.Name,
				Description: h.Definition.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

func messageContentToString(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case nil:
		return ""
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprintf("%v", c)
		}
		return string(b)
	}
}

func normalizeJSONArgs(raw string) json.RawMessage {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return json.RawMessage(`{}`)
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	escaped, _ := json.Marshal(raw)
	return json.RawMessage(fmt.Sprintf(`{"raw":%s}`, string(escaped)))
}

func finishReasonFor(reason string) types.FinishReason {
	switch reason {
	case "stop":
		return types.FinishStop
	case "length":
		return types.FinishLength
	case "tool_calls":
		return types.FinishToolCalls
	default:
		return types.FinishUnknown
	}
}

func usageMap(u chatUsage) any {
	if u.TotalTokens == 0 {
		return nil
	}
	return map[string]any{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Tools          []chatTool     `json:"tools,omitempty"`
	ToolChoice     string         `json:"tool_choice,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Temperature    *float64       `json:"temperature,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Name       string         `json:"name,omitempty"`
	Content    any            `json:"content"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage chatUsage `json:"usage"`
}

var _ llm.Provider = (*Client)(nil)
