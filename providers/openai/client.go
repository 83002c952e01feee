// Package openai implements the llm.Provider contract over the OpenAI
// chat completions API using the go-openai SDK.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/types"
)

const defaultModel = "gpt-4o-mini"

type Client struct {
	client *goopenai.Client
	model  string
	name   string
}

type Option func(*clientConfig)

type clientConfig struct {
	model   string
	baseURL string
	name    string
	client  *goopenai.Client
}

func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

func WithBaseURL(baseURL string) Option {
	return func(c *clientConfig) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithSDKClient substitutes a preconfigured SDK client, mainly for
// tests and proxies.
func WithSDKClient(client *goopenai.Client) Option {
	return func(c *clientConfig) { c.client = client }
}

// WithProviderName overrides the reported provider name. Used by
// OpenAI-compatible backends that reuse this transport.
func WithProviderName(name string) Option {
	return func(c *clientConfig) { c.name = name }
}

func New(apiKey string, opts ...Option) (*Client, error) {
	cfg := clientConfig{model: defaultModel, name: "openai"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.client == nil {
		if strings.TrimSpace(apiKey) == "" {
			return nil, fmt.Errorf("openai api key is required")
		}
		sdkCfg := goopenai.DefaultConfig(apiKey)
		if cfg.baseURL != "" {
			sdkCfg.BaseURL = cfg.baseURL + "/v1"
		}
		cfg.client = goopenai.NewClientWithConfig(sdkCfg)
	}
	return &Client{client: cfg.client, model: cfg.model, name: cfg.name}, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Tools:            true,
		Streaming:        true,
		StructuredOutput: true,
	}
}

func (c *Client) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	chatReq := c.buildChatRequest(req)
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return types.Response{}, c.translateErr(err)
	}
	if len(resp.Choices) == 0 {
		return types.Response{}, &llm.DecodeError{Provider: c.Name(), Message: "response has no choices"}
	}

	choice := resp.Choices[0]
	out := types.Message{Role: types.RoleAssistant, Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return types.Response{
		Message:      out,
		FinishReason: finishReasonFor(choice.FinishReason),
		Usage:        usageMap(resp.Usage),
	}, nil
}

func (c *Client) GenerateStructured(ctx context.Context, req types.Request) (types.StructuredResponse, error) {
	if len(req.ResponseSchema) == 0 {
		return types.StructuredResponse{}, fmt.Errorf("openai structured output requires a response schema")
	}
	chatReq := c.buildChatRequest(req)
	chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
		Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
			Name:   "response",
			Schema: rawSchema(req.ResponseSchema),
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return types.StructuredResponse{}, c.translateErr(err)
	}
	if len(resp.Choices) == 0 {
		return types.StructuredResponse{}, &llm.DecodeError{Provider: c.Name(), Message: "response has no choices"}
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if !json.Valid([]byte(content)) {
		return types.StructuredResponse{}, &llm.DecodeError{Provider: c.Name(), Message: "structured response is not valid JSON"}
	}
	return types.StructuredResponse{
		Structured:   json.RawMessage(content),
		FinishReason: finishReasonFor(resp.Choices[0].FinishReason),
		Usage:        usageMap(resp.Usage),
	}, nil
}

// Stream yields text deltas as they arrive. Tool call fragments are
// accumulated per index and yielded whole once the stream finishes
// with a tool_calls reason.
func (c *Client) Stream(ctx context.Context, req types.Request) (llm.Stream, error) {
	chatReq := c.buildChatRequest(req)
	chatReq.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, c.translateErr(err)
	}

	return func(yield func(types.StreamEvent, error) bool) {
		defer stream.Close()
		pending := map[int]*types.ToolCall{}

		for {
			chunk, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield(types.StreamEvent{}, c.translateErr(err))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]

			if choice.Delta.Content != "" {
				if !yield(types.StreamEvent{Type: types.StreamText, Text: choice.Delta.Content}, nil) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				index := 0
				if tc.Index != nil {
					index = *tc.Index
				}
				call := pending[index]
				if call == nil {
					call = &types.ToolCall{}
					pending[index] = call
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name += tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					call.Arguments = append(call.Arguments, tc.Function.Arguments...)
				}
			}

			if choice.FinishReason != "" {
				for i := 0; i < len(pending); i++ {
					call := pending[i]
					if call == nil || call.Name == "" {
						continue
					}
					if !yield(types.StreamEvent{Type: types.StreamToolCall, ToolCall: call}, nil) {
						return
					}
				}
				yield(types.StreamEvent{
					Type:         types.StreamFinish,
					FinishReason: finishReasonFor(choice.FinishReason),
				}, nil)
				return
			}
		}
	}, nil
}

func (c *Client) buildChatRequest(req types.Request) goopenai.ChatCompletionRequest {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	chatReq := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(req),
	}
	if req.MaxOutputTokens > 0 {
		chatReq.MaxTokens = req.MaxOutputTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if len(req.Tools) > 0 || len(req.ProviderTools) > 0 {
		chatReq.Tools = toChatTools(req.Tools, req.ProviderTools)
	}
	return chatReq
}

func toChatMessages(req types.Request) []goopenai.ChatCompletionMessage {
	messages := req.Messages
	if len(messages) == 0 {
		messages = []types.Message{{Role: types.RoleUser, Content: req.Prompt, Attachments: req.Attachments}}
	}

	out := make([]goopenai.ChatCompletionMessage, 0, len(messages)+1)
	if req.SystemPrompt != "" {
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	for _, m := range messages {
		switch m.Role {
		case types.RoleUser, types.RoleSystem:
			msg := goopenai.ChatCompletionMessage{Role: string(m.Role)}
			if parts := visionParts(m); parts != nil {
				msg.MultiContent = parts
			} else {
				msg.Content = m.Content
			}
			out = append(out, msg)
		case types.RoleAssistant:
			msg := goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, goopenai.ToolCall{
					ID:   tc.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		case types.RoleTool:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    m.Content,
				Name:       m.Name,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func visionParts(m types.Message) []goopenai.ChatMessagePart {
	hasImage := false
	for _, att := range m.Attachments {
		if imageURLFor(att) != "" {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return nil
	}
	parts := make([]goopenai.ChatMessagePart, 0, len(m.Attachments)+1)
	if m.Content != "" {
		parts = append(parts, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeText,
			Text: m.Content,
		})
	}
	for _, att := range m.Attachments {
		url := imageURLFor(att)
		if url == "" {
			continue
		}
		parts = append(parts, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{
				URL:    url,
				Detail: goopenai.ImageURLDetailAuto,
			},
		})
	}
	return parts
}

// imageURLFor returns the attachment as an image URL, inlining raw
// bytes as a data URI when no URL is present.
func imageURLFor(att types.Attachment) string {
	if !strings.HasPrefix(att.MIMEType, "image/") {
		return ""
	}
	if att.URL != "" {
		return att.URL
	}
	if len(att.Data) > 0 {
		return types.DataURI(att.MIMEType, att.Data)
	}
	return ""
}

func toChatTools(handles []types.ToolHandle, providerTools []map[string]any) []goopenai.Tool {
	out := make([]goopenai.Tool, 0, len(handles)+len(providerTools))
	for _, h := range handles {
		schema := h.Definition.JSONSchema
		if len(schema) == 0 {
			schema = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        h.Definition.Name,
				Description: h.Definition.Description,
				Parameters:  schema,
			},
		})
	}
	// Provider-native tool configs pass through by re-decoding into
	// the SDK shape.
	for _, raw := range providerTools {
		encoded, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		var tool goopenai.Tool
		if err := json.Unmarshal(encoded, &tool); err != nil {
			continue
		}
		out = append(out, tool)
	}
	return out
}

func finishReasonFor(reason goopenai.FinishReason) types.FinishReason {
	switch reason {
	case goopenai.FinishReasonStop:
		return types.FinishStop
	case goopenai.FinishReasonLength:
		return types.FinishLength
	case goopenai.FinishReasonToolCalls, goopenai.FinishReasonFunctionCall:
		return types.FinishToolCalls
	default:
		return types.FinishUnknown
	}
}

func usageMap(u goopenai.Usage) map[string]any {
	return map[string]any{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
}

func (c *Client) translateErr(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = err.Error()
		}
		return llm.TranslateStatus(c.Name(), apiErr.HTTPStatusCode, message)
	}
	return err
}

// rawSchema adapts a schema map to the json.Marshaler the SDK's
// response format expects.
type rawSchema map[string]any

func (s rawSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

var _ llm.Provider = (*Client)(nil)
