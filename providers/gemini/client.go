// Package gemini implements the llm.Provider contract over the Google
// Gemini API using the google genai SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/types"
)

const defaultModel = "gemini-2.5-flash"

type Client struct {
	client *genai.Client
	model  string
}

type Option func(*clientConfig)

type clientConfig struct {
	model  string
	client *genai.Client
}

func WithModel(model string) Option {
	return func(c *clientConfig) { c.model = model }
}

// WithSDKClient substitutes a preconfigured genai client, mainly for
// tests and proxies.
func WithSDKClient(client *genai.Client) Option {
	return func(c *clientConfig) { c.client = client }
}

func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	cfg := clientConfig{model: defaultModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.client == nil {
		if strings.TrimSpace(apiKey) == "" {
			return nil, fmt.Errorf("gemini api key is required")
		}
		gc, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		cfg.client = gc
	}
	return &Client{client: cfg.client, model: cfg.model}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		Tools:            true,
		Streaming:        true,
		StructuredOutput: true,
	}
}

func (c *Client) Generate(ctx context.Context, req types.Request) (types.Response, error) {
	model, config := c.buildConfig(req)
	resp, err := c.client.Models.GenerateContent(ctx, model, toContents(req), config)
	if err != nil {
		return types.Response{}, translateErr(err)
	}
	out, perr := parseResponse(resp)
	if perr != nil {
		return types.Response{}, perr
	}
	return out, nil
}

// GenerateStructured constrains decoding with the declared schema via
// JSON response mode and returns the raw JSON payload.
func (c *Client) GenerateStructured(ctx context.Context, req types.Request) (types.StructuredResponse, error) {
	if len(req.ResponseSchema) == 0 {
		return types.StructuredResponse{}, fmt.Errorf("gemini structured output requires a response schema")
	}
	model, config := c.buildConfig(req)
	config.ResponseMIMEType = "application/json"
	config.ResponseJsonSchema = req.ResponseSchema

	resp, err := c.client.Models.GenerateContent(ctx, model, toContents(req), config)
	if err != nil {
		return types.StructuredResponse{}, translateErr(err)
	}
	out, perr := parseResponse(resp)
	if perr != nil {
		return types.StructuredResponse{}, perr
	}

	content := strings.TrimSpace(out.Message.Content)
	if !json.Valid([]byte(content)) {
		return types.StructuredResponse{}, &llm.DecodeError{Provider: c.Name(), Message: "structured response is not valid JSON"}
	}
	return types.StructuredResponse{
		Structured:   json.RawMessage(content),
		FinishReason: out.FinishReason,
		Usage:        out.Usage,
	}, nil
}

func (c *Client) Stream(ctx context.Context, req types.Request) (llm.Stream, error) {
	model, config := c.buildConfig(req)
	stream := c.client.Models.GenerateContentStream(ctx, model, toContents(req), config)

	return func(yield func(types.StreamEvent, error) bool) {
		var last *genai.GenerateContentResponse
		for chunk, err := range stream {
			if err != nil {
				yield(types.StreamEvent{}, translateErr(err))
				return
			}
			if chunk == nil {
				continue
			}
			last = chunk

			if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
				continue
			}
			for _, part := range chunk.Candidates[0].Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" && !part.Thought {
					if !yield(types.StreamEvent{Type: types.StreamText, Text: part.Text}, nil) {
						return
					}
				}
				if part.FunctionCall != nil {
					call := toToolCall(part.FunctionCall)
					if !yield(types.StreamEvent{Type: types.StreamToolCall, ToolCall: &call}, nil) {
						return
					}
				}
			}
		}

		finish := types.FinishStop
		var usage any
		if last != nil {
			if len(last.Candidates) > 0 {
				finish = finishReasonFor(last.Candidates[0].FinishReason)
			}
			usage = usageMap(last.UsageMetadata)
		}
		yield(types.StreamEvent{Type: types.StreamFinish, FinishReason: finish, Usage: usage}, nil)
	}, nil
}

func (c *Client) buildConfig(req types.Request) (string, *genai.GenerateContentConfig) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	config := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = clampInt32(req.MaxOutputTokens)
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		config.Temperature = &t
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{
			{FunctionDeclarations: toFunctionDeclarations(req.Tools)},
		}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}
	}
	return model, config
}

func translateErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = err.Error()
		}
		return llm.TranslateStatus("gemini", apiErr.Code, message)
	}
	return fmt.Errorf("gemini generation failed: %w", err)
}

func parseResponse(resp *genai.GenerateContentResponse) (types.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		message := "response has no candidates"
		if resp != nil && resp.PromptFeedback != nil && strings.TrimSpace(resp.PromptFeedback.BlockReasonMessage) != "" {
			message = "prompt blocked: " + strings.TrimSpace(resp.PromptFeedback.BlockReasonMessage)
		}
		return types.Response{}, &llm.DecodeError{Provider: "gemini", Message: message}
	}

	candidate := resp.Candidates[0]
	out := types.Message{Role: types.RoleAssistant}
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			out.ToolCalls = append(out.ToolCalls, toToolCall(part.FunctionCall))
		}
	}
	out.Content = strings.TrimSpace(out.Content)

	finish := finishReasonFor(candidate.FinishReason)
	if len(out.ToolCalls) > 0 {
		finish = types.FinishToolCalls
	}
	return types.Response{
		Message:      out,
		FinishReason: finish,
		Usage:        usageMap(resp.UsageMetadata),
	}, nil
}

func toToolCall(fc *genai.FunctionCall) types.ToolCall {
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	rawArgs, _ := json.Marshal(args)
	return types.ToolCall{
		ID:        fc.ID,
		Name:      fc.Name,
		Arguments: rawArgs,
	}
}

func finishReasonFor(reason genai.FinishReason) types.FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return types.FinishStop
	case genai.FinishReasonMaxTokens:
		return types.FinishLength
	default:
		return types.FinishUnknown
	}
}

func usageMap(u *genai.GenerateContentResponseUsageMetadata) any {
	if u == nil {
		return nil
	}
	return map[string]any{
		"prompt_tokens":     int(u.PromptTokenCount),
		"completion_tokens": int(u.CandidatesTokenCount),
		"total_tokens":      int(u.TotalTokenCount),
	}
}

func clampInt32(v int) int32 {
	if v <= 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}

func toFunctionDeclarations(handles []types.ToolHandle) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(handles))
	for _, h := range handles {
		schema := h.Definition.JSONSchema
		if len(schema) == 0 {
			schema = map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			}
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:                 h.Definition.Name,
			Description:          h.Definition.Description,
			ParametersJsonSchema: schema,
		})
	}
	return out
}

func toContents(req types.Request) []*genai.Content {
	messages := req.Messages
	if len(messages) == 0 {
		messages = []types.Message{{Role: types.RoleUser, Content: req.Prompt, Attachments: req.Attachments}}
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case types.RoleUser, types.RoleSystem:
			parts := make([]*genai.Part, 0, len(m.Attachments)+1)
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, att := range m.Attachments {
				if p := attachmentPart(att); p != nil {
					parts = append(parts, p)
				}
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
			}

		case types.RoleAssistant:
			parts := make([]*genai.Part, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				parts = append(parts, genai.NewPartFromText(m.Content))
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if len(tc.Arguments) > 0 {
					_ = json.Unmarshal(tc.Arguments, &args)
				}
				p := genai.NewPartFromFunctionCall(tc.Name, args)
				if tc.ID != "" {
					p.FunctionCall.ID = tc.ID
				}
				parts = append(parts, p)
			}
			if len(parts) > 0 {
				contents = append(contents, genai.NewContentFromParts(parts, genai.RoleModel))
			}

		case types.RoleTool:
			response := map[string]any{}
			if err := json.Unmarshal([]byte(m.Content), &response); err != nil {
				response = map[string]any{"output": m.Content}
			}
			p := genai.NewPartFromFunctionResponse(m.Name, response)
			if m.ToolCallID != "" {
				p.FunctionResponse.ID = m.ToolCallID
			}
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{p}, genai.RoleUser))
		}
	}
	return contents
}

func attachmentPart(att types.Attachment) *genai.Part {
	switch {
	case len(att.Data) > 0:
		return genai.NewPartFromBytes(att.Data, att.MIMEType)
	case att.URL != "":
		return genai.NewPartFromURI(att.URL, att.MIMEType)
	default:
		return nil
	}
}

var _ llm.Provider = (*Client)(nil)
