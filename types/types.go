package types

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Attachment is a binary or remote payload attached to a message,
// typically an image or document for vision-capable models.
type Attachment struct {
	MIMEType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// DataURI encodes raw attachment bytes as a data URI for providers
// that only accept URL-shaped image references.
func DataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Name        string       `json:"name,omitempty"` // Tool name for tool role messages.
	ToolCallID  string       `json:"toolCallId,omitempty"`
	ToolCalls   []ToolCall   `json:"toolCalls,omitempty"`
}

type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Result    string          `json:"result,omitempty"`
}

type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"isError,omitempty"`
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	JSONSchema  map[string]any `json:"jsonSchema,omitempty"`
}

// ToolHandle pairs a tool definition with the function the transport
// invokes when the model requests that tool during a generation loop.
type ToolHandle struct {
	Definition ToolDefinition
	Run        func(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

// RetryPolicy is accepted as configuration and passed through to the
// transport verbatim; the orchestration layer never retries on its own.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Request is the provider-agnostic shape of a single generation call.
// Exactly one of Prompt or Messages is populated.
type Request struct {
	Model           string           `json:"model,omitempty"`
	SystemPrompt    string           `json:"systemPrompt,omitempty"`
	Prompt          string           `json:"prompt,omitempty"`
	Messages        []Message        `json:"messages,omitempty"`
	Attachments     []Attachment     `json:"attachments,omitempty"`
	Tools           []ToolHandle     `json:"-"`
	ProviderTools   []map[string]any `json:"providerTools,omitempty"`
	Temperature     *float64         `json:"temperature,omitempty"`
	MaxOutputTokens int              `json:"maxOutputTokens,omitempty"`
	MaxSteps        int              `json:"maxSteps,omitempty"`
	ClientOptions   map[string]any   `json:"clientOptions,omitempty"`
	ProviderOptions map[string]any   `json:"providerOptions,omitempty"`
	ResponseSchema  map[string]any   `json:"responseSchema,omitempty"`
	Retry           *RetryPolicy     `json:"-"`
}

type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishLength    FinishReason = "length"
	FinishToolCalls FinishReason = "tool_calls"
	FinishUnknown   FinishReason = ""
)

// Step records one round of a multi-step tool-calling exchange. Calls
// and Results are paired by index.
type Step struct {
	Calls   []ToolCall   `json:"calls,omitempty"`
	Results []ToolResult `json:"results,omitempty"`
}

// Response is a text-mode provider response. Usage carries the raw
// provider usage payload; normalization happens in the usage package.
type Response struct {
	Message      Message      `json:"message"`
	Steps        []Step       `json:"steps,omitempty"`
	Usage        any          `json:"usage,omitempty"`
	FinishReason FinishReason `json:"finishReason,omitempty"`
}

// StructuredResponse is a structured-mode provider response: the model
// output decoded against a declared schema.
type StructuredResponse struct {
	Structured   json.RawMessage `json:"structured"`
	Usage        any             `json:"usage,omitempty"`
	FinishReason FinishReason    `json:"finishReason,omitempty"`
}
