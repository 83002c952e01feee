package agent

import (
	"encoding/json"

	"github.com/stratumhq/agentpipe/types"
	"github.com/stratumhq/agentpipe/usage"
)

// Response is the provider-agnostic result of one agent call.
type Response struct {
	Text         string           `json:"text,omitempty"`
	Structured   json.RawMessage  `json:"structured,omitempty"`
	ToolCalls    []types.ToolCall `json:"tool_calls,omitempty"`
	Usage        usage.Usage      `json:"usage"`
	FinishReason string           `json:"finish_reason,omitempty"`
	Metadata     map[string]any   `json:"metadata,omitempty"`
}

// HasStructured reports whether structured output is present.
func (r *Response) HasStructured() bool { return len(r.Structured) > 0 }

// Decode unmarshals the structured payload into out.
func (r *Response) Decode(out any) error {
	if !r.HasStructured() {
		return configErrorf("response has no structured payload")
	}
	return json.Unmarshal(r.Structured, out)
}

// normalizeText flattens a transport response: tool calls recorded on
// steps are replayed positionally, pairing each call with its result,
// with the flat assistant-message calls as a fallback for providers
// that never looped.
func (e *Executor) normalizeText(providerName string, in types.Response) *Response {
	resp := &Response{
		Text:         in.Message.Content,
		FinishReason: string(in.FinishReason),
		Usage:        e.usage.ForProvider(providerName).Extract(in.Usage),
	}
	if len(in.Steps) > 0 {
		for _, step := range in.Steps {
			for i, call := range step.Calls {
				if i < len(step.Results) {
					call.Result = step.Results[i].Content
				}
				resp.ToolCalls = append(resp.ToolCalls, call)
			}
		}
	} else if len(in.Message.ToolCalls) > 0 {
		resp.ToolCalls = append(resp.ToolCalls, in.Message.ToolCalls...)
	}
	return resp
}

func (e *Executor) normalizeStructured(providerName string, in types.StructuredResponse) *Response {
	return &Response{
		Structured:   in.Structured,
		FinishReason: string(in.FinishReason),
		Usage:        e.usage.ForProvider(providerName).Extract(in.Usage),
	}
}
