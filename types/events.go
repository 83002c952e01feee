package types

// StreamEventType classifies a single event in a streamed response.
type StreamEventType string

const (
	StreamText     StreamEventType = "text"
	StreamToolCall StreamEventType = "tool_call"
	StreamFinish   StreamEventType = "finish"
)

// StreamEvent is one element of the lazy, pull-based sequence a
// streaming call yields. Consumers own pacing and cancellation:
// abandoning iteration is the only way to stop a stream early.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Text         string          `json:"text,omitempty"`
	ToolCall     *ToolCall       `json:"toolCall,omitempty"`
	FinishReason FinishReason    `json:"finishReason,omitempty"`
	Usage        any             `json:"usage,omitempty"`
}
