package llm

import (
	"context"
	"errors"
	"iter"

	"github.com/stratumhq/agentpipe/types"
)

var ErrNotSupported = errors.New("operation not supported by provider")

type Capabilities struct {
	Tools            bool
	Streaming        bool
	StructuredOutput bool
}

// Stream is a lazy, single-pass sequence of stream events. Partial
// consumption is legal; nothing beyond what has been pulled is
// buffered by this layer.
type Stream = iter.Seq2[types.StreamEvent, error]

// Provider is the transport contract. Generate performs one model
// round-trip: it may return tool calls but does not run the tool loop
// itself (see GenerateWithTools).
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Generate(ctx context.Context, req types.Request) (types.Response, error)
	GenerateStructured(ctx context.Context, req types.Request) (types.StructuredResponse, error)
	Stream(ctx context.Context, req types.Request) (Stream, error)
}
