// Package embeddings is a thin facade over the OpenAI embeddings API.
// Calls run through the shared pipeline runner so handlers can rewrite
// inputs or inspect results the same way agent executions are hooked.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/pipeline"
)

const (
	EventBeforeExecute = "embeddings.before_execute"
	EventAfterExecute  = "embeddings.after_execute"
)

const defaultModel = "text-embedding-3-small"

// Payload flows through the before pipeline; handlers may replace it.
type Payload struct {
	Input []string
	Model string
}

// ResultPayload flows through the after pipeline.
type ResultPayload struct {
	Request Payload
	Vectors [][]float32
	Usage   any
}

type Service struct {
	client    *goopenai.Client
	pipelines *pipeline.Runner
}

func NewService(client *goopenai.Client, pipelines *pipeline.Runner) *Service {
	if pipelines == nil {
		pipelines = pipeline.NewRunner(nil)
	}
	return &Service{client: client, pipelines: pipelines}
}

func (s *Service) Embed(ctx context.Context, req Payload) (ResultPayload, error) {
	out, err := s.pipelines.Run(ctx, EventBeforeExecute, &req, nil)
	if err != nil {
		return ResultPayload{}, err
	}
	payload, ok := out.(*Payload)
	if !ok {
		return ResultPayload{}, fmt.Errorf("%s handler returned %T, want *embeddings.Payload", EventBeforeExecute, out)
	}
	if len(payload.Input) == 0 {
		return ResultPayload{}, fmt.Errorf("embeddings request has no input")
	}
	model := payload.Model
	if model == "" {
		model = defaultModel
	}

	resp, err := s.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: payload.Input,
		Model: goopenai.EmbeddingModel(model),
	})
	if err != nil {
		return ResultPayload{}, translateErr(err)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	result := &ResultPayload{
		Request: *payload,
		Vectors: vectors,
		Usage: map[string]any{
			"prompt_tokens": resp.Usage.PromptTokens,
			"total_tokens":  resp.Usage.TotalTokens,
		},
	}

	after, err := s.pipelines.Run(ctx, EventAfterExecute, result, nil)
	if err != nil {
		return ResultPayload{}, err
	}
	if replaced, ok := after.(*ResultPayload); ok {
		result = replaced
	}
	return *result, nil
}

func translateErr(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = err.Error()
		}
		return llm.TranslateStatus("openai", apiErr.HTTPStatusCode, message)
	}
	return err
}
