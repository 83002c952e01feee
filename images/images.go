// Package images is a thin facade over the OpenAI image generation
// API, hooked into the shared pipeline runner.
package images

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/pipeline"
)

const (
	EventBeforeExecute = "images.before_execute"
	EventAfterExecute  = "images.after_execute"
)

const defaultModel = "dall-e-3"

type Payload struct {
	Prompt string
	Model  string
	Size   string
	Count  int
}

// Image is one generated image, as a URL or inline base64 payload
// depending on what the API returned.
type Image struct {
	URL           string
	Base64        string
	RevisedPrompt string
}

type ResultPayload struct {
	Request Payload
	Images  []Image
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

func (s *Service) Generate(ctx context.Context, req Payload) (ResultPayload, error) {
	out, err := s.pipelines.Run(ctx, EventBeforeExecute, &req, nil)
	if err != nil {
		return ResultPayload{}, err
	}
	payload, ok := out.(*Payload)
	if !ok {
		return ResultPayload{}, fmt.Errorf("%s handler returned %T, want *images.Payload", EventBeforeExecute, out)
	}
	if payload.Prompt == "" {
		return ResultPayload{}, fmt.Errorf("image request has no prompt")
	}
	model := payload.Model
	if model == "" {
		model = defaultModel
	}
	count := payload.Count
	if count <= 0 {
		count = 1
	}

	resp, err := s.client.CreateImage(ctx, goopenai.ImageRequest{
		Prompt: payload.Prompt,
		Model:  model,
		Size:   payload.Size,
		N:      count,
	})
	if err != nil {
		return ResultPayload{}, translateErr(err)
	}

	images := make([]Image, 0, len(resp.Data))
	for _, d := range resp.Data {
		images = append(images, Image{
			URL:           d.URL,
			Base64:        d.B64JSON,
			RevisedPrompt: d.RevisedPrompt,
		})
	}
	result := &ResultPayload{Request: *payload, Images: images}

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
