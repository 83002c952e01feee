// Package moderation is a thin facade over the OpenAI moderation API,
// hooked into the shared pipeline runner.
package moderation

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/pipeline"
)

const (
	EventBeforeExecute = "moderation.before_execute"
	EventAfterExecute  = "moderation.after_execute"
)

type Payload struct {
	Input string
	Model string
}

type ResultPayload struct {
	Request Payload
	Flagged bool
	Scores  map[string]float64
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

func (s *Service) Check(ctx context.Context, req Payload) (ResultPayload, error) {
	out, err := s.pipelines.Run(ctx, EventBeforeExecute, &req, nil)
	if err != nil {
		return ResultPayload{}, err
	}
	payload, ok := out.(*Payload)
	if !ok {
		return ResultPayload{}, fmt.Errorf("%s handler returned %T, want *moderation.Payload", EventBeforeExecute, out)
	}
	if payload.Input == "" {
		return ResultPayload{}, fmt.Errorf("moderation request has no input")
	}

	modReq := goopenai.ModerationRequest{Input: payload.Input}
	if payload.Model != "" {
		modReq.Model = payload.Model
	}
	resp, err := s.client.Moderations(ctx, modReq)
	if err != nil {
		return ResultPayload{}, translateErr(err)
	}

	result := &ResultPayload{Request: *payload, Scores: map[string]float64{}}
	for _, r := range resp.Results {
		if r.Flagged {
			result.Flagged = true
		}
		mergeScores(result.Scores, r.CategoryScores)
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

// mergeScores keeps the highest score seen per category across results.
func mergeScores(into map[string]float64, scores goopenai.ResultCategoryScores) {
	add := func(name string, value float32) {
		v := float64(value)
		if v > into[name] {
			into[name] = v
		}
	}
	add("hate", scores.Hate)
	add("hate/threatening", scores.HateThreatening)
	add("harassment", scores.Harassment)
	add("harassment/threatening", scores.HarassmentThreatening)
	add("self-harm", scores.SelfHarm)
	add("self-harm/intent", scores.SelfHarmIntent)
	add("self-harm/instructions", scores.SelfHarmInstructions)
	add("sexual", scores.Sexual)
	add("sexual/minors", scores.SexualMinors)
	add("violence", scores.Violence)
	add("violence/graphic", scores.ViolenceGraphic)
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
