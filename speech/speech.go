// Package speech is a thin facade over the OpenAI audio APIs: text to
// speech synthesis and audio transcription, hooked into the shared
// pipeline runner.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/stratumhq/agentpipe/llm"
	"github.com/stratumhq/agentpipe/pipeline"
)

const (
	EventBeforeExecute = "speech.before_execute"
	EventAfterExecute  = "speech.after_execute"
)

const (
	defaultSpeechModel     = "tts-1"
	defaultVoice           = "alloy"
	defaultTranscribeModel = "whisper-1"
)

// Payload covers both directions: Text set means synthesis, Audio set
// means transcription.
type Payload struct {
	Text     string
	Audio    []byte
	FileName string
	Model    string
	Voice    string
}

type ResultPayload struct {
	Request Payload
	Audio   []byte
	Text    string
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

// Synthesize renders text to audio bytes.
func (s *Service) Synthesize(ctx context.Context, req Payload) (ResultPayload, error) {
	payload, err := s.before(ctx, req)
	if err != nil {
		return ResultPayload{}, err
	}
	if payload.Text == "" {
		return ResultPayload{}, fmt.Errorf("speech synthesis request has no text")
	}
	model := payload.Model
	if model == "" {
		model = defaultSpeechModel
	}
	voice := payload.Voice
	if voice == "" {
		voice = defaultVoice
	}

	raw, err := s.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model: goopenai.SpeechModel(model),
		Input: payload.Text,
		Voice: goopenai.SpeechVoice(voice),
	})
	if err != nil {
		return ResultPayload{}, translateErr(err)
	}
	defer raw.Close()

	audio, err := io.ReadAll(raw)
	if err != nil {
		return ResultPayload{}, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return s.after(ctx, &ResultPayload{Request: *payload, Audio: audio})
}

// Transcribe converts audio bytes to text.
func (s *Service) Transcribe(ctx context.Context, req Payload) (ResultPayload, error) {
	payload, err := s.before(ctx, req)
	if err != nil {
		return ResultPayload{}, err
	}
	if len(payload.Audio) == 0 {
		return ResultPayload{}, fmt.Errorf("transcription request has no audio")
	}
	model := payload.Model
	if model == "" {
		model = defaultTranscribeModel
	}
	fileName := payload.FileName
	if fileName == "" {
		fileName = "audio.mp3"
	}

	resp, err := s.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    model,
		Reader:   bytes.NewReader(payload.Audio),
		FilePath: fileName,
	})
	if err != nil {
		return ResultPayload{}, translateErr(err)
	}
	return s.after(ctx, &ResultPayload{Request: *payload, Text: resp.Text})
}

func (s *Service) before(ctx context.Context, req Payload) (*Payload, error) {
	out, err := s.pipelines.Run(ctx, EventBeforeExecute, &req, nil)
	if err != nil {
		return nil, err
	}
	payload, ok := out.(*Payload)
	if !ok {
		return nil, fmt.Errorf("%s handler returned %T, want *speech.Payload", EventBeforeExecute, out)
	}
	return payload, nil
}

func (s *Service) after(ctx context.Context, result *ResultPayload) (ResultPayload, error) {
	out, err := s.pipelines.Run(ctx, EventAfterExecute, result, nil)
	if err != nil {
		return ResultPayload{}, err
	}
	if replaced, ok := out.(*ResultPayload); ok {
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
