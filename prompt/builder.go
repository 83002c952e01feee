// Package prompt builds system prompts from agent templates. Template
// placeholders use single-brace identifiers ({name}); interpolation is
// deliberately partial — unmatched placeholders are left verbatim so a
// template can mix resolved variables with literal braces.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/stratumhq/agentpipe/pipeline"
)

// Pipeline events fired around each prompt build.
const (
	EventBeforeBuild = "agent.system_prompt.before_build"
	EventAfterBuild  = "agent.system_prompt.after_build"
)

// Agent is the slice of the agent contract the builder needs.
type Agent interface {
	Key() string
	SystemPrompt() string
}

// Source supplies per-call variables, typically the execution context.
type Source interface {
	Variables() map[string]any
}

// BeforeBuildPayload travels through EventBeforeBuild. Handlers may
// rewrite Variables to inject or remove values before interpolation.
type BeforeBuildPayload struct {
	Agent     Agent
	Source    Source
	Variables map[string]any
}

// AfterBuildPayload travels through EventAfterBuild. Handlers may
// rewrite Prompt.
type AfterBuildPayload struct {
	Agent  Agent
	Source Source
	Prompt string
}

// Builder interpolates an agent's template with merged variables and
// appends static sections. Base variables and sections are fixed at
// construction; per-call state arrives only through the Source, so a
// single Builder is safe for concurrent calls.
type Builder struct {
	pipelines *pipeline.Runner
	baseVars  map[string]any
	sections  []string
}

type Option func(*Builder)

// WithBaseVariables sets variables available to every build. Per-call
// variables win on key collision.
func WithBaseVariables(vars map[string]any) Option {
	return func(b *Builder) {
		for k, v := range vars {
			b.baseVars[k] = v
		}
	}
}

// WithSection appends a static paragraph to every built prompt, in
// registration order.
func WithSection(text string) Option {
	return func(b *Builder) {
		if text = strings.TrimSpace(text); text != "" {
			b.sections = append(b.sections, text)
		}
	}
}

func NewBuilder(pipelines *pipeline.Runner, opts ...Option) *Builder {
	b := &Builder{pipelines: pipelines, baseVars: map[string]any{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the agent's system prompt for one call.
func (b *Builder) Build(ctx context.Context, ag Agent, src Source) (string, error) {
	merged := make(map[string]any, len(b.baseVars))
	for k, v := range b.baseVars {
		merged[k] = v
	}
	if src != nil {
		for k, v := range src.Variables() {
			merged[k] = v
		}
	}

	out, err := b.pipelines.RunIfActive(ctx, EventBeforeBuild, &BeforeBuildPayload{Agent: ag, Source: src, Variables: merged}, nil)
	if err != nil {
		return "", err
	}
	before, ok := out.(*BeforeBuildPayload)
	if !ok {
		return "", fmt.Errorf("pipeline %q returned %T, expected *prompt.BeforeBuildPayload", EventBeforeBuild, out)
	}

	built := Interpolate(ag.SystemPrompt(), before.Variables)
	for _, section := range b.sections {
		if built == "" {
			built = section
			continue
		}
		built += "\n\n" + section
	}

	out, err = b.pipelines.RunIfActive(ctx, EventAfterBuild, &AfterBuildPayload{Agent: ag, Source: src, Prompt: built}, nil)
	if err != nil {
		return "", err
	}
	after, ok := out.(*AfterBuildPayload)
	if !ok {
		return "", fmt.Errorf("pipeline %q returned %T, expected *prompt.AfterBuildPayload", EventAfterBuild, out)
	}
	return after.Prompt, nil
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces {identifier} placeholders with stringified
// variable values, leaving unmatched placeholders verbatim.
func Interpolate(template string, vars map[string]any) string {
	if template == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := vars[key]
		if !ok {
			return match
		}
		return Stringify(value)
	})
}

// Stringify renders a variable value for prompt text: strings pass
// through, booleans become true/false, nil becomes empty, and composite
// values are JSON-encoded.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		switch reflect.ValueOf(value).Kind() {
		case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
			if encoded, err := json.Marshal(value); err == nil {
				return string(encoded)
			}
		}
		return fmt.Sprint(v)
	}
}
