// Package guardrail validates and sanitizes text crossing the model
// boundary. Checks run over user input before dispatch and over model
// output before it reaches the caller; a check can block the call,
// redact the text, or record a warning.
package guardrail

import (
	"context"
	"fmt"
	"strings"
)

type Action string

const (
	ActionBlock  Action = "block"
	ActionWarn   Action = "warn"
	ActionRedact Action = "redact"
)

// Result is the outcome of one check.
type Result struct {
	Triggered    bool   `json:"triggered"`
	Action       Action `json:"action,omitempty"`
	Name         string `json:"name"`
	Message      string `json:"message,omitempty"`
	RedactedText string `json:"redactedText,omitempty"`
}

// Check inspects one piece of text. Direction does not matter to the
// check itself; chains decide where a check runs.
type Check interface {
	Name() string
	Check(ctx context.Context, text string) (Result, error)
}

// BlockedError is returned when a check blocks the call.
type BlockedError struct {
	CheckName string
	Message   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("guardrail %q blocked: %s", e.CheckName, e.Message)
}

// Chain runs checks in order. Redactions feed the sanitized text into
// later checks; the first block wins.
type Chain struct {
	checks []Check
}

func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks}
}

func (c *Chain) Add(check Check) *Chain {
	c.checks = append(c.checks, check)
	return c
}

func (c *Chain) Checks() []Check { return c.checks }

// Apply runs the chain over text, returning the possibly redacted text
// and the triggered results. A block surfaces as BlockedError.
func (c *Chain) Apply(ctx context.Context, text string) (string, []Result, error) {
	var triggered []Result
	for _, check := range c.checks {
		res, err := check.Check(ctx, text)
		if err != nil {
			return "", nil, fmt.Errorf("guardrail %q failed: %w", check.Name(), err)
		}
		if !res.Triggered {
			continue
		}
		triggered = append(triggered, res)
		switch res.Action {
		case ActionBlock:
			return "", triggered, &BlockedError{CheckName: res.Name, Message: res.Message}
		case ActionRedact:
			if res.RedactedText != "" {
				text = res.RedactedText
			}
		}
	}
	return text, triggered, nil
}

func BlockResult(name, message string) Result {
	return Result{Triggered: true, Action: ActionBlock, Name: name, Message: message}
}

func WarnResult(name, message string) Result {
	return Result{Triggered: true, Action: ActionWarn, Name: name, Message: message}
}

func RedactResult(name, message, redactedText string) Result {
	return Result{Triggered: true, Action: ActionRedact, Name: name, Message: message, RedactedText: redactedText}
}

func PassResult(name string) Result {
	return Result{Triggered: false, Name: name}
}

// Summary renders triggered results for logs.
func Summary(results []Result) string {
	if len(results) == 0 {
		return "all guardrails passed"
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Triggered {
			parts = append(parts, fmt.Sprintf("[%s] %s: %s", r.Action, r.Name, r.Message))
		}
	}
	return strings.Join(parts, "; ")
}
