package guardrail

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLength blocks text exceeding a rune limit.
type MaxLength struct {
	Limit  int
	Action Action // defaults to ActionBlock
}

func (g *MaxLength) Name() string { return "max_length" }

func (g *MaxLength) Check(_ context.Context, text string) (Result, error) {
	if utf8.RuneCountInString(text) <= g.Limit {
		return PassResult(g.Name()), nil
	}
	action := g.Action
	if action == "" {
		action = ActionBlock
	}
	return Result{
		Triggered: true,
		Action:    action,
		Name:      g.Name(),
		Message:   "text exceeds maximum length",
	}, nil
}

// PromptInjection blocks common prompt injection phrasings.
type PromptInjection struct{}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`),
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?above\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?previous`),
	regexp.MustCompile(`(?i)forget\s+(all\s+)?(your\s+)?instructions`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)system\s*:\s*you\s+are`),
	regexp.MustCompile(`(?i)override\s+(all\s+)?safety`),
	regexp.MustCompile(`(?i)bypass\s+(all\s+)?restrictions`),
	regexp.MustCompile(`(?i)do\s+not\s+follow\s+(any\s+)?(safety|ethical|content)\s+(guidelines|rules|policies)`),
	regexp.MustCompile(`(?i)jailbreak`),
}

func (*PromptInjection) Name() string { return "prompt_injection" }

func (*PromptInjection) Check(_ context.Context, text string) (Result, error) {
	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return BlockResult("prompt_injection", "potential prompt injection detected"), nil
		}
	}
	return PassResult("prompt_injection"), nil
}

// PIIRedactor detects and redacts personally identifiable information.
type PIIRedactor struct {
	Action Action // defaults to ActionRedact
}

var piiPatterns = []struct {
	name    string
	pattern *regexp.Regexp
	replace string
}{
	{"SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN_REDACTED]"},
	{"credit card", regexp.MustCompile(`\b(?:\d{4}[\s\-]?){3}\d{4}\b`), "[CC_REDACTED]"},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), "[EMAIL_REDACTED]"},
	{"phone", regexp.MustCompile(`\b(?:\+?1[\s\-]?)?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{4}\b`), "[PHONE_REDACTED]"},
	{"IP address", regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP_REDACTED]"},
}

func (g *PIIRedactor) Name() string { return "pii_redactor" }

func (g *PIIRedactor) Check(_ context.Context, text string) (Result, error) {
	redacted := text
	detected := false
	for _, p := range piiPatterns {
		if p.pattern.MatchString(redacted) {
			detected = true
			redacted = p.pattern.ReplaceAllString(redacted, p.replace)
		}
	}
	if !detected {
		return PassResult(g.Name()), nil
	}
	action := g.Action
	if action == "" {
		action = ActionRedact
	}
	return Result{
		Triggered:    true,
		Action:       action,
		Name:         g.Name(),
		Message:      "PII detected and redacted",
		RedactedText: redacted,
	}, nil
}

// TopicFilter blocks text mentioning disallowed topics.
type TopicFilter struct {
	BlockedTopics []string
	Action        Action // defaults to ActionBlock
}

func (g *TopicFilter) Name() string { return "topic_filter" }

func (g *TopicFilter) Check(_ context.Context, text string) (Result, error) {
	lower := strings.ToLower(text)
	for _, topic := range g.BlockedTopics {
		if strings.Contains(lower, strings.ToLower(topic)) {
			action := g.Action
			if action == "" {
				action = ActionBlock
			}
			return Result{
				Triggered: true,
				Action:    action,
				Name:      g.Name(),
				Message:   "blocked topic detected: " + topic,
			}, nil
		}
	}
	return PassResult(g.Name()), nil
}

// SecretRedactor detects and redacts credentials and tokens.
type SecretRedactor struct {
	Patterns []SecretPattern // defaults to the builtin set
	Action   Action          // defaults to ActionRedact
}

type SecretPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

var defaultSecretPatterns = []SecretPattern{
	{"AWS Key", regexp.MustCompile(`(?i)(AKIA|ABIA|ACCA|ASIA)[0-9A-Z]{16}`)},
	{"GitHub Token", regexp.MustCompile(`(ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9_]{36,255}`)},
	{"Private Key", regexp.MustCompile(`-----BEGIN\s+(RSA|DSA|EC|OPENSSH|PGP|ENCRYPTED)?\s*PRIVATE KEY-----`)},
	{"JWT", regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`)},
	{"Password", regexp.MustCompile(`(?i)(password|passwd|pwd|pass)[\s]*[=:]\s*["']?([^\s"',;}{)]{3,})["']?`)},
	{"Connection String", regexp.MustCompile(`(?i)(mongodb(\+srv)?|postgres(ql)?|mysql|redis|amqp):\/\/[^:/?#\s]+:[^@/?#\s]+@`)},
	{"Bearer Token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`)},
	{"Generic Secret", regexp.MustCompile(`(?i)(secret|token|auth[_\-]?token|api[_\-]?key)[\s]*[=:]\s*["']?([A-Za-z0-9\-_]{16,})["']?`)},
}

func (g *SecretRedactor) Name() string { return "secret_redactor" }

func (g *SecretRedactor) patterns() []SecretPattern {
	if len(g.Patterns) > 0 {
		return g.Patterns
	}
	return defaultSecretPatterns
}

func (g *SecretRedactor) Check(_ context.Context, text string) (Result, error) {
	redacted := text
	detected := false
	for _, sp := range g.patterns() {
		if sp.Pattern.MatchString(redacted) {
			detected = true
			redacted = sp.Pattern.ReplaceAllString(redacted, "[SECRET_REDACTED]")
		}
	}
	if !detected {
		return PassResult(g.Name()), nil
	}
	action := g.Action
	if action == "" {
		action = ActionRedact
	}
	return Result{
		Triggered:    true,
		Action:       action,
		Name:         g.Name(),
		Message:      "secrets detected and redacted",
		RedactedText: redacted,
	}, nil
}
