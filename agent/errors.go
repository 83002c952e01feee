package agent

import (
	"errors"
	"fmt"

	"github.com/stratumhq/agentpipe/llm"
)

// ConfigError marks a programming or configuration mistake detected
// during request building. It is never retried and never reaches the
// transport layer.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned on a registry miss.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent %q is not registered", e.Key)
}

// DuplicateError is returned when a key is registered twice without
// override.
type DuplicateError struct {
	Key string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("agent %q is already registered (pass override to replace)", e.Key)
}

// InvalidDefinitionError is returned when a resolved value does not
// satisfy the agent contract.
type InvalidDefinitionError struct {
	Ref string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("resolved value for %q does not implement agent.Agent", e.Ref)
}

// ResolutionError wraps a failure to turn an agent reference into a
// usable instance. The original cause is chained.
type ResolutionError struct {
	Ref   string
	Cause error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve agent %q: %v", e.Ref, e.Cause)
}

func (e *ResolutionError) Unwrap() error { return e.Cause }

// ExecutionFailedError wraps an unclassified runtime failure during
// execution, carrying the agent key and chaining the original error.
type ExecutionFailedError struct {
	AgentKey string
	Message  string
	Cause    error
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("agent %q execution failed: %s", e.AgentKey, e.Message)
}

func (e *ExecutionFailedError) Unwrap() error { return e.Cause }

// isDomainError reports whether err already belongs to the caller-facing
// taxonomy and must propagate unchanged rather than be re-wrapped.
func isDomainError(err error) bool {
	var (
		configErr     *ConfigError
		notFound      *NotFoundError
		duplicate     *DuplicateError
		invalidDef    *InvalidDefinitionError
		resolution    *ResolutionError
		execFailed    *ExecutionFailedError
		rateLimited   *llm.RateLimitedError
		overloaded    *llm.OverloadedError
		tooLarge      *llm.RequestTooLargeError
		decodeFailure *llm.DecodeError
	)
	return errors.As(err, &configErr) ||
		errors.As(err, &notFound) ||
		errors.As(err, &duplicate) ||
		errors.As(err, &invalidDef) ||
		errors.As(err, &resolution) ||
		errors.As(err, &execFailed) ||
		errors.As(err, &rateLimited) ||
		errors.As(err, &overloaded) ||
		errors.As(err, &tooLarge) ||
		errors.As(err, &decodeFailure)
}
