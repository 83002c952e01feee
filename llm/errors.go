package llm

import (
	"fmt"
	"net/http"
)

// Transport failures are translated into this small taxonomy so
// callers can branch on stable types regardless of which provider
// raised them. Status codes and provider metadata are preserved.

type RateLimitedError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider %q rate limited (%d): %s", e.Provider, e.StatusCode, e.Message)
}

type OverloadedError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *OverloadedError) Error() string {
	return fmt.Sprintf("provider %q overloaded (%d): %s", e.Provider, e.StatusCode, e.Message)
}

type RequestTooLargeError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *RequestTooLargeError) Error() string {
	return fmt.Sprintf("provider %q rejected oversized request (%d): %s", e.Provider, e.StatusCode, e.Message)
}

type DecodeError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("provider %q response could not be decoded: %s", e.Provider, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// TranslateStatus maps a provider HTTP status to a domain error, or
// returns a generic error for statuses outside the taxonomy.
func TranslateStatus(provider string, status int, message string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &RateLimitedError{Provider: provider, StatusCode: status, Message: message}
	case status == http.StatusServiceUnavailable || status == 529:
		return &OverloadedError{Provider: provider, StatusCode: status, Message: message}
	case status == http.StatusRequestEntityTooLarge:
		return &RequestTooLargeError{Provider: provider, StatusCode: status, Message: message}
	default:
		return fmt.Errorf("provider %q API error (%d): %s", provider, status, message)
	}
}
