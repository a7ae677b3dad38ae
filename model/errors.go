package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProviderError is the base error for failures surfaced by a model provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
	RetryAfter *time.Duration
	Cause      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, retryable=%v)", e.Provider, e.Message, e.StatusCode, e.Retryable)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Concrete provider error types.

// AuthenticationError indicates invalid or missing credentials. Fatal.
type AuthenticationError struct{ ProviderError }

// AccessDeniedError indicates the credentials lack permission. Fatal.
type AccessDeniedError struct{ ProviderError }

// InvalidRequestError indicates a malformed request. Fatal.
type InvalidRequestError struct{ ProviderError }

// NotFoundError indicates an unknown model or endpoint. Fatal.
type NotFoundError struct{ ProviderError }

// ContextLengthError indicates the request exceeded the model's window. Fatal.
type ContextLengthError struct{ ProviderError }

// RateLimitError indicates throttling. Retryable, honoring RetryAfter.
type RateLimitError struct{ ProviderError }

// ServerError indicates a transient provider-side failure. Retryable.
type ServerError struct{ ProviderError }

// TimeoutError indicates the provider did not answer in time. Retryable.
type TimeoutError struct{ ProviderError }

// NetworkError indicates the provider was unreachable. Retryable.
type NetworkError struct {
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ErrorFromStatusCode maps an HTTP status code to the appropriate typed error.
func ErrorFromStatusCode(provider string, statusCode int, code, message string, retryAfter *time.Duration) error {
	pe := ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		RetryAfter: retryAfter,
	}
	switch statusCode {
	case 400, 422:
		return &InvalidRequestError{pe}
	case 401:
		return &AuthenticationError{pe}
	case 403:
		return &AccessDeniedError{pe}
	case 404:
		return &NotFoundError{pe}
	case 408:
		pe.Retryable = true
		return &TimeoutError{pe}
	case 413:
		return &ContextLengthError{pe}
	case 429:
		pe.Retryable = true
		return &RateLimitError{pe}
	case 500, 502, 503, 504:
		pe.Retryable = true
		return &ServerError{pe}
	default:
		// Unknown statuses default to retryable.
		pe.Retryable = true
		return &pe
	}
}

// transientFragments are provider message substrings known to indicate
// transient conditions even when no typed error is available.
var transientFragments = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"overloaded",
	"server_error",
}

// IsRetryable classifies an error as safe to retry. User cancellation is
// never retryable: an aborted turn must stay aborted.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var (
		auth    *AuthenticationError
		denied  *AccessDeniedError
		invalid *InvalidRequestError
		missing *NotFoundError
		ctxLen  *ContextLengthError
		rate    *RateLimitError
		server  *ServerError
		timeout *TimeoutError
		network *NetworkError
	)
	switch {
	case errors.As(err, &auth), errors.As(err, &denied), errors.As(err, &invalid),
		errors.As(err, &missing), errors.As(err, &ctxLen):
		return false
	case errors.As(err, &rate), errors.As(err, &server), errors.As(err, &timeout),
		errors.As(err, &network):
		return true
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}

	// Fall back to message sniffing for untyped transport errors.
	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// RetryAfter extracts a provider-suggested delay, if the error carries one.
func RetryAfter(err error) (time.Duration, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter != nil {
		return *pe.RetryAfter, true
	}
	return 0, false
}
