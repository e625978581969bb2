package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a backend failure
type Kind int

const (
	// KindOther is any non-success status or parse failure not covered below
	KindOther Kind = iota

	// KindNetwork is an I/O or transport failure, including timeouts
	KindNetwork

	// KindRateLimit is an HTTP 429 from the vendor
	KindRateLimit

	// KindInvalidKey is an HTTP 401 (or vendor equivalent) from the vendor
	KindInvalidKey

	// KindStream is malformed framing or an error payload embedded in a stream
	KindStream
)

// String returns the kind name used in logs
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidKey:
		return "invalid_key"
	case KindStream:
		return "stream"
	default:
		return "other"
	}
}

// Error is the error type returned by every Backend
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var prefix string
	switch e.Kind {
	case KindNetwork:
		prefix = "network error"
	case KindRateLimit:
		prefix = "rate limit exceeded"
	case KindInvalidKey:
		prefix = "invalid API key"
	case KindStream:
		prefix = "stream error"
	default:
		prefix = "API error"
	}

	detail := e.Message
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if detail == "" {
		return prefix
	}
	return prefix + ": " + detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the same request can succeed.
// Network, RateLimit and Stream failures are transient; InvalidKey and Other are not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindStream:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err carries a retryable backend error
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable()
	}
	return false
}

// KindOf returns the kind of the backend error in err's chain, or KindOther
func KindOf(err error) Kind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	return KindOther
}

// FromStatus maps a non-2xx HTTP status to an Error
func FromStatus(statusCode int, body string) *Error {
	body = strings.TrimSpace(body)

	switch statusCode {
	case http.StatusUnauthorized:
		return &Error{Kind: KindInvalidKey, StatusCode: statusCode, Message: body}
	case http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, StatusCode: statusCode, Message: body}
	default:
		if body == "" {
			body = fmt.Sprintf("status %d", statusCode)
		}
		return &Error{Kind: KindOther, StatusCode: statusCode, Message: body}
	}
}

// transportError classifies an error from the HTTP transport.
// Cancellation by the caller is passed through untouched so it is never retried.
func transportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return err
	}
	return &Error{Kind: KindNetwork, Err: err}
}
