package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the failure category of a source call. The aggregator uses
// it to tell an outage (network, timeout, server) from a source that simply
// had nothing for the symbol.
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit" // HTTP 429 or a provider quota note
	ErrorTypeServer      ErrorType = "server"
	ErrorTypeClient      ErrorType = "client" // 4xx other than 429
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeUnavailable ErrorType = "unavailable" // skipped: no API key or breaker open
	ErrorTypeUnknown     ErrorType = "unknown"
)

// retryable lists the categories Retry will try again.
var retryable = map[ErrorType]bool{
	ErrorTypeNetwork:   true,
	ErrorTypeRateLimit: true,
	ErrorTypeServer:    true,
	ErrorTypeTimeout:   true,
}

// FetchError is a classified source failure.
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func newError(t ErrorType, status int, msg string, cause error) *FetchError {
	return &FetchError{
		Type:       t,
		Retryable:  retryable[t],
		StatusCode: status,
		Message:    msg,
		Cause:      cause,
	}
}

func NewNetworkError(cause error) *FetchError {
	return newError(ErrorTypeNetwork, 0, "network request failed", cause)
}

func NewRateLimitError(statusCode int) *FetchError {
	return newError(ErrorTypeRateLimit, statusCode, "rate limit exceeded", nil)
}

func NewServerError(statusCode int) *FetchError {
	return newError(ErrorTypeServer, statusCode, "server returned an error", nil)
}

func NewClientError(statusCode int, message string) *FetchError {
	return newError(ErrorTypeClient, statusCode, message, nil)
}

// NewValidationError marks a response that arrived but could not be used.
func NewValidationError(message string) *FetchError {
	return newError(ErrorTypeValidation, 0, message, nil)
}

func NewTimeoutError(cause error) *FetchError {
	return newError(ErrorTypeTimeout, 0, "request timed out", cause)
}

// NewUnavailableError is recorded for a source that was never called.
func NewUnavailableError(source string) *FetchError {
	return newError(ErrorTypeUnavailable, 0, source+" is unavailable", nil)
}

// ClassifyHTTPError maps a non-2xx status onto the taxonomy.
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewRateLimitError(statusCode)
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		return NewClientError(statusCode, fmt.Sprintf("client error: HTTP %d", statusCode))
	default:
		return newError(ErrorTypeUnknown, statusCode, fmt.Sprintf("unexpected status code: %d", statusCode), nil)
	}
}

// ClassifyRequestError turns a transport-level error into a FetchError.
// Context cancellation is returned unchanged so callers can propagate it.
func ClassifyRequestError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return NewNetworkError(err)
}

// TypeOf returns the category of err, ErrorTypeUnknown for plain errors.
func TypeOf(err error) ErrorType {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Type
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTimeout
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// IsOutage reports whether err looks like the source being down rather
// than the source rejecting or lacking data.
func IsOutage(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer:
		return true
	}
	return false
}
