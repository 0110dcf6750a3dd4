package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Upstream service error codes
const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrForbidden           ErrorCode = "FORBIDDEN"
	ErrRateLimit           ErrorCode = "RATE_LIMIT"
	ErrRateLimited         ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded       ErrorCode = "QUOTA_EXCEEDED"
	ErrModelNotFound       ErrorCode = "MODEL_NOT_FOUND"
	ErrContentFiltered     ErrorCode = "CONTENT_FILTERED"
	ErrModelOverloaded     ErrorCode = "MODEL_OVERLOADED"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrTimeout             ErrorCode = "TIMEOUT"
	ErrUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError       ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrUnsupported         ErrorCode = "UNSUPPORTED"
)

// Generation pipeline error codes
const (
	ErrConversion        ErrorCode = "CONVERSION_FAILED"
	ErrOperationFailed   ErrorCode = "OPERATION_FAILED"
	ErrAggregateFailure  ErrorCode = "AGGREGATE_FAILURE"
	ErrFallbackFailed    ErrorCode = "FALLBACK_FAILED"
	ErrGenerationFailed  ErrorCode = "GENERATION_FAILED"
	ErrDuplicateInFlight ErrorCode = "DUPLICATE_IN_FLIGHT"
	ErrJobNotFound       ErrorCode = "JOB_NOT_FOUND"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError extracts the outermost *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is marked retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether any *Error in err's chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// NewInvalidRequestError 构造请求参数错误
func NewInvalidRequestError(format string, args ...any) *Error {
	return NewError(ErrInvalidRequest, fmt.Sprintf(format, args...)).WithHTTPStatus(400)
}

// NewConversionError wraps a media decode/encode failure.
func NewConversionError(message string, cause error) *Error {
	return NewError(ErrConversion, message).WithCause(cause)
}

// NewOperationError reports an asynchronous job that finished in a failed state.
func NewOperationError(operation, reason string) *Error {
	return NewError(ErrOperationFailed, fmt.Sprintf("operation %s failed: %s", operation, reason))
}

// NewUpstreamError maps a failed HTTP exchange with a provider to an *Error.
func NewUpstreamError(provider string, status int, body string) *Error {
	var code ErrorCode
	switch {
	case status == 429:
		code = ErrRateLimit
	case status == 503:
		code = ErrServiceUnavailable
	case status == 401:
		code = ErrUnauthorized
	case status == 403:
		code = ErrForbidden
	case status == 404:
		code = ErrModelNotFound
	case status >= 500:
		code = ErrUpstreamError
	default:
		code = ErrInvalidRequest
	}
	return NewError(code, fmt.Sprintf("%s error: status=%d body=%s", provider, status, body)).
		WithHTTPStatus(status).
		WithRetryable(status == 429 || status == 503).
		WithProvider(provider)
}
