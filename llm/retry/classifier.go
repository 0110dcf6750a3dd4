package retry

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"google.golang.org/genai"

	"github.com/BaSui01/mediaflow/types"
)

// Class 错误分类结果
type Class int

const (
	// Fatal errors are returned to the caller on first occurrence.
	Fatal Class = iota
	// Retryable errors carry an overload or rate-limit signal.
	Retryable
)

func (c Class) String() string {
	if c == Retryable {
		return "retryable"
	}
	return "fatal"
}

// overloadPattern matches the textual overload/rate-limit signals emitted by
// the generative service and its gateways.
var overloadPattern = regexp.MustCompile(`(?i)(overload|rate[ _-]?limit|resource[ _]?exhausted|too many requests|unavailable|\b429\b|\b503\b)`)

// Classify decides whether err is worth retrying. It has no side effects.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Fatal
	}

	if status, ok := statusOf(err); ok {
		if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
			return Retryable
		}
	}

	if e, ok := types.AsError(err); ok {
		switch e.Code {
		case types.ErrRateLimit, types.ErrRateLimited, types.ErrModelOverloaded, types.ErrServiceUnavailable:
			return Retryable
		case types.ErrConversion, types.ErrInvalidRequest:
			return Fatal
		}
	}

	if overloadPattern.MatchString(err.Error()) {
		return Retryable
	}
	return Fatal
}

// statusOf extracts an HTTP-like status code from the error chain.
func statusOf(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	if e, ok := types.AsError(err); ok && e.HTTPStatus != 0 {
		return e.HTTPStatus, true
	}
	return 0, false
}
