package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("openai")

	if GetErrorCode(err) != ErrUpstreamError {
		t.Fatalf("expected code %s, got %s", ErrUpstreamError, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestIsErrorCode_WalksCauses(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrRateLimit, "quota")
	outer := NewError(ErrAggregateFailure, "all branches failed").WithCause(inner)

	if !IsErrorCode(outer, ErrRateLimit) {
		t.Fatalf("expected nested RATE_LIMIT to be found")
	}
	if IsErrorCode(outer, ErrTimeout) {
		t.Fatalf("did not expect TIMEOUT")
	}
	if GetErrorCode(outer) != ErrAggregateFailure {
		t.Fatalf("GetErrorCode should return the outermost code")
	}
	if IsErrorCode(errors.New("plain"), ErrRateLimit) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestNewUpstreamError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		code      ErrorCode
		retryable bool
	}{
		{429, ErrRateLimit, true},
		{503, ErrServiceUnavailable, true},
		{500, ErrUpstreamError, false},
		{401, ErrUnauthorized, false},
		{404, ErrModelNotFound, false},
		{400, ErrInvalidRequest, false},
	}
	for _, c := range cases {
		err := NewUpstreamError("runway", c.status, "{}")
		if err.Code != c.code || err.Retryable != c.retryable || err.HTTPStatus != c.status {
			t.Fatalf("status %d: got code=%s retryable=%v http=%d", c.status, err.Code, err.Retryable, err.HTTPStatus)
		}
		if err.Provider != "runway" {
			t.Fatalf("provider not recorded")
		}
	}
}
