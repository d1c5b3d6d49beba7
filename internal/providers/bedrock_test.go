package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/smithy-go"
)

func TestIsRetryableBedrockErrorNil(t *testing.T) {
	if isRetryableBedrockError(nil) {
		t.Fatal("nil error should not be retryable")
	}
}

func TestIsRetryableBedrockErrorByAPICode(t *testing.T) {
	cases := []struct {
		code      string
		retryable bool
	}{
		{"ThrottlingException", true},
		{"ServiceUnavailableException", true},
		{"ModelTimeoutException", true},
		{"ValidationException", false},
		{"AccessDeniedException", false},
	}
	for _, c := range cases {
		err := &smithy.GenericAPIError{Code: c.code, Message: "boom"}
		if got := isRetryableBedrockError(err); got != c.retryable {
			t.Errorf("isRetryableBedrockError(code=%s) = %v, want %v", c.code, got, c.retryable)
		}
	}
}

func TestIsRetryableBedrockErrorFallsBackOnTransportError(t *testing.T) {
	if !isRetryableBedrockError(context.DeadlineExceeded) {
		t.Error("a deadline exceeded error should be retryable")
	}
	if isRetryableBedrockError(errors.New("some other transport failure")) {
		t.Error("an unrecognized, non-API error should not be retryable")
	}
}
