package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeNetwork, "test error")
	if err.Code != CodeNetwork {
		t.Errorf("expected code %s, got %s", CodeNetwork, err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("expected message 'test error', got %s", err.Message)
	}
	if err.Err != nil {
		t.Errorf("expected nil wrapped error, got %v", err.Err)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("original error")
	err := Wrap(originalErr, CodeDocStore, "store operation failed")

	if err.Code != CodeDocStore {
		t.Errorf("expected code %s, got %s", CodeDocStore, err.Code)
	}
	if err.Message != "store operation failed" {
		t.Errorf("expected message 'store operation failed', got %s", err.Message)
	}
	if err.Err != originalErr {
		t.Errorf("expected wrapped error to be original error")
	}
}

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "error without wrapped error",
			err:      New(CodeConfig, "missing token"),
			expected: "[CONFIG_ERROR] missing token",
		},
		{
			name:     "error with wrapped error",
			err:      Wrap(errors.New("inner"), CodeNetwork, "fetch failed"),
			expected: "[NETWORK_ERROR] fetch failed: inner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NetworkError("outer", inner)

	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "network error", err: NetworkError("conn reset", errors.New("reset")), expected: true},
		{name: "timeout", err: New(CodeServiceTimeout, "timed out"), expected: true},
		{name: "rate limited", err: New(CodeRateLimited, "429"), expected: true},
		{name: "docstore connection", err: New(CodeDocStoreConnection, "lost"), expected: true},
		{name: "auth error", err: UpstreamAuthError("P1", "bad credentials"), expected: false},
		{name: "format error", err: UpstreamFormatError("bad json", nil), expected: false},
		{name: "plain error", err: errors.New("plain"), expected: false},
		{name: "wrapped app error", err: fmt.Errorf("outer: %w", NetworkError("inner", nil)), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(context.Canceled) {
		t.Error("context.Canceled should be treated as cancellation")
	}
	if !IsCancelled(Cancelled("job stopped")) {
		t.Error("CodeCancelled should be treated as cancellation")
	}
	if IsCancelled(errors.New("other")) {
		t.Error("plain errors are not cancellations")
	}
}

func TestGetErrorCode(t *testing.T) {
	if code := GetErrorCode(TMDBNotFound("nope")); code != CodeTMDBNotFound {
		t.Errorf("expected %s, got %s", CodeTMDBNotFound, code)
	}
	if code := GetErrorCode(errors.New("plain")); code != CodeUnknown {
		t.Errorf("expected %s, got %s", CodeUnknown, code)
	}
}

func TestWithContext(t *testing.T) {
	err := UpstreamAuthError("P1", "bad credentials")
	if err.Context["provider_id"] != "P1" {
		t.Errorf("expected provider_id context, got %v", err.Context)
	}
}
