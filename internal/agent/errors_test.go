package agent

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_Retryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindToolTimeout, true},
		{KindLLMRateLimit, true},
		{KindIOError, true},
		{KindBadArguments, false},
		{KindNotFound, false},
		{KindToolFailed, false},
		{KindLLMError, false},
		{KindCancelled, false},
		{KindConfigError, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Retryable(); got != tt.want {
			t.Errorf("Kind(%s).Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  &Error{Kind: KindNotFound, Message: "tool not found: foo"},
			want: "not_found: tool not found: foo",
		},
		{
			name: "cause only",
			err:  &Error{Kind: KindIOError, Cause: errors.New("disk full")},
			want: "io_error: disk full",
		},
		{
			name: "message and cause",
			err:  &Error{Kind: KindBadArguments, Message: "invalid json", Cause: errors.New("unexpected EOF")},
			want: "bad_arguments: invalid json: unexpected EOF",
		},
		{
			name: "kind only",
			err:  &Error{Kind: KindCancelled},
			want: "cancelled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Kind: KindToolFailed, Message: "boom", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find the wrapped cause")
	}
	if got := errors.Unwrap(err); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestAsError(t *testing.T) {
	original := &Error{Kind: KindToolTimeout, Message: "timed out"}
	wrapped := fmt.Errorf("executing tool: %w", original)

	got, ok := AsError(wrapped)
	if !ok {
		t.Fatal("AsError() did not find the wrapped *Error")
	}
	if got.Kind != KindToolTimeout {
		t.Errorf("Kind = %s, want %s", got.Kind, KindToolTimeout)
	}

	if _, ok := AsError(errors.New("plain error")); ok {
		t.Error("AsError() should return false for a non-Error")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(&Error{Kind: KindLLMRateLimit}); got != KindLLMRateLimit {
		t.Errorf("KindOf() = %s, want %s", got, KindLLMRateLimit)
	}
	if got := KindOf(errors.New("plain error")); got != "" {
		t.Errorf("KindOf() = %q, want empty", got)
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrapping: %w", &Error{Kind: KindConfigError, Message: "missing key"})
	if !Is(err, KindConfigError) {
		t.Error("Is() should match the wrapped Kind")
	}
	if Is(err, KindNotFound) {
		t.Error("Is() should not match a different Kind")
	}
	if Is(errors.New("plain"), KindConfigError) {
		t.Error("Is() should be false for a non-Error")
	}
}

func TestSentinelErrors(t *testing.T) {
	if KindOf(ErrNoProvider) != KindConfigError {
		t.Errorf("ErrNoProvider kind = %s, want %s", KindOf(ErrNoProvider), KindConfigError)
	}
}
