package agent

import (
	"errors"
	"fmt"
)

// Kind categorizes an Error for clients deciding how to react (retry,
// surface to the user, log and move on) without parsing Message strings.
type Kind string

const (
	KindBadArguments Kind = "bad_arguments"
	KindNotFound     Kind = "not_found"
	KindToolTimeout  Kind = "tool_timeout"
	KindToolFailed   Kind = "tool_failed"
	KindLLMError     Kind = "llm_error"
	KindLLMRateLimit Kind = "llm_rate_limit"
	KindCancelled    Kind = "cancelled"
	KindIOError      Kind = "io_error"
	KindConfigError  Kind = "config_error"
)

// Retryable reports whether a failed operation of this Kind is worth
// attempting again without operator intervention.
func (k Kind) Retryable() bool {
	switch k {
	case KindToolTimeout, KindLLMRateLimit, KindIOError:
		return true
	default:
		return false
	}
}

// Error is the single structured error type the agent runtime returns.
// A malformed tool call, a provider outage, a disconnect mid-query: all of
// it comes back wrapped as one of these, so the SSE layer can turn Kind
// into a done event's error field and the loop can decide whether to retry.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// AsError extracts an *Error from err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is, or wraps, an *Error, and ""
// otherwise.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := AsError(err)
	return ok && e.Kind == kind
}

// ErrNoProvider is the sentinel error for loop control flow that doesn't
// carry tool- or provider-specific context of its own. Reaching the
// reasoning-iteration cap is not an error condition — the loop forces an
// answer from whatever context it has gathered — so there is no matching
// sentinel for it.
var ErrNoProvider = &Error{Kind: KindConfigError, Message: "no LLM provider configured"}
