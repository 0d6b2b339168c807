// Package ingesterr defines the error taxonomy surfaced to callers of
// every pkg/* component: a small set of sentinel kinds that let callers
// branch on what went wrong without parsing message text.
package ingesterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the categories every component
// must surface. Thumbnail failures are the one exception: pkg/media
// logs them as warnings and never returns them to its caller.
type Kind string

const (
	Validation          Kind = "validation"
	Unauthorized        Kind = "unauthorized"
	Forbidden           Kind = "forbidden"
	QuotaExceeded       Kind = "quota_exceeded"
	NameCollision       Kind = "name_collision"
	StoreUnavailable    Kind = "store_unavailable"
	EmbeddingUnavailable Kind = "embedding_unavailable"
	Timeout             Kind = "timeout"
	Cancelled           Kind = "cancelled"
	Internal            Kind = "internal"
)

// Error is the concrete error type every component returns.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	Err     error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind, retaining err for errors.Is/As chains.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithHint attaches a caller-facing hint and returns the receiver for chaining.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf extracts the Kind from err, defaulting to Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
