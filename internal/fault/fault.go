// Package fault defines the tagged error kinds that cross the service
// boundary. Handlers map kinds to HTTP status codes; services return them
// instead of transport errors.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a service-level failure.
type Kind int

const (
	// KindUnknown is an unclassified internal failure.
	KindUnknown Kind = iota
	// KindNotFound: token/challenge/request absent or malformed.
	KindNotFound
	// KindForbidden: authorization failure.
	KindForbidden
	// KindExpired: time-based lapse (OTP, verified session).
	KindExpired
	// KindLocked: attempt budget exhausted or cooldown active.
	KindLocked
	// KindConflict: terminal-state violation (request already closed).
	KindConflict
	// KindNoOp: semantically empty update; not an error to the caller.
	KindNoOp
	// KindUnavailable: downstream persistence/notification failure.
	KindUnavailable
)

// String returns the kind name for logs and audit metadata.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindExpired:
		return "expired"
	case KindLocked:
		return "locked"
	case KindConflict:
		return "conflict"
	case KindNoOp:
		return "no_op"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error carries a Kind, a caller-safe message, and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind with a caller-safe message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, or KindUnknown if err is nil or untagged.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message of err, or a generic fallback.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Msg
	}
	return "internal error"
}
