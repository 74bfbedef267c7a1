package web

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the response envelope. The set mirrors the
// portal-wide taxonomy: auth failures keep their HTTP status, everything else
// is reported through the envelope body.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindRateLimited       Kind = "rate_limited"
	KindConflict          Kind = "conflict"
	KindNoOp              Kind = "no_op"
	KindInternal          Kind = "internal"
)

// Error is a classified failure with a user-facing message. The wrapped cause
// never reaches the client; it is for server-side logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error with a user-facing message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef builds a classified error with a formatted user-facing message.
func Ef(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, keeping it for server-side logging.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Internal wraps an unexpected error. The client only ever sees the generic
// message.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "an internal error occurred", Err: err}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf extracts the user-facing message from err. Unclassified errors
// map to a generic message so database details never leak to clients.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "an internal error occurred"
		}
		return e.Message
	}
	return "an internal error occurred"
}
