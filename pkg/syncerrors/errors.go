// Package syncerrors defines the error taxonomy shared by every store in the
// sync layer. Callers branch on Kind instead of parsing message strings.
package syncerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a sync-layer failure.
type Kind string

const (
	// KindValidation marks malformed or missing input, detected before any
	// remote call. Never retried.
	KindValidation Kind = "validation"
	// KindPermission marks a local gate rejection or an adapter-reported
	// authorization failure. Never retried.
	KindPermission Kind = "permission_denied"
	// KindNotFound marks a target id absent at update/delete time.
	KindNotFound Kind = "not_found"
	// KindTransport marks any other adapter failure (connectivity, server
	// error). Idempotent operations may be retried by the caller.
	KindTransport Kind = "transport"
)

// Error carries a Kind plus a human-readable message and an optional cause.
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

// New builds an Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports invalid input.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

// PermissionDenied reports a gate or adapter authorization rejection.
func PermissionDenied(format string, args ...any) *Error {
	return New(KindPermission, format, args...)
}

// NotFound reports an absent target id.
func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

// Transport wraps an adapter failure.
func Transport(err error, format string, args ...any) *Error {
	return Wrap(KindTransport, err, format, args...)
}

// KindOf extracts the Kind from err. Anything that carries no kind,
// including nil, maps to KindTransport; callers check for nil first.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransport
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}
