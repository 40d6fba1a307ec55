// Package apperrors defines the error taxonomy shared by the store, the
// access resolver and the HTTP layer. Every denial or failure carries a
// specific kind so callers can distinguish "not logged in" from "logged in
// but not permitted" from "does not exist".
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error is a kinded error. Message is safe to surface to API clients;
// Err carries the underlying cause for logs.
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

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Unauthenticated means no valid principal was presented.
func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }

// Forbidden means the principal is authenticated but the operation is denied.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// NotFound means the target id is unresolvable.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict means a uniqueness or protected-entity invariant was violated.
func Conflict(message string) *Error { return New(KindConflict, message) }

// Validation means the input was malformed.
func Validation(message string) *Error { return New(KindValidation, message) }

// Storagef means a blob-store operation failed, leaving metadata intact.
func Storagef(format string, args ...interface{}) *Error {
	return New(KindStorage, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// MessageOf returns the client-safe message of err, or a generic fallback.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error kind to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
