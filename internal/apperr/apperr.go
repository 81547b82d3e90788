// Package apperr defines the typed failures surfaced by the messaging core.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure independently of the operation that produced it.
type Kind string

const (
	// KindValidation marks malformed or missing input the caller can correct.
	KindValidation Kind = "validation_error"
	// KindNotFound marks an entity that is absent or not visible to the caller.
	KindNotFound Kind = "not_found"
	// KindForbidden marks a caller without rights over the entity.
	KindForbidden Kind = "forbidden"
	// KindExpiredWindow marks a time-boxed operation attempted too late.
	KindExpiredWindow Kind = "expired_window"
	// KindConflict marks an entity whose state precludes the operation.
	KindConflict Kind = "conflict"
	// KindInternal marks storage or dispatch failures not caused by the caller.
	KindInternal Kind = "internal_error"
)

// Error carries a kind, a stable machine code and a human readable message.
type Error struct {
	kind    Kind
	code    string
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the failure classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// Code returns the stable `<package>.<operation>.<reason>` code.
func (e *Error) Code() string {
	return e.code
}

// Message returns the user-facing description.
func (e *Error) Message() string {
	return e.message
}

func newError(kind Kind, code, message string, cause error) *Error {
	return &Error{kind: kind, code: code, message: message, cause: cause}
}

func Validation(code, message string) error {
	return newError(KindValidation, code, message, nil)
}

func NotFound(code, message string) error {
	return newError(KindNotFound, code, message, nil)
}

func Forbidden(code, message string) error {
	return newError(KindForbidden, code, message, nil)
}

func ExpiredWindow(code, message string) error {
	return newError(KindExpiredWindow, code, message, nil)
}

func Conflict(code, message string) error {
	return newError(KindConflict, code, message, nil)
}

// Internal wraps an unexpected cause; the cause is never shown to callers.
func Internal(code string, cause error) error {
	return newError(KindInternal, code, "internal server error", cause)
}

// As extracts the typed error from a chain.
func As(err error) (*Error, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// KindOf reports the kind of err, treating untyped errors as internal.
func KindOf(err error) Kind {
	if typed, ok := As(err); ok {
		return typed.kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the message safe to echo back to a caller.
func PublicMessage(err error) string {
	if typed, ok := As(err); ok {
		return typed.message
	}
	return "internal server error"
}

// HTTPStatus maps a kind to its HTTP-equivalent status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindExpiredWindow:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
