// Package apperr is the error taxonomy shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Validation Kind = iota + 1
	NotFound
	Mismatch
	Configuration
	Upstream
	TooManyAttempts
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Mismatch:
		return "mismatch"
	case Configuration:
		return "configuration"
	case Upstream:
		return "upstream"
	case TooManyAttempts:
		return "too_many_attempts"
	}
	return "unknown"
}

// HTTPStatus maps a kind to the response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation, Mismatch:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Configuration:
		return http.StatusInternalServerError
	case Upstream:
		return http.StatusBadGateway
	case TooManyAttempts:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// Error carries a user-facing message and an optional cause that is never
// shown to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf reports the kind of err, or zero when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
