// Package apperror defines the error taxonomy surfaced by the reservation
// service.  Every error returned from a service operation is either one of
// these or wraps one, so the transport layer can map it to a status code
// with errors.Is.
package apperror

import (
	"errors"
	"net/http"
)

// Kind sentinels.  Compare with errors.Is(err, apperror.ErrNotFound).
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrBadRequest = errors.New("bad request")
	ErrInternal   = errors.New("internal error")
)

// Error carries a human readable message, its taxonomy kind and an
// optional underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is matches the error's kind sentinel.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) error { return &Error{Kind: ErrNotFound, Message: msg} }

func Forbidden(msg string) error { return &Error{Kind: ErrForbidden, Message: msg} }

func BadRequest(msg string) error { return &Error{Kind: ErrBadRequest, Message: msg} }

// Internal wraps cause as an internal error.  cause may be nil.
func Internal(msg string, cause error) error {
	return &Error{Kind: ErrInternal, Message: msg, Err: cause}
}

// Status maps err to an HTTP status code.  Errors outside the taxonomy are
// treated as internal.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message for err.  Internal causes are
// not exposed.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal server error"
}
