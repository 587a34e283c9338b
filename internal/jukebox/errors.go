package jukebox

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error by how it should be reported to a viewer.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
)

// Status returns the transport status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) title() string {
	switch k {
	case KindBadRequest:
		return "Bad request"
	case KindNotFound:
		return "Not found"
	default:
		return "Internal server error"
	}
}

// Error is an error that is reported back to the viewer that caused it.
type Error struct {
	Kind   Kind
	Title  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Title
	}
	return e.Title + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

var _ error = (*Error)(nil)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Title:  kind.title(),
		Detail: fmt.Sprintf(format, args...),
	}
}

// BadRequest reports a command that cannot be applied to the session as it is.
func BadRequest(format string, args ...any) *Error {
	return newError(KindBadRequest, format, args...)
}

// NotFound reports a guild or channel that does not exist.
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// Internal wraps an unexpected failure.
func Internal(err error, format string, args ...any) *Error {
	e := newError(KindInternal, format, args...)
	e.Err = err
	return e
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// ErrorMessage converts any error into the message sent to a viewer.
// Errors that are not an *Error are reported as a bare internal error.
func ErrorMessage(err error) Message {
	var e *Error
	if !errors.As(err, &e) {
		return Message{
			Status: http.StatusInternalServerError,
			Body: ErrorBody{
				Title:  KindInternal.title(),
				Status: http.StatusInternalServerError,
			},
		}
	}

	status := e.Kind.Status()
	return Message{
		Status: status,
		Body: ErrorBody{
			Title:  e.Title,
			Status: status,
			Detail: e.Detail,
		},
	}
}
