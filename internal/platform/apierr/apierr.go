package apierr

import (
	"fmt"
	"net/http"
)

// Error is the coordinator's single typed-error shape. Every component
// boundary returns one of these (via the constructors below) instead of an
// ad hoc string or a status code picked at the handler; the HTTP layer maps
// Status/Code to a response exactly once.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func BadRequest(err error) *Error { return New(http.StatusBadRequest, "bad_request", err) }

func Unauthorized(err error) *Error { return New(http.StatusUnauthorized, "unauthorized", err) }

func Forbidden(err error) *Error { return New(http.StatusForbidden, "forbidden", err) }

func NotFound(err error) *Error { return New(http.StatusNotFound, "not_found", err) }

func Conflict(err error) *Error { return New(http.StatusConflict, "conflict", err) }

func ConcurrencyConflict(err error) *Error {
	return New(http.StatusConflict, "concurrency_conflict", err)
}

func InvalidTransition(err error) *Error {
	return New(http.StatusBadRequest, "invalid_transition", err)
}

func Timeout(err error) *Error { return New(http.StatusGatewayTimeout, "timeout", err) }

func Internal(err error) *Error { return New(http.StatusInternalServerError, "internal", err) }
