// Package apperr carries typed application errors that the HTTP layer maps
// to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "validation_error"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeCapacity     Code = "capacity_exceeded"
	CodeUnauthorized Code = "unauthorized"
	CodeDependency   Code = "dependency_error"
	CodeInternal     Code = "internal_error"
)

var statusByCode = map[Code]int{
	CodeValidation:   http.StatusBadRequest,
	CodeNotFound:     http.StatusNotFound,
	CodeConflict:     http.StatusConflict,
	CodeCapacity:     http.StatusUnprocessableEntity,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeDependency:   http.StatusBadGateway,
	CodeInternal:     http.StatusInternalServerError,
}

// Error is an application error with a stable code and a user-facing message.
type Error struct {
	code    Code
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Code() Code { return e.code }

func (e *Error) Message() string { return e.message }

// HTTPStatus returns the status code the error maps to.
func (e *Error) HTTPStatus() int {
	if status, ok := statusByCode[e.code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(err error, code Code, message string) *Error {
	return &Error{code: code, message: message, err: err}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

// As extracts an *Error from err, wrapping unknown errors as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, "internal error")
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.code == code
	}
	return false
}
