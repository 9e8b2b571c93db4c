package workflow

import (
	"errors"
	"fmt"
)

// Code identifies the kind of rejection.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodePermissionDenied  Code = "FORBIDDEN"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeValidation        Code = "INVALID_INPUT"
)

// Error is returned by every Service action that refuses to run. The task is
// never modified when an Error comes back.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound)
// works for every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition}
	ErrValidation        = &Error{Code: CodeValidation}
)

// CodeOf extracts the code, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func notFound(format string, args ...any) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func forbidden(format string, args ...any) error {
	return &Error{Code: CodePermissionDenied, Message: fmt.Sprintf(format, args...)}
}

func invalid(format string, args ...any) error {
	return &Error{Code: CodeInvalidTransition, Message: fmt.Sprintf(format, args...)}
}

func validation(format string, args ...any) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a not-found rejection.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsPermissionDenied reports whether err is a permission rejection.
func IsPermissionDenied(err error) bool { return errors.Is(err, ErrPermissionDenied) }

// IsInvalidTransition reports whether err rejects a move the task's state forbids.
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }

// IsValidation reports whether err rejects malformed input.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
