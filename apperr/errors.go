// ABOUTME: Error taxonomy shared by the CRM client, orchestrator and HTTP surface
// ABOUTME: Each error carries a code and the HTTP status it maps to
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class.
type Code string

const (
	CodeValidation Code = "VALIDATION" // 400
	CodeAuth       Code = "AUTH"       // 401
	CodeNotFound   Code = "NOT_FOUND"  // 404
	CodeConflict   Code = "CONFLICT"   // 400, duplicate username
	CodeUpstream   Code = "UPSTREAM"   // 500, external API failure
	CodeInternal   Code = "INTERNAL"   // 500
)

// Error is a classified error with an optional payload from the upstream system.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports caller input that is missing or invalid. No network
// call may have been made when this is returned.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

// Auth reports missing, expired or rejected credentials.
func Auth(msg string, err error) *Error {
	return &Error{Code: CodeAuth, Status: http.StatusUnauthorized, Message: msg, Err: err}
}

func NotFound(what string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", what),
		Details: map[string]any{"identifier": what},
	}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Status: http.StatusBadRequest, Message: msg}
}

// Upstream reports a non-success or malformed response from an external API.
// status is the upstream HTTP status (0 for transport failures) and payload
// the decoded response body, if any.
func Upstream(msg string, status int, payload any, err error) *Error {
	details := map[string]any{}
	if status != 0 {
		details["status"] = status
	}
	if payload != nil {
		details["response"] = payload
	}
	return &Error{Code: CodeUpstream, Status: http.StatusInternalServerError, Message: msg, Details: details, Err: err}
}

func Internal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: msg}
}

// Is reports whether err (or anything it wraps) is an *Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// From returns the *Error inside err, classifying anything else as internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
