// Package apperr defines the error taxonomy shared by the session, the
// backend client and the HTTP layer. Every error carries a user-facing
// message that is safe to show verbatim.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies where an error came from
type Kind string

const (
	// KindValidation is a bad file or bad option, caught before submission
	KindValidation Kind = "validation"
	// KindNetwork is a request that could not complete
	KindNetwork Kind = "network"
	// KindTimeout is a request that exceeded its deadline
	KindTimeout Kind = "timeout"
	// KindBackend is a non-2xx response or an explicit failure flag
	KindBackend Kind = "backend"
	// KindState is an operation not allowed in the current session state
	KindState Kind = "state"
	// KindNotFound is an unknown session, view or format
	KindNotFound Kind = "not_found"
	// KindInternal is anything else
	KindInternal Kind = "internal"
)

// Error codes returned to clients
const (
	CodeNoFile         = "ERR_NO_FILE"
	CodeInvalidFormat  = "ERR_INVALID_FORMAT"
	CodeFileTooLarge   = "ERR_FILE_TOO_LARGE"
	CodeFileTooSmall   = "ERR_FILE_TOO_SMALL"
	CodeInvalidOptions = "ERR_INVALID_OPTIONS"
	CodeBusy           = "ERR_BUSY"
	CodeInvalidState   = "ERR_INVALID_STATE"
	CodeNoResult       = "ERR_NO_RESULT"
	CodeNetwork        = "ERR_NETWORK"
	CodeTimeout        = "ERR_TIMEOUT"
	CodeBackend        = "ERR_BACKEND"
	CodeNotFound       = "ERR_NOT_FOUND"
	CodeInternal       = "ERR_INTERNAL"
)

// TimeoutMessage is shown when the transcription deadline is exceeded
const TimeoutMessage = "Request timed out. Please try with a smaller file or check your connection."

// Error is the application error type
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"error"`
	Cause   error  `json:"-"`
}

// Error returns the string representation of the error
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus maps the error kind to a response status
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindState:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindNetwork, KindBackend:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Validation creates a validation error
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// State creates an error for an operation the session cannot perform now
func State(code, message string) *Error {
	return &Error{Kind: KindState, Code: code, Message: message}
}

// NotFound creates an error for an unknown resource
func NotFound(resource, id string) *Error {
	msg := fmt.Sprintf("The requested %s was not found.", resource)
	if id != "" {
		msg = fmt.Sprintf("The requested %s %q was not found.", resource, id)
	}
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: msg}
}

// Network creates an error for a request that could not complete
func Network(cause error) *Error {
	msg := "Could not reach the transcription service."
	if cause != nil {
		msg = fmt.Sprintf("Could not reach the transcription service: %v", cause)
	}
	return &Error{Kind: KindNetwork, Code: CodeNetwork, Message: msg, Cause: cause}
}

// Timeout creates an error for a request that exceeded its deadline
func Timeout(cause error) *Error {
	return &Error{Kind: KindTimeout, Code: CodeTimeout, Message: TimeoutMessage, Cause: cause}
}

// Backend creates an error reported by the transcription service
func Backend(message string, cause error) *Error {
	return &Error{Kind: KindBackend, Code: CodeBackend, Message: message, Cause: cause}
}

// Internal wraps an unexpected error
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "An unexpected error occurred.", Cause: cause}
}

// As extracts an *Error from err
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// From converts any error into an *Error. Deadline errors become timeouts.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	return Internal(err)
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	return From(err).Kind
}

// Message returns the user-facing message of err
func Message(err error) string {
	if err == nil {
		return ""
	}
	return From(err).Message
}
