package model

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrUnauthorized       = "UNAUTHORIZED"
	ErrForbidden          = "FORBIDDEN"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     = "BACKEND_TIMEOUT"
)

// GraphQL-specific error codes.
const (
	ErrGraphQL         = "GRAPHQL_ERROR"
	ErrMalformedResult = "MALFORMED_RESULT"
)

// ErrorEnvelope is the standard error shape surfaced to users and returned by
// the console API. It implements the error interface.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a field-level validation error.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBadRequestError returns a BAD_REQUEST error.
func NewBadRequestError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: msg}
}

// NewUnauthorizedError returns an UNAUTHORIZED error.
func NewUnauthorizedError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrUnauthorized, Message: msg}
}

// NewForbiddenError returns a FORBIDDEN error.
func NewForbiddenError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrForbidden, Message: msg}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewValidationError returns a VALIDATION_ERROR with field-level details.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrValidationError,
		Message: "One or more fields are invalid",
		Details: details,
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}

// NewBackendUnavailableError returns a BACKEND_UNAVAILABLE error.
func NewBackendUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendUnavailable,
		Message: "The evidence engine server is temporarily unavailable",
	}
}

// NewBackendTimeoutError returns a BACKEND_TIMEOUT error.
func NewBackendTimeoutError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrBackendTimeout,
		Message: "The evidence engine server did not respond in time",
	}
}

// NewGraphQLError returns a GRAPHQL_ERROR carrying the server's error text.
func NewGraphQLError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrGraphQL, Message: msg}
}

// NewMalformedResultError returns a MALFORMED_RESULT error for a response the
// console could not decode.
func NewMalformedResultError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrMalformedResult, Message: msg}
}

// ProgrammingError reports a wiring defect such as an unknown form command or
// a missing context provider. It is never converted into a user notification.
type ProgrammingError struct {
	Op  string
	Msg string
	Err error
}

// Error implements the error interface.
func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("programming error in %s: %s", e.Op, e.Msg)
}

// Unwrap returns the underlying sentinel, if any.
func (e *ProgrammingError) Unwrap() error { return e.Err }

// NewProgrammingError returns a ProgrammingError for the given operation.
func NewProgrammingError(op, format string, args ...any) *ProgrammingError {
	return &ProgrammingError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IsProgrammingError reports whether err wraps a ProgrammingError.
func IsProgrammingError(err error) bool {
	var pe *ProgrammingError
	return errors.As(err, &pe)
}

// AsErrorEnvelope converts err to an ErrorEnvelope, falling back to an
// INTERNAL_ERROR carrying err's text.
func AsErrorEnvelope(err error) *ErrorEnvelope {
	var ee *ErrorEnvelope
	if errors.As(err, &ee) {
		return ee
	}
	return &ErrorEnvelope{Code: ErrInternalError, Message: err.Error()}
}
