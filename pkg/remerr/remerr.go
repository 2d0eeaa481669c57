// Package remerr defines the error taxonomy shared across REM's components.
//
// Every user-visible failure carries a Code plus a one-line message, never a
// stack trace, so it can cross the gRPC boundary as a structured status.
package remerr

import (
	"errors"
	"fmt"
)

// Code classifies a REM error.
type Code string

const (
	CodeSchemaViolation      Code = "SchemaViolation"
	CodeNotFound             Code = "NotFound"
	CodeDimensionMismatch    Code = "DimensionMismatch"
	CodeProviderUnavailable  Code = "ProviderUnavailable"
	CodeQueryParseError      Code = "QueryParseError"
	CodePlanValidationError  Code = "PlanValidationError"
	CodeReplicationTransient Code = "ReplicationTransient"
	CodeStorageFatal         Code = "StorageFatal"
)

// Error is a structured REM error carrying a machine-readable Code.
type Error struct {
	Code    Code
	Message string
	Field   string // offending field, when applicable (SchemaViolation)
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with the given code and message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around an existing cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithField attaches the offending field name to a SchemaViolation.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the Code from err, or "" if err isn't a *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
