// Package errdefs defines the uniform error shape returned across
// snaplock component boundaries.
//
// Every failure surfaced by the engine carries a numeric code, a
// human-readable message, and an optional detail map with enough
// structure (field, offending value, required permission) for callers
// to make automated retry decisions. Components keep their own sentinel
// errors internally; they are converted to an *ErrorResult before
// crossing the engine boundary.
package errdefs

import (
	"errors"
	"fmt"
)

// Code identifies the failure class.
type Code int

const (
	// CodeValidation covers malformed rule, plugin, or permission input.
	// Rejected definitions are never admitted.
	CodeValidation Code = 1000

	// CodePermission covers callers lacking a required capability.
	CodePermission Code = 2000

	// CodeConflict covers lock requests against a held, non-shareable path.
	CodeConflict Code = 3000

	// CodeNotFound covers unknown lock identifiers or paths.
	CodeNotFound Code = 4000

	// CodeInternal covers unexpected invariant violations. These are
	// fatal to the operation, logged, and never silently swallowed.
	CodeInternal Code = 5000
)

// String returns the canonical name for the code.
func (c Code) String() string {
	switch c {
	case CodeValidation:
		return "validation_error"
	case CodePermission:
		return "permission_error"
	case CodeConflict:
		return "conflict_error"
	case CodeNotFound:
		return "not_found_error"
	case CodeInternal:
		return "internal_error"
	default:
		return fmt.Sprintf("unknown_error(%d)", int(c))
	}
}

// ErrorResult is the uniform failure shape.
type ErrorResult struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Detail  map[string]interface{} `json:"detail,omitempty"`

	// cause preserves the underlying error for errors.Is/As chains.
	cause error
}

// Error implements the error interface.
func (e *ErrorResult) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *ErrorResult) Unwrap() error {
	return e.cause
}

// WithDetail attaches a detail entry and returns the receiver for chaining.
func (e *ErrorResult) WithDetail(key string, value interface{}) *ErrorResult {
	if e.Detail == nil {
		e.Detail = make(map[string]interface{})
	}
	e.Detail[key] = value
	return e
}

// WithCause records the underlying error and returns the receiver.
func (e *ErrorResult) WithCause(err error) *ErrorResult {
	e.cause = err
	return e
}

// Validation creates a validation error.
func Validation(msg string) *ErrorResult {
	return &ErrorResult{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with a formatted message.
func Validationf(format string, args ...interface{}) *ErrorResult {
	return &ErrorResult{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Permission creates a permission error.
func Permission(msg string) *ErrorResult {
	return &ErrorResult{Code: CodePermission, Message: msg}
}

// Permissionf creates a permission error with a formatted message.
func Permissionf(format string, args ...interface{}) *ErrorResult {
	return &ErrorResult{Code: CodePermission, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(msg string) *ErrorResult {
	return &ErrorResult{Code: CodeConflict, Message: msg}
}

// Conflictf creates a conflict error with a formatted message.
func Conflictf(format string, args ...interface{}) *ErrorResult {
	return &ErrorResult{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(msg string) *ErrorResult {
	return &ErrorResult{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not-found error with a formatted message.
func NotFoundf(format string, args ...interface{}) *ErrorResult {
	return &ErrorResult{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error wrapping the given cause.
func Internal(msg string, cause error) *ErrorResult {
	return &ErrorResult{Code: CodeInternal, Message: msg, cause: cause}
}

// As extracts an *ErrorResult from an error chain.
func As(err error) (*ErrorResult, bool) {
	var result *ErrorResult
	if errors.As(err, &result) {
		return result, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal when err carries no
// ErrorResult in its chain.
func CodeOf(err error) Code {
	if result, ok := As(err); ok {
		return result.Code
	}
	return CodeInternal
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsPermission reports whether err is a permission error.
func IsPermission(err error) bool { return hasCode(err, CodePermission) }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsInternal reports whether err is an internal error.
func IsInternal(err error) bool { return hasCode(err, CodeInternal) }

func hasCode(err error, code Code) bool {
	result, ok := As(err)
	return ok && result.Code == code
}
