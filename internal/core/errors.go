// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps a formatted cause under base's code.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Data errors
	ErrNoData        = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrInvalidSymbol = &Error{Code: "INVALID_SYMBOL", Message: "invalid symbol"}

	// Provider errors. A fetch failure skips the current target only.
	ErrFetchFailed = &Error{Code: "FETCH_FAILED", Message: "fetch failed"}

	// Transform errors. A parse failure skips the current record only.
	ErrParseFailed = &Error{Code: "PARSE_FAILED", Message: "parse failed"}

	// Sink errors
	ErrConstraintViolation = &Error{Code: "CONSTRAINT_VIOLATION", Message: "duplicate natural key"}
	ErrStoreFailed         = &Error{Code: "STORE_FAILED", Message: "store operation failed"}

	// Cache errors are logged and never fatal.
	ErrCacheFailed = &Error{Code: "CACHE_FAILED", Message: "cache operation failed"}

	// Config errors abort before any work starts.
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
