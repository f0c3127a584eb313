// Package exitcode defines structured exit codes for marshal commands.
// Exit codes are the sole machine-readable contract of the CLI: scripts
// and agents branch on them without parsing output.
//
//   - 0: safe / healthy / clean
//   - 1: detected a problem (kill switch active, violation, stuck agent)
//   - 2: invalid invocation (bad arguments, missing configuration)
//   - 3-9: internal errors
//   - 30-39: network/connectivity
//   - 40-49: timeouts
package exitcode

import (
	"errors"
	"fmt"
)

const (
	// Success indicates the check passed: switch clear, text clean, agents healthy.
	Success = 0

	// ErrDetected indicates the check found what it was looking for:
	// an active kill switch, a violation, or a stuck agent.
	ErrDetected = 1

	// ErrUsage indicates invalid arguments or missing required configuration.
	// Usage errors abort before any evidence gathering.
	ErrUsage = 2

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = 3

	// ErrNetwork indicates a network/connectivity failure.
	ErrNetwork = 30

	// ErrTimeout indicates an operation exceeded its bounded deadline.
	ErrTimeout = 40
)

// Error wraps an error with a specific exit code.
type Error struct {
	Code    int
	Message string
	Cause   error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new coded error.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new coded error with printf-style formatting.
func Newf(code int, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code int, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Code extracts the exit code from an error.
// Returns ErrInternal if the error doesn't carry a code, Success for nil.
func Code(err error) int {
	if err == nil {
		return Success
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ErrInternal
}

// Is checks if an error has a specific exit code.
func Is(err error, code int) bool {
	return Code(err) == code
}

// Usage returns an invalid-invocation error.
func Usage(msg string) *Error {
	return New(ErrUsage, msg)
}

// Usagef returns an invalid-invocation error with formatting.
func Usagef(format string, args ...interface{}) *Error {
	return Newf(ErrUsage, format, args...)
}

// Timeout returns a timeout error for the named operation.
func Timeout(operation string) *Error {
	return Newf(ErrTimeout, "operation timed out: %s", operation)
}
