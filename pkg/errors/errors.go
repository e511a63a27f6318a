// Package errors provides structured error types for stacksolve.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP API and the library
//   - Machine-readable error codes for programmatic handling
//   - Exit-status mapping for the concretize command
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (spec strings, versions, policy files)
//   - AMBIGUOUS_*: Input that could mean more than one thing
//   - NOT_FOUND_*: Resource not found
//   - INTERNAL_*: Invariant violations
//
// Solver outcomes have their own codes: UNSATISFIABLE when no assignment
// exists, TIMEOUT when the search gave up before proving anything.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidSpec, "unexpected %q at column %d", tok, col)
//	if errors.Is(err, errors.ErrCodeInvalidSpec) {
//	    // Handle malformed user input
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeMalformedPackage, origErr, "package %s", name)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidSpec    Code = "INVALID_SPEC"
	ErrCodeInvalidVersion Code = "INVALID_VERSION"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidPolicy  Code = "INVALID_POLICY"
	ErrCodeInvalidFormat  Code = "INVALID_FORMAT"
	ErrCodeInvalidPath    Code = "INVALID_PATH"
	ErrCodeAmbiguousSpec  Code = "AMBIGUOUS_SPEC"

	// Recipe errors
	ErrCodeMalformedPackage Code = "MALFORMED_PACKAGE"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"
	ErrCodeFileNotFound    Code = "FILE_NOT_FOUND"

	// Solver outcomes
	ErrCodeUnsatisfiable   Code = "UNSATISFIABLE"
	ErrCodeTimeout         Code = "TIMEOUT"
	ErrCodeAmbiguousSplice Code = "AMBIGUOUS_SPLICE"

	// Internal errors
	ErrCodeHashCollision Code = "HASH_COLLISION"
	ErrCodeInternal      Code = "INTERNAL_ERROR"
	ErrCodeUnsupported   Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Coder is implemented by domain error types (parse errors, unsatisfiable
// results) that carry their own structure but still map onto a [Code].
type Coder interface {
	ErrorCode() Code
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error or a [Coder] with a
// matching code.
func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// The outermost *Error or [Coder] in the chain wins, so a domain error that
// wraps a coded cause reports its own code. Returns empty string if the
// error carries no code.
func GetCode(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case Coder:
			return e.ErrorCode()
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				if code := GetCode(inner); code != "" {
					return code
				}
			}
			return ""
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Exit statuses returned by the CLI.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitUnsatisfiable = 2
	ExitTimeout       = 3
	ExitInterrupted   = 130
)

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	switch GetCode(err) {
	case "":
		if err == nil {
			return ExitOK
		}
		return ExitFailure
	case ErrCodeUnsatisfiable:
		return ExitUnsatisfiable
	case ErrCodeTimeout:
		return ExitTimeout
	default:
		return ExitFailure
	}
}
