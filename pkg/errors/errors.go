// Package errors provides structured error types for mockupkit.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the core, the CLI and the HTTP driver
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// The render core reports exactly the kinds a job can fail with:
//   - MALFORMED_DOCUMENT: the template container could not be parsed
//   - UNSUPPORTED_FEATURE: a known but unhandled encoding version
//   - NOT_FOUND / WRONG_LAYER_KIND: the named placeholder is absent
//   - DEGENERATE_GEOMETRY: the placement cannot be solved
//   - PLACEHOLDER_HIDDEN: the placeholder is not visible (informational)
//
// Drivers add INVALID_* codes for their own input validation.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNotFound, "placeholder %q not found", name)
//	if errors.IsNotFound(err) {
//	    // Report a misconfigured template
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeMalformedDocument, origErr, "read %s", entry)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Document errors
	ErrCodeMalformedDocument  Code = "MALFORMED_DOCUMENT"
	ErrCodeUnsupportedFeature Code = "UNSUPPORTED_FEATURE"

	// Locator errors
	ErrCodeNotFound       Code = "NOT_FOUND"
	ErrCodeWrongLayerKind Code = "WRONG_LAYER_KIND"

	// Geometry errors
	ErrCodeDegenerateGeometry Code = "DEGENERATE_GEOMETRY"

	// Render outcomes
	ErrCodePlaceholderHidden Code = "PLACEHOLDER_HIDDEN"

	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidImage  Code = "INVALID_IMAGE"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeFileNotFound  Code = "FILE_NOT_FOUND"

	// Job control
	ErrCodeCanceled Code = "CANCELED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
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

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNotFound reports whether err means "no such placeholder".
// A name that only matched non-placeholder layers counts as not found.
func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound) || Is(err, ErrCodeWrongLayerKind)
}

// IsFatal reports whether err aborts a job. PlaceholderHidden is the only
// informational outcome; every other error, coded or not, is fatal.
func IsFatal(err error) bool {
	return err != nil && !Is(err, ErrCodePlaceholderHidden)
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
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
