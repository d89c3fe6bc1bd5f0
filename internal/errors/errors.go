package errors

import (
	"fmt"
)

// EngineError is the structured error type for the search core.
// It lets callers distinguish transient I/O failures from programmer
// errors (e.g., querying before initialization) without string matching.
type EngineError struct {
	// Code is the unique error code (e.g., "ERR_301_NOT_INITIALIZED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Store, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with EngineError.
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *EngineError) WithDetail(key, value string) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new EngineError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *EngineError {
	return &EngineError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a new EngineError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *EngineError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an EngineError from an existing error.
// The message annotates the cause; returns nil for a nil cause.
func Wrap(code string, message string, err error) *EngineError {
	if err == nil {
		return nil
	}
	return New(code, fmt.Sprintf("%s: %v", message, err), err)
}

// Sentinel instances for errors.Is comparisons.
var (
	ErrNotInitialized   = New(ErrCodeNotInitialized, "search index not initialized", nil)
	ErrDocumentNotFound = New(ErrCodeDocumentNotFound, "document not found", nil)
	ErrFileNotFound     = New(ErrCodeFileNotFound, "file not found", nil)
	ErrQueryEmpty       = New(ErrCodeQueryEmpty, "query is empty", nil)
)

// IsRetryable checks if an error is retryable.
// Returns true if the error is an EngineError with Retryable flag set.
func IsRetryable(err error) bool {
	if ee, ok := err.(*EngineError); ok {
		return ee.Retryable
	}
	return false
}

// IsNotFound reports whether err is a not-found outcome, which is a
// normal result for lookups and must not be logged as an error.
func IsNotFound(err error) bool {
	code := GetCode(err)
	return code == ErrCodeDocumentNotFound || code == ErrCodeFileNotFound
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if ee, ok := err.(*EngineError); ok {
		return ee.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an EngineError.
// Returns empty string if not an EngineError.
func GetCode(err error) string {
	if ee, ok := err.(*EngineError); ok {
		return ee.Code
	}
	return ""
}

// GetCategory extracts the category from an EngineError.
// Returns empty string if not an EngineError.
func GetCategory(err error) Category {
	if ee, ok := err.(*EngineError); ok {
		return ee.Category
	}
	return ""
}
