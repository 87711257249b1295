// Package errors provides the structured error type and bounded retry
// helpers used across the sync pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
)

// SyncError is the structured error type for ragsync.
// It carries enough context for logging and for the pipeline to decide
// between aborting a run and skipping a single file or document.
type SyncError struct {
	// Code is the unique error code (e.g. "ERR_101_CONNECTOR_NETWORK").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the subsystem the error originated in.
	Category Category

	// Severity decides whether the run aborts or continues.
	Severity Severity

	// Cause is the underlying error, if any.
	Cause error

	// Retryable indicates the operation may succeed on retry.
	Retryable bool
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is matches SyncErrors by code, enabling errors.Is comparisons.
func (e *SyncError) Is(target error) bool {
	if t, ok := target.(*SyncError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a SyncError with the given code and message.
// Category, severity and the retryable flag are derived from the code.
func New(code string, message string, cause error) *SyncError {
	return &SyncError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SyncError from an existing error, reusing its message.
func Wrap(code string, err error) *SyncError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConnectorError creates a network-level connector error.
func ConnectorError(message string, cause error) *SyncError {
	return New(ErrCodeConnectorNetwork, message, cause)
}

// ParseError creates a single-file parse error.
func ParseError(message string, cause error) *SyncError {
	return New(ErrCodeParseFile, message, cause)
}

// IndexWriteError creates a vector-store write error.
func IndexWriteError(message string, cause error) *SyncError {
	return New(ErrCodeIndexWrite, message, cause)
}

// JournalWriteError creates a journal persistence error.
func JournalWriteError(message string, cause error) *SyncError {
	return New(ErrCodeJournalWrite, message, cause)
}

// IsFatal reports whether an error should abort the current run. The
// error chain is searched so wrapped SyncErrors keep their severity.
// Values with no SyncError anywhere in the chain are treated as fatal:
// an error that did not come from a classified subsystem has unknown
// blast radius.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var se *SyncError
	if stderrors.As(err, &se) {
		return se.Severity == SeverityFatal
	}
	return true
}

// IsRetryable reports whether the failed operation is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *SyncError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCode extracts the error code from anywhere in the chain, or ""
// when no SyncError is present.
func GetCode(err error) string {
	var se *SyncError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}
