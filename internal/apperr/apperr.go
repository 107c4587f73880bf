// Package apperr defines the error taxonomy shared across archivaid's
// subsystems: validation, not-found, conflict, unrecoverable/transient
// download errors, config-import failure, system-level denial, and fatal
// errors. Every AppError carries a machine-readable Code, a human Summary,
// and an optional Cause for errors.Unwrap chains.
package apperr

import "fmt"

// Code classifies an AppError for HTTP-boundary mapping and CLI exit codes.
type Code string

// Error codes, one per error kind.
const (
	CodeValidation   Code = "validation"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnrecoverable Code = "unrecoverable_download"
	CodeTransient    Code = "transient_download"
	CodeConfigImport Code = "config_import_failure"
	CodeSystemDenied Code = "system_denied"
	CodeFatal        Code = "fatal"
)

// Sentinel errors for errors.Is() checks independent of message text.
var (
	ErrValidation   = newSentinel(CodeValidation, "validation error")
	ErrNotFound     = newSentinel(CodeNotFound, "not found")
	ErrConflict     = newSentinel(CodeConflict, "conflict")
	ErrUnrecoverable = newSentinel(CodeUnrecoverable, "unrecoverable download")
	ErrTransient    = newSentinel(CodeTransient, "transient download failure")
	ErrConfigImport = newSentinel(CodeConfigImport, "config import failure")
	ErrSystemDenied = newSentinel(CodeSystemDenied, "operation denied")
	ErrFatal        = newSentinel(CodeFatal, "fatal error")
)

// AppError is the structured error type surfaced across package boundaries.
// Its Error() string is stable for logging; clients that need the HTTP
// status/body shape should read Code and Summary directly (the HTTP
// surface itself belongs to a separate process, not this core).
type AppError struct {
	Code    Code
	Summary string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Summary, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Summary)
}

// Unwrap exposes the cause chain and also matches the sentinel for the
// error's Code, so errors.Is(err, apperr.ErrNotFound) works regardless of
// whether the AppError was constructed with an explicit Cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel matching e.Code. This lets
// errors.Is(appErr, apperr.ErrValidation) succeed without walking a Cause
// chain that may not include the sentinel.
func (e *AppError) Is(target error) bool {
	sentinel, ok := target.(*sentinelError)
	if !ok {
		return false
	}

	return sentinel.code == e.Code
}

type sentinelError struct {
	code    Code
	message string
}

func (s *sentinelError) Error() string { return s.message }

func newSentinel(code Code, message string) *sentinelError {
	return &sentinelError{code: code, message: message}
}

// New builds an AppError with no cause.
func New(code Code, summary string) *AppError {
	return &AppError{Code: code, Summary: summary}
}

// Wrap builds an AppError with a cause, preserving it for errors.Unwrap.
func Wrap(code Code, summary string, cause error) *AppError {
	return &AppError{Code: code, Summary: summary, Cause: cause}
}

// Validation is a convenience constructor for the most common kind.
func Validation(format string, args ...any) *AppError {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

// NotFound is a convenience constructor for missing-resource errors.
func NotFound(format string, args ...any) *AppError {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

// Conflict is a convenience constructor for duplicate/version-mismatch errors.
func Conflict(format string, args ...any) *AppError {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}
