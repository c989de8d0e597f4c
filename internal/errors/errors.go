// Package errors provides the error-code taxonomy used across the terminal
// core. Every failure surfaced by a component carries a code so callers can
// classify it (transient, permanent, integrity) without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of application error.
type ErrorCode string

const (
	// General errors
	ErrInternal          ErrorCode = "INTERNAL_ERROR"
	ErrValidation        ErrorCode = "VALIDATION_ERROR"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrUnsupportedAction ErrorCode = "UNSUPPORTED_ACTION"

	// Store errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Sync errors
	ErrSyncNotConfigured  ErrorCode = "SYNC_NOT_CONFIGURED"
	ErrSyncFailed         ErrorCode = "SYNC_FAILED"
	ErrSyncTimeout        ErrorCode = "SYNC_TIMEOUT"
	ErrNetworkUnavailable ErrorCode = "NETWORK_UNAVAILABLE"
	ErrRemoteUnavailable  ErrorCode = "REMOTE_UNAVAILABLE"

	// Queue errors
	ErrOperationNotFound ErrorCode = "OPERATION_NOT_FOUND"
	ErrOperationFailed   ErrorCode = "OPERATION_FAILED"

	// Backup errors
	ErrBackupNotFound   ErrorCode = "BACKUP_NOT_FOUND"
	ErrBackupFailed     ErrorCode = "BACKUP_FAILED"
	ErrChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"
	ErrCorruptedBackup  ErrorCode = "CORRUPTED_BACKUP"
	ErrExportFailed     ErrorCode = "EXPORT_FAILED"
	ErrImportFailed     ErrorCode = "IMPORT_FAILED"
)

// AppError is an application error with a code, a human-readable message and
// an optional wrapped cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the error code from err, or ErrInternal if err carries none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsTransient reports whether err is worth retrying: the remote was
// unreachable, timed out, or answered with a server error. Validation and
// integrity failures are never transient.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case ErrNetworkUnavailable, ErrRemoteUnavailable, ErrSyncTimeout:
		return true
	}
	return false
}

// IsIntegrity reports whether err is a data-integrity failure (checksum
// mismatch or corrupted backup). Integrity failures abort before any
// mutation and must never trigger a retry.
func IsIntegrity(err error) bool {
	switch CodeOf(err) {
	case ErrChecksumMismatch, ErrCorruptedBackup:
		return true
	}
	return false
}
