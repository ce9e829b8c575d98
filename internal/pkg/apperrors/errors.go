package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")
	ErrConflict         = errors.New("conflict")

	// Store errors
	ErrStoreFailure = errors.New("store failure")
	// ErrDuplicateCandidate is returned when a freshly generated identifier is
	// rejected by the unique constraint. It is retried and never shown to users.
	ErrDuplicateCandidate = errors.New("identifier candidate already taken")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrInvalidFormat      = errors.New("invalid token format")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Authorization errors
	ErrPermissionDenied = errors.New("permission denied")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrBadRequest       = errors.New("bad request")

	// Upload errors
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
)

// Student Errors
var (
	ErrStudentNotFound = fmt.Errorf("student not found: %w", ErrResourceNotFound)
)

// Admin Errors
var (
	ErrAdminNotFound = fmt.Errorf("admin not found: %w", ErrResourceNotFound)
)

// StoreError wraps a backend failure with the operation that produced it.
// It matches both ErrStoreFailure and the underlying driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the sentinel and the driver error to errors.Is/As
func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreFailure, e.Err}
}

// NewStoreError wraps err as a store failure; nil stays nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// InvalidFileTypeError reports a rejected upload extension or content.
type InvalidFileTypeError struct {
	Filename string
	Allowed  []string
	Reason   string
}

func (e *InvalidFileTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid file type for %q: %s", e.Filename, e.Reason)
	}
	return fmt.Sprintf("invalid file type for %q: allowed extensions are %s", e.Filename, strings.Join(e.Allowed, ", "))
}

func (e *InvalidFileTypeError) Unwrap() error {
	return ErrInvalidFileType
}

// FileTooLargeError reports the actual and the maximum accepted size in bytes.
type FileTooLargeError struct {
	Size int64
	Max  int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %d bytes exceeds the maximum of %d bytes (%d MiB)", e.Size, e.Max, e.Max/(1024*1024))
}

func (e *FileTooLargeError) Unwrap() error {
	return ErrFileTooLarge
}

// NewValidationError wraps ErrValidationFailed with a message
func NewValidationError(format string, args ...interface{}) error {
	return &CustomError{
		Err:     ErrValidationFailed,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewResourceNotFoundError creates a new custom error for resource not found with a message
func NewResourceNotFoundError(message string) error {
	return &CustomError{
		Err:     ErrResourceNotFound,
		Message: message,
	}
}

// NewBadRequestError creates a new custom error for bad request with a message
func NewBadRequestError(message string) error {
	return &CustomError{
		Err:     ErrBadRequest,
		Message: message,
	}
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Code    string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// Message returns the user-facing message carried by err, if any.
func Message(err error) string {
	var custom *CustomError
	if errors.As(err, &custom) && custom.Message != "" {
		return custom.Message
	}
	return err.Error()
}
