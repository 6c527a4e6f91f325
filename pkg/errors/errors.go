package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeServiceUnavailable indicates a dependency could not be reached
	ErrorTypeServiceUnavailable ErrorType = "SERVICE_UNAVAILABLE"

	// ErrorTypeMalformedResponse indicates a dependency answered with output
	// that could not be parsed
	ErrorTypeMalformedResponse ErrorType = "MALFORMED_RESPONSE"

	// ErrorTypeExtractionFailed indicates no extraction pass produced anything usable
	ErrorTypeExtractionFailed ErrorType = "EXTRACTION_FAILED"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsType reports whether err, or any error it wraps, is an AppError of type t.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	if appErr.Type == t {
		return true
	}
	return appErr.Err != nil && IsType(appErr.Err, t)
}

// IsDegradable reports whether err means an external dependency is down or
// answered garbage, so callers should fall back instead of failing.
func IsDegradable(err error) bool {
	return IsType(err, ErrorTypeServiceUnavailable) ||
		IsType(err, ErrorTypeMalformedResponse) ||
		IsType(err, ErrorTypeExternal)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewServiceUnavailableError creates an error for an unreachable dependency
func NewServiceUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeServiceUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewMalformedResponseError creates an error for unparseable dependency output
func NewMalformedResponseError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeMalformedResponse,
		Message: message,
		Err:     err,
	}
}

// NewExtractionFailedError creates an error for a fully failed extraction
func NewExtractionFailedError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExtractionFailed,
		Message: message,
		Err:     err,
	}
}
