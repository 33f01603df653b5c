package errors

import (
	"errors"
	"fmt"
)

// Generic errors shared by every layer

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a dependency is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Upstream service errors

var (
	// ErrExternal indicates an upstream API answered with an error
	ErrExternal = errors.New("external service error")

	// ErrRateLimitExceeded indicates a rate limit (local or upstream) was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrMalformedResponse indicates an upstream reply could not be interpreted
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrContentPolicy indicates the upstream refused the request on content grounds
	ErrContentPolicy = errors.New("content policy violation")

	// ErrPublishDisabled indicates no social publisher is configured
	ErrPublishDisabled = errors.New("social publishing disabled")
)

// ValidationError represents a rejected request field.
// It unwraps to ErrInvalidInput so callers can match it with Is.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap ties every validation error to ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
