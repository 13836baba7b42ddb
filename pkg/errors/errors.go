package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Domain error types for the analysis core

var (
	// ErrNotFound indicates an unknown provider, skill, tool or task id
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates malformed input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a backend or service is unavailable
	ErrUnavailable = errors.New("service unavailable")

	// ErrCancelled indicates a task observed its cancellation flag
	ErrCancelled = errors.New("cancelled")
)

// Capability errors

var (
	// ErrProviderExecution marks a soft failure of an external capability
	ErrProviderExecution = errors.New("provider execution failed")

	// ErrSecretStorage indicates an API key could not be decrypted or loaded
	ErrSecretStorage = errors.New("secret storage error")

	// ErrInsufficientData indicates a series too short for the requested computation
	ErrInsufficientData = errors.New("insufficient data")

	// ErrBackendAbsent indicates a computation backend disabled or failed its startup probe
	ErrBackendAbsent = errors.New("backend not available")

	// ErrMalformedResponse indicates a provider answered with an unparseable payload
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrRateLimitExceeded indicates a provider rate limit was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures
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

// NotFoundError names the kind and id of a missing resource
type NotFoundError struct {
	Kind string
	ID   string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Unwrap lets errors.Is(err, ErrNotFound) match
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound creates a NotFoundError
func NotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// ProviderError is a classified soft failure of an external capability
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying cause
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes every ProviderError match ErrProviderExecution
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderExecution
}

// NewProviderError wraps a provider failure
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// Unwrap exposes every collected error to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// IsHard reports whether err is a programmer or input error that must abort a fallback chain.
// Hard errors: invalid input, validation failures, recovered panics.
func IsHard(err error) bool {
	if err == nil {
		return false
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return true
	}
	return errors.Is(err, ErrInvalidInput)
}

// IsSoft reports whether err may be absorbed by advancing to the next candidate.
// Anything that is not hard is soft: absent backends, timeouts, network and provider failures.
func IsSoft(err error) bool {
	return err != nil && !IsHard(err)
}

// IsTransient reports whether a retry of the same backend may succeed
func IsTransient(err error) bool {
	if err == nil || IsHard(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimitExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// PanicError carries a recovered panic value
type PanicError struct {
	Value interface{}
}

// Error implements the error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
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

// FromHTTPStatus maps an upstream HTTP status to the sentinel the fallback chains classify on
func FromHTTPStatus(status int) error {
	switch {
	case status == 404:
		return ErrNotFound
	case status == 429:
		return ErrRateLimitExceeded
	case status == 408 || status == 504:
		return ErrTimeout
	case status >= 500:
		return ErrUnavailable
	default:
		return ErrProviderExecution
	}
}
