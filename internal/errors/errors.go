// Package errors provides the error taxonomy shared by the quoting core.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Type identifies the category of error
type Type string

const (
	// TypeValidation indicates a rate, driver-rate or route input violation
	TypeValidation Type = "VALIDATION_ERROR"

	// TypeNotFound indicates that settings, a route or a source route is absent
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict indicates a clone across mismatched routes or an invalid state transition
	TypeConflict Type = "CONFLICT"

	// TypeComputation indicates inconsistent data found while computing
	TypeComputation Type = "COMPUTATION_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeNetwork indicates a failure of an external collaborator
	TypeNetwork Type = "NETWORK_ERROR"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"
)

// Violation describes one offending value and the bounds it must satisfy.
type Violation struct {
	Key      string `json:"key"`
	RateType string `json:"rate_type,omitempty"`
	Value    string `json:"value"`
	Min      string `json:"min,omitempty"`
	Max      string `json:"max,omitempty"`
	Reason   string `json:"reason"`
}

// String renders the violation for error messages
func (v Violation) String() string {
	if v.Min != "" || v.Max != "" {
		return fmt.Sprintf("%s=%s (%s, allowed %s..%s)", v.Key, v.Value, v.Reason, v.Min, v.Max)
	}
	return fmt.Sprintf("%s=%s (%s)", v.Key, v.Value, v.Reason)
}

// Error represents a domain error with context
type Error struct {
	Type       Type                   `json:"type"`
	Message    string                 `json:"message"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Violations []Violation            `json:"violations,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.String()
		}
		msg += ": " + strings.Join(parts, "; ")
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e *Error) Is(t Type) bool {
	return e.Type == t
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an error with formatted context
func Wrapf(errType Type, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsType reports whether any error in the chain is a domain error of type t
func IsType(err error, t Type) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// ViolationsOf returns the violations carried by a validation error, if any
func ViolationsOf(err error) []Violation {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Violations
	}
	return nil
}

// Validation creates a validation error
func Validation(message string) *Error {
	return New(TypeValidation, message)
}

// Validationf creates a formatted validation error
func Validationf(format string, args ...interface{}) *Error {
	return Newf(TypeValidation, format, args...)
}

// InvalidRates creates a validation error listing every violation, sorted by key
func InvalidRates(violations []Violation) *Error {
	sorted := make([]Violation, len(violations))
	copy(sorted, violations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	return &Error{
		Type:       TypeValidation,
		Message:    fmt.Sprintf("%d rate(s) failed validation", len(sorted)),
		Violations: sorted,
	}
}

// NotFound creates a not found error
func NotFound(resourceType, identifier string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", resourceType, identifier)
}

// Conflict creates a conflict error
func Conflict(message string) *Error {
	return New(TypeConflict, message)
}

// Computation creates a computation error
func Computation(message string) *Error {
	return New(TypeComputation, message)
}

// Computationf creates a formatted computation error
func Computationf(format string, args ...interface{}) *Error {
	return Newf(TypeComputation, format, args...)
}

// Network wraps a failure of an external collaborator
func Network(message string, cause error) *Error {
	return Wrap(TypeNetwork, message, cause)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
