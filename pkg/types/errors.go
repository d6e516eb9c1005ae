package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies failures returned by the placement core.
type ErrorKind string

const (
	// KindValidation is illegal user input. Never retried, nothing is mutated.
	KindValidation ErrorKind = "ValidationError"

	// KindConstraint is legal input producing an illegal distribution.
	KindConstraint ErrorKind = "ConstraintViolation"

	// KindConsistency is a broken internal invariant, e.g. a dangling node reference.
	KindConsistency ErrorKind = "ConsistencyError"

	// KindStorage is a failed persistence operation. The enclosing mutation was rolled back.
	KindStorage ErrorKind = "StorageError"

	// KindNotFound is a lookup for a record that does not exist.
	KindNotFound ErrorKind = "NotFound"
)

// Error is the structured failure returned by every placement operation.
type Error struct {
	Kind    ErrorKind
	Message string

	// Offending identifiers and numeric bounds, e.g. component, min, actual
	Details map[string]interface{}

	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a detail and returns the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// DetailString renders details as sorted key=value pairs.
func (e *Error) DetailString() string {
	if len(e.Details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
	}
	return strings.Join(parts, " ")
}

// NewValidationError creates a new validation error with the given message.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewValidationErrorf creates a new validation error with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) *Error {
	return NewValidationError(fmt.Sprintf(format, args...))
}

// NewConstraintViolation creates a new constraint violation naming a component.
func NewConstraintViolation(component, message string) *Error {
	return (&Error{Kind: KindConstraint, Message: message}).WithDetail("component", component)
}

// NewConsistencyError creates a new consistency error.
func NewConsistencyError(message string) *Error {
	return &Error{Kind: KindConsistency, Message: message}
}

// NewNotFoundError creates a new not-found error for a resource.
func NewNotFoundError(resource, name string) *Error {
	return (&Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", resource, name)}).
		WithDetail("resource", resource).
		WithDetail("name", name)
}

// WrapStorageError wraps a persistence failure with additional context.
// Errors that are already classified are returned unchanged.
func WrapStorageError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return err
	}

	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WrapValidationError wraps an error with additional context as a validation error.
func WrapValidationError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	message := fmt.Sprintf(format, args...)
	var typed *Error
	if errors.As(err, &typed) && typed.Kind == KindValidation {
		return &Error{
			Kind:    KindValidation,
			Message: fmt.Sprintf("%s: %s", message, typed.Message),
			Details: typed.Details,
		}
	}

	return &Error{Kind: KindValidation, Message: fmt.Sprintf("%s: %v", message, err)}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return KindOf(err) == KindValidation
}

// IsConstraintViolation checks if an error is a constraint violation.
func IsConstraintViolation(err error) bool {
	return KindOf(err) == KindConstraint
}

// IsConsistencyError checks if an error is a consistency error.
func IsConsistencyError(err error) bool {
	return KindOf(err) == KindConsistency
}

// IsStorageError checks if an error is a storage error.
func IsStorageError(err error) bool {
	return KindOf(err) == KindStorage
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return IsStorageError(err)
}
