// Package errors provides the error taxonomy shared by the run engine,
// the document host and the patch layer.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a paragraph or substring was not found
	ErrNotFound = errors.New("not found")
	// ErrMismatch indicates a run-count or array-length disagreement
	ErrMismatch = errors.New("mismatch")
	// ErrZeroLength indicates degenerate original text; it is a kind of mismatch
	ErrZeroLength = fmt.Errorf("zero-length original: %w", ErrMismatch)
	// ErrSerialization indicates a fragment read, parse or write failed
	ErrSerialization = errors.New("serialization fault")
	// ErrConflict indicates the document changed under a pending operation
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "paragraph", "substring", "undo record")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// MismatchError reports that two sequences expected to line up do not.
type MismatchError struct {
	What     string // What was compared (e.g., "run count")
	Expected int
	Actual   int
	Err      error // Underlying error, if any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s mismatch: expected %d, got %d", e.What, e.Expected, e.Actual)
}

func (e *MismatchError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMismatch
}

// SerializationError represents a failed fragment read, parse or write.
type SerializationError struct {
	Operation string // Operation being performed (e.g., "parse", "serialize", "write")
	Err       error  // Underlying error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fragment %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("fragment %s failed", e.Operation)
}

// Is reports ErrSerialization so callers can test the class without
// losing the underlying cause.
func (e *SerializationError) Is(target error) bool {
	return target == ErrSerialization
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// ConflictError reports that a resource no longer matches what an operation
// expected to find.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s conflict: %s", e.Resource, e.ID, e.Reason)
	}
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Reason)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "XML", "script")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewMismatch creates a MismatchError
func NewMismatch(what string, expected, actual int) *MismatchError {
	return &MismatchError{
		What:     what,
		Expected: expected,
		Actual:   actual,
	}
}

// NewSerialization creates a SerializationError
func NewSerialization(operation string, err error) *SerializationError {
	return &SerializationError{
		Operation: operation,
		Err:       err,
	}
}

// NewConflict creates a ConflictError
func NewConflict(resource, id, reason string) *ConflictError {
	return &ConflictError{
		Resource: resource,
		ID:       id,
		Reason:   reason,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
