package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Every failure of a ledger operation wraps
// exactly one of them.
var (
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidInput          = errors.New("invalid input")
	ErrMalformedLegacyRecord = errors.New("malformed legacy record")
	ErrPersistence           = errors.New("persistence error")
	ErrNotFound              = errors.New("not found")
)

// ValidationError names the field that violated a constraint.
type ValidationError struct {
	Field  string
	Reason string
}

// InvalidInput builds a ValidationError for field.
func InvalidInput(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// PersistenceError wraps a storage layer failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

// Persistence wraps err as a PersistenceError, returning nil for a nil err.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}
