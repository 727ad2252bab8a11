package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrUnknownField signals a search field absent from the encryption spec table.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidQuery signals a query rejected by local validation.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrSearchUnavailable signals that the search store cannot be reached.
	ErrSearchUnavailable = errors.New("search store unavailable")
	// ErrRecordStoreUnavailable signals that the record store cannot be reached.
	ErrRecordStoreUnavailable = errors.New("record store unavailable")
	// ErrDuplicateRecord signals a unique-key collision on insert.
	ErrDuplicateRecord = errors.New("duplicate record")
	// ErrWouldThrottle signals a rejected license gate acquisition.
	ErrWouldThrottle = errors.New("license gate would throttle")
	// ErrGateViolation signals a broken gate invariant. It indicates a bug
	// and is never recovered from.
	ErrGateViolation = errors.New("license gate invariant violation")
	// ErrVirtualUnavailable signals that the virtualization service cannot be reached.
	ErrVirtualUnavailable = errors.New("virtualization service unavailable")
)

// UnknownFieldError wraps ErrUnknownField with the offending field name.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownField.Error(), e.Field)
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

// NewUnknownField creates an unknown field error.
func NewUnknownField(field string) error {
	return &UnknownFieldError{Field: field}
}
