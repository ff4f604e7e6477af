package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidLeaveType   = errors.New("invalid leave type")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrLockedOut          = errors.New("too many attempts, please wait 5 minutes")
)

// FieldError is used to indicate an error with a specific form field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports bad or missing user input. Nothing is written
// to the store when one is returned.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return &ValidationError{Err: errors.New(msg), Fields: []FieldError{{Field: field, Error: msg}}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Error)
		}
		return strings.Join(parts, "; ")
	}
	if e.Err == nil {
		return "invalid input"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the underlying store. The operation was
// rolled back.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAuth(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrLockedOut)
}
