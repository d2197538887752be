package errors

import (
	"errors"
	"fmt"
)

// Common error categories for the credential service. Handlers map these to
// HTTP statuses; everything below them stays deliberately generic so a
// response never reveals whether a lookup missed or a secret mismatched.
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token errors. One sentinel covers signature failure, ledger miss and
	// expired codes/tokens alike.
	ErrInvalidToken = errors.New("invalid or expired token")

	// Validation errors
	ErrValidation = errors.New("validation failed")

	// Resource errors
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")

	// General errors
	ErrInternal = errors.New("internal error")
)

// ValidationError carries the individual policy/format violations so a
// client can show them field by field.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("validation failed: %s", e.Violations[0])
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidation wraps a non-empty violation list into a ValidationError.
func NewValidation(violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
