// Package errs defines the business error classes returned by repositories
// and services. These are expected, recoverable conditions; anything else
// (e.g. the storage medium failing) propagates as a plain error.
package errs

import (
	"fmt"
	"strings"
)

// ValidationError reports one or more missing or malformed input fields.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// NewValidation builds a ValidationError from field-level messages.
func NewValidation(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// ConflictError reports a uniqueness or mutual-exclusion violation, such as
// a duplicate phone number or an occupied appointment slot.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// NotFoundError reports an operation that referenced a nonexistent record.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// LockoutError reports an account temporarily blocked by the login guard.
// It clears on its own once the contributing failures fall outside the
// lockout window.
type LockoutError struct {
	Username string
}

func (e *LockoutError) Error() string {
	return "account temporarily locked, try again in a few minutes"
}
