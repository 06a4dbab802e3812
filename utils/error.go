package utils

import (
	"errors"
	"fmt"
)

// ValidationError: missing or malformed input, negative computed quantity,
// quantity exceeding the ordered amount.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError: a referenced document or ledger row does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

// ConflictError: the request is well formed but the current state forbids it.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// InsufficientStockError is a ConflictError raised when a deduction exceeds the available quantity.
type InsufficientStockError struct {
	Message string
}

func (e *InsufficientStockError) Error() string { return e.Message }

func (e *InsufficientStockError) Unwrap() error { return &ConflictError{Message: e.Message} }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(resource string, key string) error {
	return &NotFoundError{Resource: resource, Key: key}
}

func NewConflictError(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func NewInsufficientStockError(format string, args ...any) error {
	return &InsufficientStockError{Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflictError also matches InsufficientStockError.
func IsConflictError(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsInsufficientStockError(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}
