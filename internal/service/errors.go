package service

import "fmt"

// The engine reports failures in five categories (validation, authorization,
// conflict, not-found, transient). Validation and authorization are detected
// before any transaction starts; conflicts abort the enclosing transaction;
// transient failures are safe to retry.

// ValidationError is a 4xx-equivalent input problem, never retried.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErr(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError means the caller is not the cart owner, the order's
// customer, or the order's seller.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

func authErr(format string, args ...interface{}) error {
	return &AuthorizationError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError is a consistency failure the caller can adjust and retry:
// insufficient stock, an illegal status transition, incomplete details.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func conflictErr(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names a missing entity.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func notFoundErr(format string, args ...interface{}) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// TransientError wraps a store/transaction failure; the whole operation was
// rolled back and the caller may retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }
