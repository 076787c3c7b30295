// Package apperr defines the error taxonomy shared across the indexing and
// chat pipeline. Callers classify with errors.Is and wrap with %w.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an absent job or session.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a duplicate chunk key the upsert logic failed to
	// resolve. Always a bug, never retried.
	ErrConflict = errors.New("conflict")

	// ErrTransient marks a retryable upstream failure (embedding service
	// outage, storage timeout).
	ErrTransient = errors.New("transient upstream failure")

	// ErrFatal marks a configuration-level failure such as an embedding
	// dimension mismatch. Halts the operation without corrupting state.
	ErrFatal = errors.New("fatal")

	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation failed")
)

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

// Conflict wraps ErrConflict with a formatted message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConflict}, args...)...)
}

// Transient wraps ErrTransient with a formatted message.
func Transient(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrTransient}, args...)...)
}

// Fatal wraps ErrFatal with a formatted message.
func Fatal(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrFatal}, args...)...)
}

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}
