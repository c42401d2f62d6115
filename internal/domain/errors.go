// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates the request payload failed validation.
// Wrap it with context: fmt.Errorf("%w: name is required", domain.ErrValidation).
var ErrValidation = errors.New("validation failed")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")
