package domain

import "errors"

// ErrNotFound is returned when a referenced Trip, Journey, or Booking does
// not exist at transaction time. The enclosing operation aborts before any
// write. Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. missing required field, check-out before check-in). Validation runs
// before any store access, so a validation failure never has side effects.
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrConflict is returned when a transaction's optimistic conflict retries
// are exhausted. The caller may safely retry the whole operation.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("transaction conflict")

// ErrStaleRoute is returned alongside a successfully committed mutation when
// the best-effort post-commit route recompute failed. The primary write is
// never rolled back; the journey's master polyline is simply stale until the
// next successful recompute. Handlers should report success with a warning,
// not a failure.
var ErrStaleRoute = errors.New("journey route refresh failed")
