package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDemandNotFound signals a missing demand post.
	ErrDemandNotFound = errors.New("demand post not found")
	// ErrPropertyNotFound signals a missing property.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrBadRequest signals malformed input, e.g. inconsistent constraints.
	ErrBadRequest = errors.New("bad request")
	// ErrProviderUnavailable signals an embedding provider failure or timeout.
	// Never surfaced raw to end users: the matching engine degrades instead.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
	// ErrVectorDimMismatch signals a stored vector incompatible with the
	// configured model. Indicates a configuration change, not a runtime fault.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrBackfillRunning signals that a backfill run is already in progress.
	ErrBackfillRunning = errors.New("backfill already running")
	// ErrQueueFull signals that the mutation hook queue rejected an event.
	ErrQueueFull = errors.New("hook queue full")
)

// ConstraintError wraps ErrBadRequest with the offending constraint detail.
type ConstraintError struct {
	Field  string
	Reason string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: invalid constraint %q: %s", ErrBadRequest.Error(), e.Field, e.Reason)
}

func (e *ConstraintError) Unwrap() error { return ErrBadRequest }

// NewConstraintError creates a constraint validation error.
func NewConstraintError(field, reason string) error {
	return &ConstraintError{Field: field, Reason: reason}
}
