package questlog

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the session configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidTurn is returned when an appended turn is malformed
	ErrInvalidTurn = errors.New("invalid turn")

	// ErrTurnNotFound is returned when a sequence number does not exist in the segment
	ErrTurnNotFound = errors.New("turn not found")

	// ErrStaleWriteback is returned when a compression write-back no longer
	// matches the turn it was computed from
	ErrStaleWriteback = errors.New("stale compression write-back")

	// ErrSegmentCorrupt is returned when a restored segment violates the
	// gap-free sequence invariant
	ErrSegmentCorrupt = errors.New("segment sequence corrupt")

	// ErrTransitionBlocked is returned when a module transition cannot
	// complete; the party stays in the outgoing module
	ErrTransitionBlocked = errors.New("module transition blocked")

	// ErrNoActiveModule is returned when an operation requires an active module
	ErrNoActiveModule = errors.New("no active module")

	// ErrCompressionDisabled is returned when a compression pass is requested
	// but compression is switched off
	ErrCompressionDisabled = errors.New("compression disabled")

	// ErrStorageError is returned when a storage operation failed
	ErrStorageError = errors.New("storage operation failed")
)

// LifecycleError provides structured error context for lifecycle operations.
type LifecycleError struct {
	// Op is the operation that failed (e.g., "Transition", "Archive", "Compress")
	Op string

	// ModuleID is the module involved, if applicable
	ModuleID string

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *LifecycleError) Error() string {
	msg := fmt.Sprintf("questlog %s failed", e.Op)
	if e.ModuleID != "" {
		msg += fmt.Sprintf(" for module %s", e.ModuleID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// NewLifecycleError creates a new LifecycleError with the given operation and
// underlying error.
func NewLifecycleError(op string, err error) *LifecycleError {
	return &LifecycleError{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithModule sets the module ID on the error and returns it for chaining.
func (e *LifecycleError) WithModule(moduleID string) *LifecycleError {
	e.ModuleID = moduleID
	return e
}

// WithContext adds a key-value pair to the error context and returns the
// error for chaining.
func (e *LifecycleError) WithContext(key string, value any) *LifecycleError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WrapError wraps an error with operation context. If err is nil, returns nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewLifecycleError(op, err)
}

// storageError tags a backend failure with ErrStorageError so callers can
// match the whole class with errors.Is.
func storageError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorageError, err)
}
