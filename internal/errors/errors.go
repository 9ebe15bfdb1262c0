// Package errors provides domain-specific error types for mosaic.
//
// The taxonomy mirrors how the session manager reports problems:
// InvalidState errors are surfaced to the caller as error
// notifications, pool and loop errors are resolved locally, and
// ConfigError describes a bad runtime setting.
package errors

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNoActiveSession     = errors.New("no active session")
	ErrOperationInProgress = errors.New("operation already in progress")
	ErrSessionCancelled    = errors.New("session was cancelled")

	ErrPoolSaturated = errors.New("worker pool saturated")
	ErrPoolClosed    = errors.New("worker pool is closed")
	ErrLoopStopped   = errors.New("event loop stopped")
	ErrLoopRunning   = errors.New("event loop already running")
)

// ── Structured error types ───────────────────────────────────────────

// StateError reports a command that is not valid in the manager's
// current state.  It is always recoverable and has no side effects.
type StateError struct {
	Op  string // command that was rejected: "end-session", "load-surface", ...
	Err error  // one of the InvalidState sentinels
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// OperationError wraps a fault raised by a job body while it ran.
type OperationError struct {
	Op     string // operation name
	TaskID uint64
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// InvalidState creates a StateError for op.
func InvalidState(op string, err error) *StateError {
	return &StateError{Op: op, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsInvalidState reports whether err is a rejected command.
func IsInvalidState(err error) bool {
	if err == nil {
		return false
	}
	var se *StateError
	if errors.As(err, &se) {
		return true
	}
	return errors.Is(err, ErrNoActiveSession) ||
		errors.Is(err, ErrOperationInProgress) ||
		errors.Is(err, ErrSessionCancelled)
}

// IsRejected reports whether err means a task was never scheduled.
func IsRejected(err error) bool {
	return errors.Is(err, ErrPoolSaturated) || errors.Is(err, ErrPoolClosed)
}

// Message returns the text shown to the caller for err: the innermost
// sentinel for InvalidState errors, the full text otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *StateError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}

// ── Re-exports for convenience ───────────────────────────────────────

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
