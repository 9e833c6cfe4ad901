package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrUninitialized is matched by every UninitializedError.
	ErrUninitialized = errors.New("transport: uninitialized dependency")

	// ErrReconnectExhausted is matched by ExhaustedError.
	ErrReconnectExhausted = errors.New("transport: reconnection exhausted")

	// ErrRefreshFailed marks a reconnection attempt whose session refresh failed.
	ErrRefreshFailed = errors.New("transport: session refresh failed")

	// ErrLoginPhase is returned when a two-phase login step is invoked out of order.
	ErrLoginPhase = errors.New("transport: invalid login phase")

	// ErrQRTimeout is returned when QR polling ends without a session.
	ErrQRTimeout = errors.New("transport: qr login timed out")

	// ErrSessionExpired is returned by Restore when the stored session can no longer be renewed.
	ErrSessionExpired = errors.New("transport: stored session expired")
)

// UninitializedError reports a missing prerequisite (primary client, session, socket).
type UninitializedError struct {
	Dependency string
}

func (e *UninitializedError) Error() string {
	return fmt.Sprintf("transport: %s not initialized", e.Dependency)
}

func (e *UninitializedError) Unwrap() error { return ErrUninitialized }

// ExhaustedError ends a reconnection episode that hit the attempt ceiling,
// or that lost its session to a refresh the default gateway rejected.
// Attempts counts the attempts actually made.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("transport: reconnection exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap exposes both the sentinel and the last attempt's cause.
func (e *ExhaustedError) Unwrap() []error {
	if e.Last == nil {
		return []error{ErrReconnectExhausted}
	}
	return []error{ErrReconnectExhausted, e.Last}
}
