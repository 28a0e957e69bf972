package engine

import (
	"errors"
	"fmt"

	"github.com/dshills/winmacro/internal/capture"
	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/session"
	"github.com/dshills/winmacro/internal/window"
)

// Errors returned by engine operations.
var (
	// ErrNotStarted indicates an operation before Start.
	ErrNotStarted = errors.New("engine not started")

	// ErrClosed indicates an operation after Close.
	ErrClosed = errors.New("engine closed")

	// ErrSessionNotFound indicates an unknown or expired session ID.
	ErrSessionNotFound = errors.New("session not found")
)

// Errors from the engine's components, re-exported so callers need only
// this package for errors.Is checks.
var (
	ErrWindowNotFound       = window.ErrWindowNotFound
	ErrWindowLost           = macro.ErrWindowLost
	ErrCaptureHookFailure   = capture.ErrCaptureHookFailure
	ErrCaptureAlreadyActive = capture.ErrCaptureAlreadyActive
	ErrConcurrentSession    = session.ErrConcurrentSession
	ErrInvalidTimeline      = macro.ErrInvalidTimeline
	ErrNotRecording         = macro.ErrNotRecording
	ErrInvalidSpeed         = macro.ErrInvalidSpeed
	ErrInvalidLoops         = macro.ErrInvalidLoops
)

// OperationError represents an error that occurred during a specific operation.
type OperationError struct {
	Op     string // Operation name ("record", "play", "stop", "configure")
	Target string // Window title or session ID
	Err    error  // Underlying error
}

func newOpError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
