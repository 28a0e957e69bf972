package macro

import (
	"errors"
	"fmt"
)

// Macro errors.
var (
	// ErrInvalidTimeline indicates a timeline or record failed validation.
	ErrInvalidTimeline = errors.New("invalid timeline")

	// ErrFrozen indicates an append to a finished timeline.
	ErrFrozen = errors.New("timeline is frozen")

	// ErrNotRecording indicates an event arrived outside a recording.
	ErrNotRecording = errors.New("not recording")

	// ErrAlreadyRecording indicates Begin was called twice.
	ErrAlreadyRecording = errors.New("already recording")

	// ErrMaxDuration indicates the recording reached its time limit.
	ErrMaxDuration = errors.New("maximum recording time reached")

	// ErrWindowLost indicates the target window closed or never regained
	// focus.
	ErrWindowLost = errors.New("target window lost")

	// ErrInvalidSpeed indicates a non-positive speed factor.
	ErrInvalidSpeed = errors.New("speed must be greater than zero")

	// ErrInvalidLoops indicates a negative loop count.
	ErrInvalidLoops = errors.New("loops must not be negative")
)

// PlaybackError reports where playback aborted.
type PlaybackError struct {
	// Index is the last successfully dispatched event index within the
	// loop, or -1 if none was dispatched in that loop.
	Index int
	// Loop is the zero-based loop that failed.
	Loop int
	// Err is the cause.
	Err error
}

// Error implements error.
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback aborted in loop %d after event %d: %v", e.Loop+1, e.Index, e.Err)
}

// Unwrap returns the cause.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// ValidationError describes why a timeline is invalid.
type ValidationError struct {
	// Index is the offending event, or -1 for timeline-level problems.
	Index  int
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid timeline: %s", e.Reason)
	}
	return fmt.Sprintf("invalid timeline: event %d: %s", e.Index, e.Reason)
}

// Is matches ErrInvalidTimeline.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidTimeline
}
