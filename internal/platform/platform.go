// Package platform declares the operating-system boundary of the engine:
// enumerating and measuring windows, observing global input, and
// synthesizing input. Concrete bindings live in subpackages; nothing else
// in the module touches OS APIs.
package platform

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
)

// Errors returned by platform bindings.
var (
	// ErrNoWindow indicates a window handle no longer resolves.
	ErrNoWindow = errors.New("window handle no longer valid")

	// ErrUnsupported indicates the binding is not available on this OS.
	ErrUnsupported = errors.New("platform binding not supported on this system")

	// ErrHookInstalled indicates the binding already has an active hook.
	ErrHookInstalled = errors.New("input hook already installed")
)

// Handle identifies a top-level window.
type Handle uintptr

// WindowInfo describes a top-level window.
type WindowInfo struct {
	Handle  Handle        `json:"handle"`
	Title   string        `json:"title"`
	Bounds  geometry.Rect `json:"bounds"`
	Visible bool          `json:"visible"`
	PID     int           `json:"pid,omitempty"`
}

// WindowSystem enumerates and measures windows.
type WindowSystem interface {
	// Windows returns the visible top-level windows.
	Windows(ctx context.Context) ([]WindowInfo, error)

	// Bounds returns the current on-screen rectangle of a window.
	// Returns ErrNoWindow once the handle stops resolving.
	Bounds(h Handle) (geometry.Rect, error)

	// Foreground returns the window that currently has input focus.
	Foreground() (Handle, error)

	// ScreenBounds returns the virtual desktop rectangle.
	ScreenBounds() geometry.Rect
}

// RawEvent is one event observed by a global input hook. Pointer events
// carry absolute screen coordinates.
type RawEvent struct {
	Kind   input.Kind
	Time   time.Time
	Point  geometry.Point
	Button mouse.Button
	Down   bool
	// DeltaX and DeltaY are in wheel notches.
	DeltaX int
	DeltaY int
	Code   key.Code
	// Injected is true for events synthesized by software, including our
	// own playback.
	Injected bool
}

// InputHook observes all pointer and keyboard input system-wide.
type InputHook interface {
	// Install starts delivering events to fn until stop is called.
	// fn runs on the hook's own thread and must return quickly.
	Install(fn func(RawEvent)) (stop func() error, err error)
}

// KeyStroke is a single key transition seen by a KeyWatcher.
type KeyStroke struct {
	Code     key.Code
	Down     bool
	Injected bool
}

// KeyWatcher observes keyboard input through a path independent of the
// capture hook.
type KeyWatcher interface {
	// WatchKeys delivers key transitions to fn until stop is called.
	WatchKeys(fn func(KeyStroke)) (stop func() error, err error)
}

// Synthesizer injects input. Coordinates are absolute screen points that
// the caller has already clamped to the screen.
type Synthesizer interface {
	MovePointer(p geometry.Point) error
	Button(p geometry.Point, b mouse.Button, down bool) error
	// Scroll turns the wheel by the given notches at p.
	Scroll(p geometry.Point, dx, dy int) error
	Key(code key.Code, down bool) error
}

// Platform bundles one binding of each capability.
type Platform struct {
	Windows WindowSystem
	Hook    InputHook
	Keys    KeyWatcher
	Synth   Synthesizer
	// Name identifies the binding in logs.
	Name string
}

// Validate returns an error if any capability is missing.
func (p Platform) Validate() error {
	switch {
	case p.Windows == nil:
		return errors.New("platform: window system is required")
	case p.Hook == nil:
		return errors.New("platform: input hook is required")
	case p.Keys == nil:
		return errors.New("platform: key watcher is required")
	case p.Synth == nil:
		return errors.New("platform: synthesizer is required")
	}
	return nil
}
