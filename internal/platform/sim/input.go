package sim

import (
	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
	"github.com/dshills/winmacro/internal/platform"
)

// FailHook makes subsequent Install calls fail with err. Pass nil to
// restore normal behavior.
func (d *Desktop) FailHook(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hookErr = err
}

// FailNextAction makes the next synthesized action fail with err.
func (d *Desktop) FailNextAction(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failNext = err
}

// Install implements platform.InputHook.
func (d *Desktop) Install(fn func(platform.RawEvent)) (func() error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hookErr != nil {
		return nil, d.hookErr
	}
	if d.hook != nil {
		return nil, platform.ErrHookInstalled
	}
	d.hook = fn
	return func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.hook = nil
		return nil
	}, nil
}

// HookInstalled reports whether an input hook is active.
func (d *Desktop) HookInstalled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hook != nil
}

// WatchKeys implements platform.KeyWatcher.
func (d *Desktop) WatchKeys(fn func(platform.KeyStroke)) (func() error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.watchID++
	id := d.watchID
	d.watchers[id] = fn
	return func() error {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.watchers, id)
		return nil
	}, nil
}

// Emit delivers ev to the installed hook, stamping the current time when
// ev.Time is zero. Pointer events also move the virtual cursor. Emit
// returns false when no hook is installed.
func (d *Desktop) Emit(ev platform.RawEvent) bool {
	d.mu.Lock()
	if ev.Time.IsZero() {
		ev.Time = d.now()
	}
	if ev.Kind.IsPointer() {
		d.cursor = ev.Point
	}
	fn := d.hook
	d.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(ev)
	return true
}

// PressKey delivers a key transition to the key watchers and, as a key
// event, to the input hook.
func (d *Desktop) PressKey(code key.Code, down bool) {
	d.mu.Lock()
	watchers := make([]func(platform.KeyStroke), 0, len(d.watchers))
	for _, fn := range d.watchers {
		watchers = append(watchers, fn)
	}
	d.mu.Unlock()

	for _, fn := range watchers {
		fn(platform.KeyStroke{Code: code, Down: down})
	}
	d.Emit(platform.RawEvent{Kind: input.KindKey, Code: code, Down: down})
}

// Tap presses and releases a key.
func (d *Desktop) Tap(code key.Code) {
	d.PressKey(code, true)
	d.PressKey(code, false)
}

// Actions returns a copy of the synthesized action log.
func (d *Desktop) Actions() []Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Action, len(d.actions))
	copy(out, d.actions)
	return out
}

// ResetActions clears the action log.
func (d *Desktop) ResetActions() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actions = nil
}

func (d *Desktop) record(a Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.failNext; err != nil {
		d.failNext = nil
		return err
	}
	a.At = d.now()
	if a.Kind != ActionKey {
		d.cursor = a.Point
	}
	d.actions = append(d.actions, a)
	return nil
}

// MovePointer implements platform.Synthesizer.
func (d *Desktop) MovePointer(p geometry.Point) error {
	return d.record(Action{Kind: ActionMove, Point: p})
}

// Button implements platform.Synthesizer.
func (d *Desktop) Button(p geometry.Point, b mouse.Button, down bool) error {
	return d.record(Action{Kind: ActionButton, Point: p, Button: b, Down: down})
}

// Scroll implements platform.Synthesizer.
func (d *Desktop) Scroll(p geometry.Point, dx, dy int) error {
	return d.record(Action{Kind: ActionScroll, Point: p, DX: dx, DY: dy})
}

// Key implements platform.Synthesizer.
func (d *Desktop) Key(code key.Code, down bool) error {
	return d.record(Action{Kind: ActionKey, Code: code, Down: down})
}
