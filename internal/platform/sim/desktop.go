package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
	"github.com/dshills/winmacro/internal/platform"
)

// DefaultScreen is the virtual desktop used by New.
var DefaultScreen = geometry.RectFromOriginSize(geometry.Point{}, geometry.Size{Width: 1920, Height: 1080})

// ActionKind identifies a synthesized action.
type ActionKind uint8

// Synthesized action kinds.
const (
	ActionMove ActionKind = iota + 1
	ActionButton
	ActionScroll
	ActionKey
)

// String returns the action name.
func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionButton:
		return "button"
	case ActionScroll:
		return "scroll"
	case ActionKey:
		return "key"
	default:
		return fmt.Sprintf("action(%d)", k)
	}
}

// Action is one synthesized input recorded by the desktop.
type Action struct {
	Kind   ActionKind
	At     time.Time
	Point  geometry.Point
	Button mouse.Button
	Down   bool
	DX, DY int
	Code   key.Code
}

// String renders the action for test failure messages.
func (a Action) String() string {
	switch a.Kind {
	case ActionMove:
		return fmt.Sprintf("move %d,%d", a.Point.X, a.Point.Y)
	case ActionButton:
		return fmt.Sprintf("button %s down=%t at %d,%d", a.Button, a.Down, a.Point.X, a.Point.Y)
	case ActionScroll:
		return fmt.Sprintf("scroll %d,%d at %d,%d", a.DX, a.DY, a.Point.X, a.Point.Y)
	case ActionKey:
		return fmt.Sprintf("key %s down=%t", a.Code, a.Down)
	default:
		return a.Kind.String()
	}
}

type simWindow struct {
	info   platform.WindowInfo
	closed bool
}

// Desktop is a virtual desktop. It is safe for concurrent use.
type Desktop struct {
	mu         sync.Mutex
	screen     geometry.Rect
	windows    map[platform.Handle]*simWindow
	order      []platform.Handle
	next       platform.Handle
	foreground platform.Handle
	cursor     geometry.Point

	hook     func(platform.RawEvent)
	watchers map[int]func(platform.KeyStroke)
	watchID  int

	actions  []Action
	failNext error
	hookErr  error
	now      func() time.Time
}

// Option configures a Desktop.
type Option func(*Desktop)

// WithScreen sets the virtual desktop rectangle.
func WithScreen(r geometry.Rect) Option {
	return func(d *Desktop) { d.screen = r }
}

// WithClock sets the time source stamped on emitted events and actions.
func WithClock(now func() time.Time) Option {
	return func(d *Desktop) { d.now = now }
}

// New creates an empty desktop.
func New(opts ...Option) *Desktop {
	d := &Desktop{
		screen:   DefaultScreen,
		windows:  make(map[platform.Handle]*simWindow),
		watchers: make(map[int]func(platform.KeyStroke)),
		next:     0x1000,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Platform returns the desktop as a platform binding.
func (d *Desktop) Platform() platform.Platform {
	return platform.Platform{
		Windows: d,
		Hook:    d,
		Keys:    d,
		Synth:   d,
		Name:    "sim",
	}
}

// AddWindow creates a visible window and gives it focus.
func (d *Desktop) AddWindow(title string, bounds geometry.Rect) platform.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next += 4
	h := d.next
	d.windows[h] = &simWindow{info: platform.WindowInfo{
		Handle:  h,
		Title:   title,
		Bounds:  bounds,
		Visible: true,
	}}
	d.order = append(d.order, h)
	d.foreground = h
	return h
}

// SetBounds moves or resizes a window.
func (d *Desktop) SetBounds(h platform.Handle, bounds geometry.Rect) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.windows[h]
	if !ok || w.closed {
		return platform.ErrNoWindow
	}
	w.info.Bounds = bounds
	return nil
}

// SetVisible shows or hides a window.
func (d *Desktop) SetVisible(h platform.Handle, visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w, ok := d.windows[h]; ok {
		w.info.Visible = visible
	}
}

// Focus gives input focus to h. A zero handle focuses the desktop itself.
func (d *Desktop) Focus(h platform.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.foreground = h
}

// Close destroys a window.
func (d *Desktop) Close(h platform.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if w, ok := d.windows[h]; ok {
		w.closed = true
	}
	if d.foreground == h {
		d.foreground = 0
	}
}

// Cursor returns the virtual pointer position.
func (d *Desktop) Cursor() geometry.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

// Windows implements platform.WindowSystem.
func (d *Desktop) Windows(ctx context.Context) ([]platform.WindowInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]platform.WindowInfo, 0, len(d.order))
	for _, h := range d.order {
		w := d.windows[h]
		if w.closed || !w.info.Visible {
			continue
		}
		out = append(out, w.info)
	}
	return out, nil
}

// Bounds implements platform.WindowSystem.
func (d *Desktop) Bounds(h platform.Handle) (geometry.Rect, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.windows[h]
	if !ok || w.closed {
		return geometry.Rect{}, platform.ErrNoWindow
	}
	return w.info.Bounds, nil
}

// Foreground implements platform.WindowSystem.
func (d *Desktop) Foreground() (platform.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.foreground, nil
}

// ScreenBounds implements platform.WindowSystem.
func (d *Desktop) ScreenBounds() geometry.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screen
}

// FindWindow returns the first open window whose title contains sub.
func (d *Desktop) FindWindow(sub string) (platform.Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub = strings.ToLower(sub)
	for _, h := range d.order {
		w := d.windows[h]
		if !w.closed && strings.Contains(strings.ToLower(w.info.Title), sub) {
			return h, true
		}
	}
	return 0, false
}
