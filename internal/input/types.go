package input

import (
	"fmt"
	"math"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
)

// Kind identifies the concrete event type.
type Kind uint8

const (
	// KindPointerMove is a PointerMove event.
	KindPointerMove Kind = iota + 1
	// KindPointerButton is a PointerButton event.
	KindPointerButton
	// KindScroll is a Scroll event.
	KindScroll
	// KindKey is a Key event.
	KindKey
)

// String returns the persisted name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPointerMove:
		return "pointer_move"
	case KindPointerButton:
		return "pointer_button"
	case KindScroll:
		return "scroll"
	case KindKey:
		return "key"
	default:
		return "unknown"
	}
}

// ParseKind parses a persisted kind name.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "pointer_move":
		return KindPointerMove, nil
	case "pointer_button":
		return KindPointerButton, nil
	case "scroll":
		return KindScroll, nil
	case "key":
		return KindKey, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// IsPointer returns true for kinds that carry a position.
func (k Kind) IsPointer() bool {
	return k == KindPointerMove || k == KindPointerButton || k == KindScroll
}

// Flags are non-fatal annotations attached at capture time.
type Flags uint8

const (
	// FlagGeometryStale marks an event whose relative position was computed
	// from a geometry snapshot older than the tracker's staleness bound.
	FlagGeometryStale Flags = 1 << iota
)

// Has returns true if f contains flag.
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// Event is a recorded input event. Only the types in this package
// implement it.
type Event interface {
	// Kind returns the concrete kind.
	Kind() Kind
	// Offset returns the time since the start of the recording session.
	Offset() time.Duration
	// Flags returns capture-time annotations.
	Flags() Flags
	isEvent()
}

// Header holds the fields every event carries.
type Header struct {
	At    time.Duration
	Notes Flags
}

// Offset returns the time since the start of the recording session.
func (h Header) Offset() time.Duration { return h.At }

// Flags returns capture-time annotations.
func (h Header) Flags() Flags { return h.Notes }

// PointerMove records the pointer moving to Pos.
type PointerMove struct {
	Header
	Pos geometry.RelPoint
}

// Kind implements Event.
func (PointerMove) Kind() Kind { return KindPointerMove }
func (PointerMove) isEvent()   {}

// PointerButton records a mouse button transition at Pos.
type PointerButton struct {
	Header
	Pos    geometry.RelPoint
	Button mouse.Button
	Down   bool
}

// Kind implements Event.
func (PointerButton) Kind() Kind { return KindPointerButton }
func (PointerButton) isEvent()   {}

// Scroll records wheel movement at Pos, in notches. Positive DeltaY scrolls
// up, positive DeltaX scrolls right.
type Scroll struct {
	Header
	Pos    geometry.RelPoint
	DeltaX int
	DeltaY int
}

// Kind implements Event.
func (Scroll) Kind() Kind { return KindScroll }
func (Scroll) isEvent()   {}

// Key records a key transition.
type Key struct {
	Header
	Code      key.Code
	Modifiers key.Modifier
	Down      bool
}

// Kind implements Event.
func (Key) Kind() Kind { return KindKey }
func (Key) isEvent()   {}

// Position returns the relative position of a pointer event.
// The second result is false for key events.
func Position(e Event) (geometry.RelPoint, bool) {
	switch ev := e.(type) {
	case PointerMove:
		return ev.Pos, true
	case PointerButton:
		return ev.Pos, true
	case Scroll:
		return ev.Pos, true
	case Key:
		return geometry.RelPoint{}, false
	}
	return geometry.RelPoint{}, false
}

// Validate checks that an event is well formed: a known kind, a
// non-negative offset, a real button for button events and a non-zero key
// code for key events.
func Validate(e Event) error {
	if e == nil {
		return fmt.Errorf("nil event")
	}
	if e.Offset() < 0 {
		return fmt.Errorf("negative offset %v", e.Offset())
	}
	if pos, ok := Position(e); ok && !finite(pos) {
		return fmt.Errorf("non-finite position (%v,%v)", pos.X, pos.Y)
	}
	switch ev := e.(type) {
	case PointerMove:
		return nil
	case PointerButton:
		if !ev.Button.Valid() {
			return fmt.Errorf("invalid button %d", ev.Button)
		}
		return nil
	case Scroll:
		if ev.DeltaX == 0 && ev.DeltaY == 0 {
			return fmt.Errorf("scroll without delta")
		}
		return nil
	case Key:
		if ev.Code == key.CodeNone {
			return fmt.Errorf("key event without code")
		}
		return nil
	}
	return fmt.Errorf("unknown event type %T", e)
}

// Describe returns a short human-readable description for logs.
func Describe(e Event) string {
	switch ev := e.(type) {
	case PointerMove:
		return fmt.Sprintf("move (%.3f,%.3f)", ev.Pos.X, ev.Pos.Y)
	case PointerButton:
		return fmt.Sprintf("%s %s (%.3f,%.3f)", ev.Button, upDown(ev.Down), ev.Pos.X, ev.Pos.Y)
	case Scroll:
		return fmt.Sprintf("scroll %d,%d (%.3f,%.3f)", ev.DeltaX, ev.DeltaY, ev.Pos.X, ev.Pos.Y)
	case Key:
		name := ev.Code.String()
		if !ev.Modifiers.IsEmpty() {
			name = ev.Modifiers.String() + "+" + name
		}
		return fmt.Sprintf("key %s %s", name, upDown(ev.Down))
	}
	return "unknown"
}

func finite(p geometry.RelPoint) bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

func upDown(down bool) string {
	if down {
		return "down"
	}
	return "up"
}
