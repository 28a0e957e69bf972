// Package input defines the recorded input event variant.
//
// An Event is one of four concrete kinds:
//
//   - PointerMove: the pointer moved to a window-relative position
//   - PointerButton: a mouse button went down or up at a position
//   - Scroll: the wheel turned at a position
//   - Key: a key went down or up, with the modifiers held at the time
//
// The set is closed: only this package implements Event, so a type switch
// over the four kinds is exhaustive. Every event carries its offset from the
// start of the recording session; pointer kinds carry an unclamped relative
// position. Events are values and are never mutated after they are appended
// to a timeline.
package input
