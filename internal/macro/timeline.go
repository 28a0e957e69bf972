package macro

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
)

// Category groups macros in the library.
type Category string

// Macro categories.
const (
	CategoryGeneral   Category = "General"
	CategoryMovement  Category = "Movement"
	CategoryBattles   Category = "Battles"
	CategoryInventory Category = "Inventory"
	CategoryTrading   Category = "Trading"
	CategoryCustom    Category = "Custom"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryMovement,
		CategoryBattles,
		CategoryInventory,
		CategoryTrading,
		CategoryCustom,
	}
}

// ParseCategory matches a category name case-insensitively. An empty
// name maps to CategoryCustom.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryCustom, nil
	}
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Metadata describes a timeline.
type Metadata struct {
	Name        string
	Category    Category
	Description string
	Hotkey      string
	CreatedAt   time.Time
	// ReferenceSize is the window size when recording began. It is
	// informational; playback always uses live geometry.
	ReferenceSize geometry.Size
}

// DiagnosticCode classifies a diagnostic.
type DiagnosticCode string

// Diagnostic codes.
const (
	DiagCaptureOverrun     DiagnosticCode = "capture_overrun"
	DiagCaptureHookFailure DiagnosticCode = "capture_hook_failure"
	DiagWindowLost         DiagnosticCode = "window_lost"
	DiagMaxDuration        DiagnosticCode = "max_duration"
	DiagGeometryStale      DiagnosticCode = "geometry_stale"
	DiagRecordingError     DiagnosticCode = "recording_error"

	// DiagGeometryUnavailable counts pointer events dropped because no
	// usable geometry was ever seen.
	DiagGeometryUnavailable DiagnosticCode = "geometry_unavailable"
)

// Diagnostic is a note about something that went wrong while recording.
type Diagnostic struct {
	Code    DiagnosticCode `json:"code" yaml:"code" msgpack:"code"`
	Message string         `json:"message" yaml:"message" msgpack:"message"`
	// At is the recording offset when the condition was noticed.
	At time.Duration `json:"at" yaml:"at" msgpack:"at"`
	// Count aggregates repeated occurrences, such as dropped events.
	Count uint64 `json:"count,omitempty" yaml:"count,omitempty" msgpack:"count,omitempty"`
}

// String renders the diagnostic.
func (d Diagnostic) String() string {
	if d.Count > 0 {
		return fmt.Sprintf("%s (%d) at %s: %s", d.Code, d.Count, d.At, d.Message)
	}
	return fmt.Sprintf("%s at %s: %s", d.Code, d.At, d.Message)
}

// Timeline is an ordered, append-only list of events. It is safe for
// concurrent use; once frozen it never changes.
type Timeline struct {
	mu     sync.RWMutex
	meta   Metadata
	events []input.Event
	diags  []Diagnostic
	frozen bool
}

// NewTimeline creates an empty timeline.
func NewTimeline(meta Metadata) *Timeline {
	if meta.Category == "" {
		meta.Category = CategoryCustom
	}
	return &Timeline{meta: meta}
}

// NewFrozenTimeline builds a finished timeline from events, validating
// them first.
func NewFrozenTimeline(meta Metadata, events []input.Event, diags []Diagnostic) (*Timeline, error) {
	if err := ValidateEvents(events); err != nil {
		return nil, err
	}
	tl := NewTimeline(meta)
	tl.events = append([]input.Event(nil), events...)
	tl.diags = append([]Diagnostic(nil), diags...)
	tl.frozen = true
	return tl, nil
}

// Append adds an event. The event's offset must not precede the last
// one.
func (t *Timeline) Append(e input.Event) error {
	if err := input.Validate(e); err != nil {
		return &ValidationError{Index: t.Len(), Reason: err.Error()}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return ErrFrozen
	}
	if n := len(t.events); n > 0 && e.Offset() < t.events[n-1].Offset() {
		return &ValidationError{Index: n, Reason: "offset precedes previous event"}
	}
	t.events = append(t.events, e)
	return nil
}

// AddDiagnostic records a diagnostic. Diagnostics may be added after the
// timeline is frozen.
func (t *Timeline) AddDiagnostic(d Diagnostic) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.diags = append(t.diags, d)
}

// Freeze ends appends.
func (t *Timeline) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen = true
}

// Frozen reports whether appends have ended.
func (t *Timeline) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Metadata returns the timeline's metadata.
func (t *Timeline) Metadata() Metadata {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.meta
}

// SetMetadata replaces the metadata. Events are unaffected.
func (t *Timeline) SetMetadata(meta Metadata) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if meta.Category == "" {
		meta.Category = CategoryCustom
	}
	t.meta = meta
}

// Events returns a copy of the events.
func (t *Timeline) Events() []input.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]input.Event, len(t.events))
	copy(out, t.events)
	return out
}

// Diagnostics returns a copy of the diagnostics.
func (t *Timeline) Diagnostics() []Diagnostic {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Diagnostic, len(t.diags))
	copy(out, t.diags)
	return out
}

// Len returns the number of events.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.events)
}

// Duration returns the offset of the last event.
func (t *Timeline) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.events) == 0 {
		return 0
	}
	return t.events[len(t.events)-1].Offset()
}

// Clone returns an unfrozen deep copy with new metadata.
func (t *Timeline) Clone(meta Metadata) *Timeline {
	c := NewTimeline(meta)
	c.events = t.Events()
	c.diags = t.Diagnostics()
	return c
}

// Validate checks the timeline's events.
func (t *Timeline) Validate() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return ValidateEvents(t.events)
}

// ValidateEvents checks that every event is well formed and that offsets
// never decrease.
func ValidateEvents(events []input.Event) error {
	var prev time.Duration
	for i, e := range events {
		if err := input.Validate(e); err != nil {
			return &ValidationError{Index: i, Reason: err.Error()}
		}
		if e.Offset() < prev {
			return &ValidationError{Index: i, Reason: "offset precedes previous event"}
		}
		prev = e.Offset()
	}
	return nil
}
