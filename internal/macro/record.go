package macro

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
)

// SizeRecord is the persisted window size.
type SizeRecord struct {
	Width  int `json:"width" yaml:"width" msgpack:"width"`
	Height int `json:"height" yaml:"height" msgpack:"height"`
}

// EventRecord is the persisted form of one event. Optional fields are
// present only for the kinds that use them.
type EventRecord struct {
	OffsetMs      int64    `json:"offsetMs" yaml:"offsetMs" msgpack:"o"`
	Kind          string   `json:"kind" yaml:"kind" msgpack:"k"`
	RelativeX     *float64 `json:"relativeX,omitempty" yaml:"relativeX,omitempty" msgpack:"x,omitempty"`
	RelativeY     *float64 `json:"relativeY,omitempty" yaml:"relativeY,omitempty" msgpack:"y,omitempty"`
	Button        string   `json:"button,omitempty" yaml:"button,omitempty" msgpack:"b,omitempty"`
	ScrollDelta   *int     `json:"scrollDelta,omitempty" yaml:"scrollDelta,omitempty" msgpack:"s,omitempty"`
	ScrollDeltaX  *int     `json:"scrollDeltaX,omitempty" yaml:"scrollDeltaX,omitempty" msgpack:"sx,omitempty"`
	KeyCode       *uint16  `json:"keyCode,omitempty" yaml:"keyCode,omitempty" msgpack:"c,omitempty"`
	Modifiers     string   `json:"modifiers,omitempty" yaml:"modifiers,omitempty" msgpack:"m,omitempty"`
	Down          *bool    `json:"down,omitempty" yaml:"down,omitempty" msgpack:"d,omitempty"`
	GeometryStale bool     `json:"geometryStale,omitempty" yaml:"geometryStale,omitempty" msgpack:"g,omitempty"`
}

// Record is the persisted form of a timeline.
type Record struct {
	Name                string        `json:"name" yaml:"name" msgpack:"name"`
	Category            string        `json:"category" yaml:"category" msgpack:"category"`
	Description         string        `json:"description" yaml:"description" msgpack:"description"`
	Hotkey              string        `json:"hotkey" yaml:"hotkey" msgpack:"hotkey"`
	CreatedAt           time.Time     `json:"createdAt" yaml:"createdAt" msgpack:"createdAt"`
	ReferenceWindowSize SizeRecord    `json:"referenceWindowSize" yaml:"referenceWindowSize" msgpack:"referenceWindowSize"`
	Duration            float64       `json:"duration" yaml:"duration" msgpack:"duration"`
	EventCount          int           `json:"eventCount" yaml:"eventCount" msgpack:"eventCount"`
	Events              []EventRecord `json:"events" yaml:"events" msgpack:"events"`
	Diagnostics         []Diagnostic  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`
}

// Info returns the record's metadata.
func (r *Record) Info() Metadata {
	cat, err := ParseCategory(r.Category)
	if err != nil {
		cat = CategoryCustom
	}
	return Metadata{
		Name:          r.Name,
		Category:      cat,
		Description:   r.Description,
		Hotkey:        r.Hotkey,
		CreatedAt:     r.CreatedAt,
		ReferenceSize: geometry.Size{Width: r.ReferenceWindowSize.Width, Height: r.ReferenceWindowSize.Height},
	}
}

// Encode converts a timeline to its record.
func Encode(tl *Timeline) *Record {
	meta := tl.Metadata()
	events := tl.Events()

	rec := &Record{
		Name:        meta.Name,
		Category:    string(meta.Category),
		Description: meta.Description,
		Hotkey:      meta.Hotkey,
		CreatedAt:   meta.CreatedAt,
		ReferenceWindowSize: SizeRecord{
			Width:  meta.ReferenceSize.Width,
			Height: meta.ReferenceSize.Height,
		},
		Duration:    tl.Duration().Seconds(),
		EventCount:  len(events),
		Events:      make([]EventRecord, 0, len(events)),
		Diagnostics: tl.Diagnostics(),
	}
	for _, e := range events {
		rec.Events = append(rec.Events, encodeEvent(e))
	}
	return rec
}

func encodeEvent(e input.Event) EventRecord {
	er := EventRecord{
		OffsetMs:      e.Offset().Milliseconds(),
		Kind:          e.Kind().String(),
		GeometryStale: e.Flags().Has(input.FlagGeometryStale),
	}
	if pos, ok := input.Position(e); ok {
		x, y := pos.X, pos.Y
		er.RelativeX, er.RelativeY = &x, &y
	}
	switch ev := e.(type) {
	case input.PointerButton:
		down := ev.Down
		er.Button = ev.Button.String()
		er.Down = &down
	case input.Scroll:
		dy, dx := ev.DeltaY, ev.DeltaX
		er.ScrollDelta = &dy
		if dx != 0 {
			er.ScrollDeltaX = &dx
		}
	case input.Key:
		code, down := uint16(ev.Code), ev.Down
		er.KeyCode = &code
		er.Down = &down
		if !ev.Modifiers.IsEmpty() {
			er.Modifiers = ev.Modifiers.String()
		}
	}
	return er
}

// Decode validates a record and converts it to a frozen timeline. Any
// invalid event rejects the whole record with ErrInvalidTimeline.
func Decode(rec *Record) (*Timeline, error) {
	if rec == nil {
		return nil, &ValidationError{Index: -1, Reason: "empty record"}
	}
	cat, err := ParseCategory(rec.Category)
	if err != nil {
		return nil, &ValidationError{Index: -1, Reason: err.Error()}
	}
	if strings.TrimSpace(rec.Name) == "" {
		return nil, &ValidationError{Index: -1, Reason: "missing name"}
	}

	events := make([]input.Event, 0, len(rec.Events))
	for i, er := range rec.Events {
		ev, err := decodeEvent(er)
		if err != nil {
			return nil, &ValidationError{Index: i, Reason: err.Error()}
		}
		events = append(events, ev)
	}

	meta := rec.Info()
	meta.Category = cat
	return NewFrozenTimeline(meta, events, rec.Diagnostics)
}

func decodeEvent(er EventRecord) (input.Event, error) {
	kind, err := input.ParseKind(er.Kind)
	if err != nil {
		return nil, err
	}
	if er.OffsetMs < 0 {
		return nil, fmt.Errorf("negative offset %d", er.OffsetMs)
	}
	hdr := input.Header{At: time.Duration(er.OffsetMs) * time.Millisecond}
	if er.GeometryStale {
		hdr.Notes |= input.FlagGeometryStale
	}

	var pos geometry.RelPoint
	if kind.IsPointer() {
		if er.RelativeX == nil || er.RelativeY == nil {
			return nil, fmt.Errorf("%s event without coordinates", kind)
		}
		pos = geometry.RelPoint{X: *er.RelativeX, Y: *er.RelativeY}
		if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) {
			return nil, fmt.Errorf("non-finite coordinates")
		}
	}

	var ev input.Event
	switch kind {
	case input.KindPointerMove:
		ev = input.PointerMove{Header: hdr, Pos: pos}

	case input.KindPointerButton:
		b, err := mouse.ParseButton(er.Button)
		if err != nil {
			return nil, err
		}
		if er.Down == nil {
			return nil, fmt.Errorf("button event without down state")
		}
		ev = input.PointerButton{Header: hdr, Pos: pos, Button: b, Down: *er.Down}

	case input.KindScroll:
		s := input.Scroll{Header: hdr, Pos: pos}
		if er.ScrollDelta != nil {
			s.DeltaY = *er.ScrollDelta
		}
		if er.ScrollDeltaX != nil {
			s.DeltaX = *er.ScrollDeltaX
		}
		ev = s

	case input.KindKey:
		if er.KeyCode == nil {
			return nil, fmt.Errorf("key event without key code")
		}
		if er.Down == nil {
			return nil, fmt.Errorf("key event without down state")
		}
		var mods key.Modifier
		if er.Modifiers != "" {
			for _, part := range strings.Split(er.Modifiers, "+") {
				m := key.ModifierFromName(part)
				if m.IsEmpty() {
					return nil, fmt.Errorf("unknown modifier %q", part)
				}
				mods = mods.With(m)
			}
		}
		ev = input.Key{Header: hdr, Code: key.Code(*er.KeyCode), Modifiers: mods, Down: *er.Down}
	}

	if err := input.Validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// MarshalJSON encodes the timeline as its record.
func (t *Timeline) MarshalJSON() ([]byte, error) {
	return json.Marshal(Encode(t))
}

// MarshalRecord encodes tl as indented JSON.
func MarshalRecord(tl *Timeline) ([]byte, error) {
	data, err := json.MarshalIndent(Encode(tl), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal timeline: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes and validates JSON produced by MarshalRecord.
func UnmarshalRecord(data []byte) (*Timeline, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return Decode(&rec)
}
