package macro

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
)

func sampleTimeline(t *testing.T) *Timeline {
	t.Helper()
	meta := Metadata{
		Name:          "heal party",
		Category:      CategoryBattles,
		Description:   "opens the bag",
		Hotkey:        "F5",
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ReferenceSize: geometry.Size{Width: 800, Height: 600},
	}
	events := []input.Event{
		input.PointerMove{Header: input.Header{At: 0}, Pos: geometry.RelPoint{X: -0.25, Y: 1.5}},
		input.PointerButton{Header: input.Header{At: 15 * time.Millisecond, Notes: input.FlagGeometryStale}, Pos: geometry.RelPoint{X: 0.5, Y: 0.5}, Button: mouse.ButtonRight, Down: true},
		input.Scroll{Header: input.Header{At: 30 * time.Millisecond}, Pos: geometry.RelPoint{X: 0.1, Y: 0.2}, DeltaY: -3, DeltaX: 1},
		input.Key{Header: input.Header{At: 45 * time.Millisecond}, Code: key.Code('S'), Modifiers: key.ModCtrl | key.ModShift, Down: false},
	}
	tl, err := NewFrozenTimeline(meta, events, []Diagnostic{{Code: DiagCaptureOverrun, Count: 2}})
	if err != nil {
		t.Fatal(err)
	}
	return tl
}

func TestRecordRoundTrip(t *testing.T) {
	tl := sampleTimeline(t)
	data, err := MarshalRecord(tl)
	if err != nil {
		t.Fatalf("MarshalRecord() error = %v", err)
	}

	got, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("UnmarshalRecord() error = %v", err)
	}
	if got.Metadata() != tl.Metadata() {
		t.Errorf("metadata = %+v, want %+v", got.Metadata(), tl.Metadata())
	}
	want, have := tl.Events(), got.Events()
	if len(have) != len(want) {
		t.Fatalf("decoded %d events, want %d", len(have), len(want))
	}
	for i := range want {
		if have[i] != want[i] {
			t.Errorf("event %d = %#v, want %#v", i, have[i], want[i])
		}
	}
	if d := got.Diagnostics(); len(d) != 1 || d[0].Count != 2 {
		t.Errorf("Diagnostics() = %v", d)
	}
}

func TestRecordFields(t *testing.T) {
	data, err := MarshalRecord(sampleTimeline(t))
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}

	for _, field := range []string{"name", "category", "description", "hotkey", "createdAt", "referenceWindowSize", "duration", "eventCount", "events"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("record missing %q", field)
		}
	}
	if raw["eventCount"].(float64) != 4 || raw["duration"].(float64) != 0.045 {
		t.Errorf("eventCount = %v, duration = %v", raw["eventCount"], raw["duration"])
	}

	events := raw["events"].([]any)
	move := events[0].(map[string]any)
	if move["kind"] != "pointer_move" || move["relativeX"].(float64) != -0.25 {
		t.Errorf("move record = %v", move)
	}
	if _, ok := move["keyCode"]; ok {
		t.Error("move record carries keyCode")
	}
	btn := events[1].(map[string]any)
	if btn["button"] != "right" || btn["geometryStale"] != true || btn["offsetMs"].(float64) != 15 {
		t.Errorf("button record = %v", btn)
	}
	k := events[3].(map[string]any)
	if k["keyCode"].(float64) != 0x53 || k["modifiers"] != "ctrl+shift" {
		t.Errorf("key record = %v", k)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"name":`},
		{"missing name", `{"category":"General","events":[]}`},
		{"unknown category", `{"name":"x","category":"Fishing","events":[]}`},
		{"unknown kind", `{"name":"x","events":[{"offsetMs":0,"kind":"teleport"}]}`},
		{"missing coordinates", `{"name":"x","events":[{"offsetMs":0,"kind":"pointer_move","relativeX":0.5}]}`},
		{"decreasing offsets", `{"name":"x","events":[{"offsetMs":10,"kind":"key","keyCode":65,"down":true},{"offsetMs":5,"kind":"key","keyCode":65,"down":false}]}`},
		{"bad button", `{"name":"x","events":[{"offsetMs":0,"kind":"pointer_button","relativeX":0,"relativeY":0,"button":"thumb","down":true}]}`},
		{"button without state", `{"name":"x","events":[{"offsetMs":0,"kind":"pointer_button","relativeX":0,"relativeY":0,"button":"left"}]}`},
		{"key without code", `{"name":"x","events":[{"offsetMs":0,"kind":"key","down":true}]}`},
		{"empty scroll", `{"name":"x","events":[{"offsetMs":0,"kind":"scroll","relativeX":0,"relativeY":0}]}`},
		{"negative offset", `{"name":"x","events":[{"offsetMs":-1,"kind":"key","keyCode":65,"down":true}]}`},
		{"bad modifier", `{"name":"x","events":[{"offsetMs":0,"kind":"key","keyCode":65,"down":true,"modifiers":"hyper"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, err := UnmarshalRecord([]byte(tt.json))
			if !errors.Is(err, ErrInvalidTimeline) {
				t.Errorf("UnmarshalRecord() error = %v, want ErrInvalidTimeline", err)
			}
			if tl != nil {
				t.Error("invalid record produced a partial timeline")
			}
		})
	}
}

func TestDecodeDefaultsCategory(t *testing.T) {
	tl, err := UnmarshalRecord([]byte(`{"name":"x","events":[]}`))
	if err != nil {
		t.Fatal(err)
	}
	if tl.Metadata().Category != CategoryCustom {
		t.Errorf("Category = %q, want Custom", tl.Metadata().Category)
	}
	if !tl.Frozen() {
		t.Error("loaded timeline is not frozen")
	}
}

func TestTimelineMarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleTimeline(t))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"eventCount":4`) {
		t.Errorf("json.Marshal(timeline) = %s", data)
	}
}
