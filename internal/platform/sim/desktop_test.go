package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
	"github.com/dshills/winmacro/internal/platform"
)

func rect(x, y, w, h int) geometry.Rect {
	return geometry.RectFromOriginSize(geometry.Point{X: x, Y: y}, geometry.Size{Width: w, Height: h})
}

func TestDesktopWindows(t *testing.T) {
	d := New()
	game := d.AddWindow("PokeMMO", rect(100, 100, 800, 600))
	hidden := d.AddWindow("Hidden", rect(0, 0, 10, 10))
	d.SetVisible(hidden, false)

	wins, err := d.Windows(context.Background())
	if err != nil {
		t.Fatalf("Windows() error = %v", err)
	}
	if len(wins) != 1 || wins[0].Handle != game {
		t.Fatalf("Windows() = %+v, want only the visible window", wins)
	}

	if err := d.SetBounds(game, rect(10, 20, 400, 300)); err != nil {
		t.Fatalf("SetBounds() error = %v", err)
	}
	b, err := d.Bounds(game)
	if err != nil {
		t.Fatalf("Bounds() error = %v", err)
	}
	if b != rect(10, 20, 400, 300) {
		t.Errorf("Bounds() = %+v", b)
	}

	d.Close(game)
	if _, err := d.Bounds(game); !errors.Is(err, platform.ErrNoWindow) {
		t.Errorf("Bounds() after close error = %v, want ErrNoWindow", err)
	}
	if fg, _ := d.Foreground(); fg == game {
		t.Error("closed window still has focus")
	}
}

func TestDesktopHook(t *testing.T) {
	d := New()
	var got []platform.RawEvent
	stop, err := d.Install(func(ev platform.RawEvent) { got = append(got, ev) })
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if _, err := d.Install(func(platform.RawEvent) {}); !errors.Is(err, platform.ErrHookInstalled) {
		t.Errorf("second Install() error = %v, want ErrHookInstalled", err)
	}

	d.Emit(platform.RawEvent{Kind: input.KindPointerMove, Point: geometry.Point{X: 5, Y: 6}})
	d.Tap(key.CodeA)

	if len(got) != 3 {
		t.Fatalf("hook saw %d events, want 3", len(got))
	}
	if got[0].Time.IsZero() {
		t.Error("Emit did not stamp the event time")
	}
	if d.Cursor() != (geometry.Point{X: 5, Y: 6}) {
		t.Errorf("Cursor() = %v", d.Cursor())
	}

	if err := stop(); err != nil {
		t.Fatalf("stop() error = %v", err)
	}
	if d.Emit(platform.RawEvent{Kind: input.KindKey, Code: key.CodeA}) {
		t.Error("Emit delivered after the hook was removed")
	}
}

func TestDesktopKeyWatchers(t *testing.T) {
	d := New()
	var a, b int
	stopA, _ := d.WatchKeys(func(platform.KeyStroke) { a++ })
	_, _ = d.WatchKeys(func(platform.KeyStroke) { b++ })

	d.Tap(key.CodeEscape)
	_ = stopA()
	d.Tap(key.CodeEscape)

	if a != 2 || b != 4 {
		t.Errorf("watchers saw a=%d b=%d, want 2 and 4", a, b)
	}
}

func TestDesktopSynthesizer(t *testing.T) {
	d := New()
	p := geometry.Point{X: 40, Y: 50}

	_ = d.MovePointer(p)
	_ = d.Button(p, mouse.ButtonLeft, true)
	_ = d.Scroll(p, 0, -2)
	_ = d.Key(key.CodeF1, true)

	acts := d.Actions()
	want := []ActionKind{ActionMove, ActionButton, ActionScroll, ActionKey}
	if len(acts) != len(want) {
		t.Fatalf("Actions() = %v", acts)
	}
	for i, k := range want {
		if acts[i].Kind != k {
			t.Errorf("action %d = %s, want %s", i, acts[i].Kind, k)
		}
	}
	if d.Cursor() != p {
		t.Errorf("Cursor() = %v, want %v", d.Cursor(), p)
	}

	boom := errors.New("boom")
	d.FailNextAction(boom)
	if err := d.Key(key.CodeA, true); !errors.Is(err, boom) {
		t.Errorf("Key() error = %v, want injected failure", err)
	}
	if err := d.Key(key.CodeA, true); err != nil {
		t.Errorf("Key() after failure error = %v", err)
	}
}
