package window

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/platform"
	"github.com/dshills/winmacro/internal/platform/sim"
)

func rect(x, y, w, h int) geometry.Rect {
	return geometry.RectFromOriginSize(geometry.Point{X: x, Y: y}, geometry.Size{Width: w, Height: h})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLocate(t *testing.T) {
	d := sim.New()
	small := d.AddWindow("PokeMMO launcher", rect(0, 0, 200, 100))
	big := d.AddWindow("PokeMMO", rect(100, 100, 800, 600))
	d.AddWindow("PokeMMO Overlay", rect(0, 0, 1920, 1080))
	_ = small

	tr := New(d, WithExcludeTitles("overlay"))
	h, err := tr.Locate(context.Background(), "pokemmo")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if h != big {
		t.Errorf("Locate() = %v, want the largest non-excluded match %v", h, big)
	}

	snap, err := tr.Geometry(h)
	if err != nil {
		t.Fatalf("Geometry() error = %v", err)
	}
	if snap.Origin != (geometry.Point{X: 100, Y: 100}) || snap.Size != (geometry.Size{Width: 800, Height: 600}) {
		t.Errorf("Geometry() = %s", snap.Geometry)
	}
	if snap.Stale {
		t.Error("fresh snapshot reported stale")
	}
}

func TestLocateErrors(t *testing.T) {
	d := sim.New()
	d.AddWindow("Notepad", rect(0, 0, 100, 100))
	tr := New(d)

	if _, err := tr.Locate(context.Background(), "PokeMMO"); !errors.Is(err, ErrWindowNotFound) {
		t.Errorf("Locate() error = %v, want ErrWindowNotFound", err)
	}
	if _, err := tr.Locate(context.Background(), "  "); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("Locate(blank) error = %v, want ErrEmptyTitle", err)
	}
	if _, err := tr.Geometry(42); !errors.Is(err, ErrNotTracked) {
		t.Errorf("Geometry(untracked) error = %v, want ErrNotTracked", err)
	}
}

func TestPollUpdatesAndNotifies(t *testing.T) {
	d := sim.New()
	h := d.AddWindow("Game", rect(0, 0, 400, 300))
	tr := New(d)
	if _, err := tr.Locate(context.Background(), "game"); err != nil {
		t.Fatal(err)
	}

	var changes []geometry.Geometry
	tr.OnChange(func(_ platform.Handle, _, cur geometry.Geometry) {
		changes = append(changes, cur)
	})

	tr.Poll()
	if len(changes) != 0 {
		t.Fatalf("unchanged poll notified %d times", len(changes))
	}

	_ = d.SetBounds(h, rect(50, 60, 640, 480))
	tr.Poll()
	if len(changes) != 1 {
		t.Fatalf("got %d change notifications, want 1", len(changes))
	}
	snap, _ := tr.Geometry(h)
	if snap.Origin != (geometry.Point{X: 50, Y: 60}) || snap.Size.Width != 640 {
		t.Errorf("Geometry() after move = %s", snap.Geometry)
	}
}

func TestStaleness(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	d := sim.New()
	h := d.AddWindow("Game", rect(0, 0, 400, 300))
	tr := New(d, WithClock(clock.Now), WithPollInterval(100*time.Millisecond))
	if _, err := tr.Locate(context.Background(), "game"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(150 * time.Millisecond)
	if snap, _ := tr.Geometry(h); snap.Stale {
		t.Error("snapshot stale after 1.5 intervals")
	}
	clock.Advance(100 * time.Millisecond)
	if snap, _ := tr.Geometry(h); !snap.Stale {
		t.Error("snapshot not stale after 2.5 intervals")
	}
	tr.Poll()
	if snap, _ := tr.Geometry(h); snap.Stale {
		t.Error("snapshot still stale after a poll")
	}
}

func TestWindowClosed(t *testing.T) {
	d := sim.New()
	h := d.AddWindow("Game", rect(0, 0, 400, 300))
	tr := New(d)
	if _, err := tr.Locate(context.Background(), "game"); err != nil {
		t.Fatal(err)
	}
	closed := tr.Closed()

	d.Close(h)
	tr.Poll()

	select {
	case <-closed:
	default:
		t.Fatal("Closed() channel not closed after window loss")
	}
	if _, err := tr.Geometry(h); !errors.Is(err, ErrWindowClosed) {
		t.Errorf("Geometry() error = %v, want ErrWindowClosed", err)
	}
	if tr.Tracking() {
		t.Error("Tracking() = true after loss")
	}

	// A second poll must not panic on the already closed channel.
	tr.Poll()

	h2 := d.AddWindow("Game", rect(0, 0, 400, 300))
	got, err := tr.Locate(context.Background(), "game")
	if err != nil || got != h2 {
		t.Fatalf("re-Locate() = %v, %v; want %v", got, err, h2)
	}
	if _, err := tr.Geometry(h2); err != nil {
		t.Errorf("Geometry() after re-locate error = %v", err)
	}
}

func TestForeground(t *testing.T) {
	d := sim.New()
	h := d.AddWindow("Game", rect(0, 0, 400, 300))
	tr := New(d)

	if !tr.IsForeground(h) {
		t.Error("new window not foreground")
	}
	d.Focus(0)
	if tr.IsForeground(h) {
		t.Error("IsForeground() = true with focus on desktop")
	}
}

func TestStartStop(t *testing.T) {
	d := sim.New()
	h := d.AddWindow("Game", rect(0, 0, 400, 300))
	tr := New(d, WithPollInterval(5*time.Millisecond))
	if _, err := tr.Locate(context.Background(), "game"); err != nil {
		t.Fatal(err)
	}

	moved := make(chan struct{}, 1)
	tr.OnChange(func(platform.Handle, geometry.Geometry, geometry.Geometry) {
		select {
		case moved <- struct{}{}:
		default:
		}
	})

	tr.Start(context.Background())
	tr.Start(context.Background())
	defer tr.Stop()

	_ = d.SetBounds(h, rect(10, 10, 400, 300))
	select {
	case <-moved:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not observe the move")
	}

	tr.Stop()
	tr.Stop()
}

func TestList(t *testing.T) {
	d := sim.New()
	d.AddWindow("small", rect(0, 0, 10, 10))
	d.AddWindow("big", rect(0, 0, 100, 100))
	d.AddWindow("", rect(0, 0, 500, 500))

	wins, err := New(d).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(wins) != 2 || wins[0].Title != "big" {
		t.Errorf("List() = %+v, want [big small]", wins)
	}
}

// gatedBounds blocks Bounds for one handle until released.
type gatedBounds struct {
	*sim.Desktop
	gate    platform.Handle
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBounds) Bounds(h platform.Handle) (geometry.Rect, error) {
	if h == g.gate {
		close(g.entered)
		<-g.release
	}
	return g.Desktop.Bounds(h)
}

func TestPollDuringRetarget(t *testing.T) {
	d := sim.New()
	a := d.AddWindow("Game A", rect(0, 0, 100, 100))
	b := d.AddWindow("Other B", rect(500, 500, 800, 600))
	ws := &gatedBounds{Desktop: d, gate: a, entered: make(chan struct{}), release: make(chan struct{})}

	tr := New(ws)
	if _, err := tr.Locate(context.Background(), "game a"); err != nil {
		t.Fatalf("Locate(a) error = %v", err)
	}

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		tr.Poll()
	}()
	<-ws.entered

	if h, err := tr.Locate(context.Background(), "other b"); err != nil || h != b {
		t.Fatalf("Locate(b) = %v, %v", h, err)
	}
	close(ws.release)
	<-polled

	snap, err := tr.Geometry(b)
	if err != nil {
		t.Fatalf("Geometry(b) error = %v", err)
	}
	want := geometry.Size{Width: 800, Height: 600}
	if snap.Origin != (geometry.Point{X: 500, Y: 500}) || snap.Size != want {
		t.Errorf("Geometry(b) = %s, want 800x600 at (500,500)", snap.Geometry)
	}
	if _, err := tr.Geometry(a); !errors.Is(err, ErrNotTracked) {
		t.Errorf("Geometry(a) error = %v, want ErrNotTracked", err)
	}
}
