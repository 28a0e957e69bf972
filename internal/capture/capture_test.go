package capture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/platform"
	"github.com/dshills/winmacro/internal/platform/sim"
)

func move(x int) platform.RawEvent {
	return platform.RawEvent{Kind: input.KindPointerMove, Point: geometry.Point{X: x}}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		q.Push(move(i))
	}
	for i := 0; i < 3; i++ {
		ev, ok := q.TryPop()
		if !ok || ev.Point.X != i {
			t.Fatalf("TryPop() = %v, %v; want x=%d", ev.Point, ok, i)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Error("TryPop() on empty queue returned an event")
	}
}

func TestQueueDropOldest(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 5; i++ {
		q.Push(move(i))
	}
	if q.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", q.Dropped())
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}
	for _, want := range []int{2, 3, 4} {
		ev, _ := q.TryPop()
		if ev.Point.X != want {
			t.Errorf("TryPop() x = %d, want %d", ev.Point.X, want)
		}
	}
}

func TestQueuePopAfterClose(t *testing.T) {
	q := NewQueue(4)
	q.Push(move(1))
	q.Close()
	if q.Push(move(2)) {
		t.Error("Push() after Close accepted an event")
	}

	ev, ok := q.Pop(context.Background())
	if !ok || ev.Point.X != 1 {
		t.Fatalf("Pop() = %v, %v; want queued event", ev.Point, ok)
	}
	if _, ok := q.Pop(context.Background()); ok {
		t.Error("Pop() on closed empty queue returned an event")
	}
}

func TestQueuePopWaits(t *testing.T) {
	q := NewQueue(4)
	got := make(chan int, 1)
	go func() {
		ev, _ := q.Pop(context.Background())
		got <- ev.Point.X
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(move(7))
	select {
	case x := <-got:
		if x != 7 {
			t.Errorf("Pop() x = %d, want 7", x)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop() did not wake on Push")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := q.Pop(ctx); ok {
		t.Error("Pop() with canceled context returned an event")
	}
}

func TestCaptureDeliversInOrder(t *testing.T) {
	d := sim.New()
	c := New(d, Options{QueueSize: 16})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 5; i++ {
		d.Emit(move(i))
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	var xs []int
	for ev := range c.Events() {
		xs = append(xs, ev.Point.X)
	}
	if len(xs) != 5 {
		t.Fatalf("received %v, want 5 events", xs)
	}
	for i, x := range xs {
		if x != i {
			t.Errorf("event %d x = %d, want %d", i, x, i)
		}
	}
	if d.HookInstalled() {
		t.Error("hook still installed after Stop")
	}
	if st := c.Stats(); st.Received != 5 || st.Overruns != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestCaptureSingleHook(t *testing.T) {
	d := sim.New()
	a := New(d, Options{})
	b := New(sim.New(), Options{})

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(context.Background()); !errors.Is(err, ErrCaptureAlreadyActive) {
		t.Errorf("second Start() error = %v, want ErrCaptureAlreadyActive", err)
	}
	if err := b.Start(context.Background()); !errors.Is(err, ErrCaptureAlreadyActive) {
		t.Errorf("other capture Start() error = %v, want ErrCaptureAlreadyActive", err)
	}

	a.Abort()
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() after release error = %v", err)
	}
	b.Abort()

	if err := b.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop() on idle capture error = %v, want ErrNotStarted", err)
	}
}

func TestCaptureHookFailure(t *testing.T) {
	d := sim.New()
	d.FailHook(errors.New("access denied"))
	c := New(d, Options{})

	err := c.Start(context.Background())
	if !errors.Is(err, ErrCaptureHookFailure) {
		t.Fatalf("Start() error = %v, want ErrCaptureHookFailure", err)
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("error %q lost the cause", err)
	}

	d.FailHook(nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() after failure error = %v", err)
	}
	c.Abort()
}

func TestCaptureOverrun(t *testing.T) {
	d := sim.New()
	c := New(d, Options{QueueSize: 2})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Abort()

	// The forwarder may hold one event in flight, so flood well past capacity.
	for i := 0; i < 50; i++ {
		d.Emit(move(i))
	}
	if st := c.Stats(); st.Overruns == 0 {
		t.Errorf("Stats().Overruns = 0 after flooding, stats %+v", st)
	}
}

func TestCaptureIgnoreInjected(t *testing.T) {
	d := sim.New()
	c := New(d, Options{IgnoreInjected: true})
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	ev := move(1)
	ev.Injected = true
	d.Emit(ev)
	d.Emit(move(2))
	_ = c.Stop()

	var n int
	for range c.Events() {
		n++
	}
	if n != 1 {
		t.Errorf("received %d events, want 1", n)
	}
	if c.Stats().Ignored != 1 {
		t.Errorf("Stats().Ignored = %d, want 1", c.Stats().Ignored)
	}
}
