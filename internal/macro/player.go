package macro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/platform"
	"github.com/dshills/winmacro/internal/window"
)

// Playback defaults.
const (
	DefaultFocusWait = 2 * time.Second
	DefaultFocusPoll = 50 * time.Millisecond
)

// WindowView is the player's view of the target window.
// *window.Tracker implements it.
type WindowView interface {
	GeometrySource
	IsForeground(h platform.Handle) bool
	Screen() geometry.Rect
}

// PlayerOptions configures a Player.
type PlayerOptions struct {
	// FocusWait bounds how long playback pauses for the window to regain
	// focus before failing with ErrWindowLost.
	FocusWait time.Duration
	// FocusPoll is the focus re-check period during a pause.
	FocusPoll time.Duration
	// LoopDelay is inserted between loops.
	LoopDelay time.Duration
	// CenterBeforeLoop moves the pointer to the window center before each
	// loop.
	CenterBeforeLoop bool
	Logger           *logging.Logger
}

// Progress describes one dispatched event.
type Progress struct {
	Loop  int
	Index int
	Total int
	Event input.Event
}

// PlayOptions controls one Play call.
type PlayOptions struct {
	// Loops is the number of repetitions; 0 repeats until stopped.
	Loops int
	// Speed divides every offset. Zero means 1.
	Speed float64
	// OnEvent is called after each dispatched event.
	OnEvent func(Progress)
	// OnLoopComplete is called after each finished loop with the number
	// of loops completed so far.
	OnLoopComplete func(loops int)
}

// Result summarizes a playback.
type Result struct {
	// Dispatched counts events dispatched across all loops.
	Dispatched int `json:"dispatched"`
	// LastIndex is the index of the last dispatched event within the last
	// loop entered, or -1 if that loop dispatched nothing. It matches
	// PlaybackError.Index.
	LastIndex int `json:"lastIndex"`
	// Loops counts completed loops.
	Loops int `json:"loops"`
	// Stopped is true when playback ended on a stop request.
	Stopped bool          `json:"stopped"`
	Elapsed time.Duration `json:"elapsed"`
}

// Player dispatches timelines to one window.
type Player struct {
	view   WindowView
	synth  platform.Synthesizer
	handle platform.Handle
	opts   PlayerOptions
}

// NewPlayer creates a player targeting the window h.
func NewPlayer(view WindowView, synth platform.Synthesizer, h platform.Handle, opts PlayerOptions) *Player {
	if opts.FocusWait <= 0 {
		opts.FocusWait = DefaultFocusWait
	}
	if opts.FocusPoll <= 0 {
		opts.FocusPoll = DefaultFocusPoll
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Player{view: view, synth: synth, handle: h, opts: opts}
}

// Play dispatches tl until it has run opts.Loops times, ctx is canceled,
// or an error occurs. Cancellation is not an error: the result has
// Stopped set. Failures are returned as *PlaybackError.
func (p *Player) Play(ctx context.Context, tl *Timeline, opts PlayOptions) (*Result, error) {
	if tl == nil {
		return nil, &ValidationError{Index: -1, Reason: "nil timeline"}
	}
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	speed := opts.Speed
	if speed == 0 {
		speed = 1
	}
	if speed < 0 {
		return nil, ErrInvalidSpeed
	}
	if opts.Loops < 0 {
		return nil, ErrInvalidLoops
	}

	events := tl.Events()
	res := &Result{LastIndex: -1}
	started := time.Now()
	defer func() { res.Elapsed = time.Since(started) }()

	if len(events) == 0 {
		p.opts.Logger.Info("timeline %q is empty, nothing to play", tl.Metadata().Name)
		return res, nil
	}

	p.opts.Logger.Info("playing %q: %d events, loops %d, speed %.2f",
		tl.Metadata().Name, len(events), opts.Loops, speed)

	for loop := 0; opts.Loops == 0 || loop < opts.Loops; loop++ {
		if loop > 0 && p.opts.LoopDelay > 0 {
			if err := sleep(ctx, p.opts.LoopDelay); err != nil {
				res.Stopped = true
				return res, nil
			}
		}
		if p.opts.CenterBeforeLoop {
			if err := p.center(); err != nil {
				return res, &PlaybackError{Index: -1, Loop: loop, Err: err}
			}
		}

		stopped, err := p.playLoop(ctx, loop, events, speed, res, opts.OnEvent)
		if err != nil {
			return res, err
		}
		if stopped {
			res.Stopped = true
			p.opts.Logger.Info("playback stopped after %d events", res.Dispatched)
			return res, nil
		}

		res.Loops++
		if opts.OnLoopComplete != nil {
			opts.OnLoopComplete(res.Loops)
		}
	}

	p.opts.Logger.Info("playback finished: %d loops, %d events", res.Loops, res.Dispatched)
	return res, nil
}

func (p *Player) playLoop(ctx context.Context, loop int, events []input.Event, speed float64, res *Result, onEvent func(Progress)) (bool, error) {
	loopStart := time.Now()
	last := -1
	res.LastIndex = -1

	for i, ev := range events {
		if ctx.Err() != nil {
			return true, nil
		}

		due := loopStart.Add(time.Duration(float64(ev.Offset()) / speed))
		if err := sleep(ctx, time.Until(due)); err != nil {
			return true, nil
		}

		paused, err := p.awaitFocus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return false, &PlaybackError{Index: last, Loop: loop, Err: err}
		}
		// Time spent waiting for focus does not compress later delays.
		loopStart = loopStart.Add(paused)

		if err := p.dispatch(ev); err != nil {
			return false, &PlaybackError{Index: last, Loop: loop, Err: err}
		}
		last = i
		res.Dispatched++
		res.LastIndex = i
		if onEvent != nil {
			onEvent(Progress{Loop: loop, Index: i, Total: len(events), Event: ev})
		}
	}
	return false, nil
}

// awaitFocus returns once the window has focus, pausing up to FocusWait.
func (p *Player) awaitFocus(ctx context.Context) (time.Duration, error) {
	if p.view.IsForeground(p.handle) {
		return 0, nil
	}

	p.opts.Logger.Warn("target window lost focus, pausing up to %s", p.opts.FocusWait)
	start := time.Now()
	ticker := time.NewTicker(p.opts.FocusPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-ticker.C:
			if p.view.IsForeground(p.handle) {
				return time.Since(start), nil
			}
			if time.Since(start) >= p.opts.FocusWait {
				return time.Since(start), fmt.Errorf("%w: focus not regained within %s", ErrWindowLost, p.opts.FocusWait)
			}
		}
	}
}

// geometry reads the live window geometry.
func (p *Player) geometry() (geometry.Geometry, error) {
	snap, err := p.view.Geometry(p.handle)
	if err != nil {
		if errors.Is(err, window.ErrWindowClosed) || errors.Is(err, window.ErrNotTracked) {
			return geometry.Geometry{}, fmt.Errorf("%w: %v", ErrWindowLost, err)
		}
		return geometry.Geometry{}, err
	}
	if !snap.Usable() {
		return geometry.Geometry{}, fmt.Errorf("%w: window has no usable geometry", ErrWindowLost)
	}
	return snap.Geometry, nil
}

func (p *Player) project(rel geometry.RelPoint) (geometry.Point, error) {
	g, err := p.geometry()
	if err != nil {
		return geometry.Point{}, err
	}
	return geometry.ClampToScreen(geometry.ToAbsolute(rel, g), p.view.Screen()), nil
}

func (p *Player) dispatch(ev input.Event) error {
	switch e := ev.(type) {
	case input.PointerMove:
		pt, err := p.project(e.Pos)
		if err != nil {
			return err
		}
		return p.synth.MovePointer(pt)

	case input.PointerButton:
		pt, err := p.project(e.Pos)
		if err != nil {
			return err
		}
		return p.synth.Button(pt, e.Button, e.Down)

	case input.Scroll:
		pt, err := p.project(e.Pos)
		if err != nil {
			return err
		}
		return p.synth.Scroll(pt, e.DeltaX, e.DeltaY)

	case input.Key:
		return p.synth.Key(e.Code, e.Down)
	}
	return &ValidationError{Index: -1, Reason: fmt.Sprintf("unknown event type %T", ev)}
}

func (p *Player) center() error {
	g, err := p.geometry()
	if err != nil {
		return err
	}
	return p.synth.MovePointer(geometry.ClampToScreen(g.Center(), p.view.Screen()))
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
