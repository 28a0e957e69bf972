// Package console is a terminal control panel for the engine.
//
// The panel shows the engine status and the macro library. Keys:
//
//	r      start or stop recording; a finished recording is saved
//	p      play the selected macro
//	s      stop the active session
//	up/k   select the previous macro
//	down/j select the next macro
//	l      reload the macro list
//	q      quit
package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/winmacro/internal/engine"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/session"
	"github.com/dshills/winmacro/internal/store"
)

// Engine is the part of the engine the console drives.
type Engine interface {
	Status() engine.Status
	Subscribe(fn func(engine.Status)) (unsubscribe func())
	ToggleRecording(ctx context.Context) (*macro.Timeline, error)
	Play(ctx context.Context, tl *macro.Timeline, loops int, speed float64) (session.ID, error)
	Stop(id session.ID) error
}

// Options configures a Console.
type Options struct {
	// Repo holds the macro library. Without one, recordings are not saved
	// and nothing can be played.
	Repo store.Repository
	// Loops and Speed are used for playback.
	Loops  int
	Speed  float64
	Logger *logging.Logger
}

// quitEvent is posted to end Run when its context is done.
type quitEvent struct{}

// Console renders the panel on a tcell screen.
type Console struct {
	eng    Engine
	screen tcell.Screen
	repo   store.Repository
	loops  int
	speed  float64
	logger *logging.Logger

	mu       sync.Mutex
	status   engine.Status
	macros   []store.Info
	selected int
	message  string
}

// New creates a console drawing on screen. Run initializes and finalizes
// the screen.
func New(eng Engine, screen tcell.Screen, opts Options) *Console {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Console{
		eng:    eng,
		screen: screen,
		repo:   opts.Repo,
		loops:  opts.Loops,
		speed:  opts.Speed,
		logger: opts.Logger.WithComponent("console"),
	}
}

// Run shows the panel until q is pressed or ctx is done. An active
// session is stopped on quit.
func (c *Console) Run(ctx context.Context) error {
	if err := c.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer c.screen.Fini()
	c.screen.HideCursor()

	c.setStatus(c.eng.Status())
	unsubscribe := c.eng.Subscribe(func(st engine.Status) {
		c.setStatus(st)
		_ = c.screen.PostEvent(tcell.NewEventInterrupt(nil)) // redraw is best-effort
	})
	defer unsubscribe()
	c.reload(ctx)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.screen.PostEvent(tcell.NewEventInterrupt(quitEvent{}))
		case <-done:
		}
	}()

	for {
		c.draw()
		switch ev := c.screen.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			c.screen.Sync()
		case *tcell.EventInterrupt:
			if _, ok := ev.Data().(quitEvent); ok {
				return nil
			}
		case *tcell.EventKey:
			if c.handleKey(ctx, ev) {
				if err := c.eng.Stop(""); err != nil {
					c.logger.Warn("stop on quit: %v", err)
				}
				return nil
			}
		}
	}
}

// handleKey reports whether the console should quit.
func (c *Console) handleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		c.move(-1)
	case tcell.KeyDown:
		c.move(1)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case 'r':
			c.toggleRecording(ctx)
		case 'p':
			c.playSelected(ctx)
		case 's':
			if err := c.eng.Stop(""); err != nil {
				c.setMessage("stop: %v", err)
			} else {
				c.setMessage("stop requested")
			}
		case 'k':
			c.move(-1)
		case 'j':
			c.move(1)
		case 'l':
			c.reload(ctx)
		}
	}
	return false
}

func (c *Console) toggleRecording(ctx context.Context) {
	tl, err := c.eng.ToggleRecording(ctx)
	if tl == nil {
		if err != nil {
			c.setMessage("record: %v", err)
		} else {
			c.setMessage("recording, press r to stop")
		}
		return
	}
	if err != nil {
		c.logger.Warn("recording ended with error: %v", err)
	}
	if c.repo == nil || tl.Len() == 0 {
		c.setMessage("recorded %d events, not saved", tl.Len())
		return
	}

	info, saveErr := c.repo.Save(ctx, tl)
	if saveErr != nil {
		c.setMessage("save: %v", saveErr)
		return
	}
	c.reload(ctx)
	c.mu.Lock()
	for i, m := range c.macros {
		if m.ID == info.ID {
			c.selected = i
		}
	}
	c.mu.Unlock()
	c.setMessage("saved %s (%d events)", info.ID, info.EventCount)
}

func (c *Console) playSelected(ctx context.Context) {
	c.mu.Lock()
	var info store.Info
	ok := c.selected >= 0 && c.selected < len(c.macros)
	if ok {
		info = c.macros[c.selected]
	}
	c.mu.Unlock()
	if !ok || c.repo == nil {
		c.setMessage("no macro selected")
		return
	}

	tl, err := c.repo.Load(ctx, info.ID)
	if err != nil {
		c.setMessage("load: %v", err)
		return
	}
	if _, err := c.eng.Play(ctx, tl, c.loops, c.speed); err != nil {
		c.setMessage("play: %v", err)
		return
	}
	c.setMessage("playing %s", info.Name)
}

func (c *Console) reload(ctx context.Context) {
	if c.repo == nil {
		return
	}
	infos, err := c.repo.List(ctx, "")
	if err != nil {
		c.setMessage("list: %v", err)
		return
	}
	c.mu.Lock()
	c.macros = infos
	if c.selected >= len(infos) {
		c.selected = len(infos) - 1
	}
	if c.selected < 0 {
		c.selected = 0
	}
	c.mu.Unlock()
}

func (c *Console) move(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.selected + delta
	if n >= 0 && n < len(c.macros) {
		c.selected = n
	}
}

func (c *Console) setStatus(st engine.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = st
}

func (c *Console) setMessage(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message = fmt.Sprintf(format, args...)
}
