// Package safety stops sessions on an emergency key or when the target
// window goes away.
//
// The Monitor observes the keyboard through its own platform.KeyWatcher,
// independent of the capture hook, so a stop key works during playback
// when nothing is being captured. Triggers only request cancellation on
// the armed session token; the session's worker stops at its next safe
// point.
package safety

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/platform"
	"github.com/dshills/winmacro/internal/session"
)

// Monitor defaults.
const (
	DefaultFocusGrace = 2 * time.Second
	DefaultFocusPoll  = 100 * time.Millisecond
)

// ErrAlreadyStarted indicates Start was called twice.
var ErrAlreadyStarted = errors.New("safety monitor already started")

// Window is the monitor's view of the target window.
// *window.Tracker implements it.
type Window interface {
	IsForeground(h platform.Handle) bool
	Closed() <-chan struct{}
}

// Options configures a Monitor.
type Options struct {
	// StopKeys cancel the armed session immediately.
	StopKeys []key.Binding
	// StopLoopKeys cancel the armed session, reported as a loop stop.
	StopLoopKeys []key.Binding
	// ToggleKey is reported through OnToggle. A zero binding disables it.
	ToggleKey key.Binding
	// StopOnFocusLoss cancels the session once the window has been out of
	// focus for longer than FocusGrace.
	StopOnFocusLoss bool
	FocusGrace      time.Duration
	FocusPoll       time.Duration
	Logger          *logging.Logger
}

// Monitor watches for stop conditions.
type Monitor struct {
	keys platform.KeyWatcher
	win  Window
	opts Options

	mu        sync.Mutex
	token     *session.Token
	handle    platform.Handle
	lostSince time.Time
	mods      key.State
	onToggle  func()
	onTrigger func(*session.Token, session.Reason)
	unwatch   func() error
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a monitor.
func New(keys platform.KeyWatcher, win Window, opts Options) *Monitor {
	if opts.FocusGrace <= 0 {
		opts.FocusGrace = DefaultFocusGrace
	}
	if opts.FocusPoll <= 0 {
		opts.FocusPoll = DefaultFocusPoll
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Monitor{keys: keys, win: win, opts: opts}
}

// OnToggle sets the toggle hotkey callback. It runs on its own goroutine.
func (m *Monitor) OnToggle(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onToggle = fn
}

// OnTrigger sets a callback run after a trigger canceled a session.
func (m *Monitor) OnTrigger(fn func(*session.Token, session.Reason)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTrigger = fn
}

// Configure replaces the key bindings and focus settings. It applies to
// the next key press and focus check.
func (m *Monitor) Configure(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if opts.FocusGrace <= 0 {
		opts.FocusGrace = DefaultFocusGrace
	}
	opts.FocusPoll = m.opts.FocusPoll
	if opts.Logger == nil {
		opts.Logger = m.opts.Logger
	}
	m.opts = opts
}

// Start begins watching keys and focus.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyStarted
	}
	unwatch, err := m.keys.WatchKeys(m.handleKey)
	if err != nil {
		return err
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.unwatch = unwatch
	m.done = make(chan struct{})
	go m.watchFocus(ctx, m.done)
	return nil
}

// Stop ends watching and disarms.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done, unwatch := m.cancel, m.done, m.unwatch
	m.cancel, m.done, m.unwatch = nil, nil, nil
	m.token = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if err := unwatch(); err != nil {
		m.opts.Logger.Warn("remove key watcher: %v", err)
	}
}

// Arm attaches the monitor to a session targeting the window h.
func (m *Monitor) Arm(tok *session.Token, h platform.Handle) {
	closed := m.win.Closed()

	m.mu.Lock()
	m.token = tok
	m.handle = h
	m.lostSince = time.Time{}
	m.mu.Unlock()

	if closed != nil {
		go func() {
			select {
			case <-closed:
				m.trigger(tok, session.ReasonWindowClosed)
			case <-tok.Done():
			}
		}()
	}
}

// Disarm detaches tok. Disarming a token that is no longer armed is a
// no-op.
func (m *Monitor) Disarm(tok *session.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == tok {
		m.token = nil
	}
}

// Armed returns the armed token, or nil.
func (m *Monitor) Armed() *session.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *Monitor) handleKey(ks platform.KeyStroke) {
	if ks.Injected {
		return
	}

	m.mu.Lock()
	mods := m.mods.Update(ks.Code, ks.Down)
	if !ks.Down {
		m.mu.Unlock()
		return
	}
	tok := m.token
	reason := session.ReasonNone
	switch {
	case matchAny(m.opts.StopKeys, ks.Code, mods):
		reason = session.ReasonStopKey
	case matchAny(m.opts.StopLoopKeys, ks.Code, mods):
		reason = session.ReasonStopLoopKey
	}
	toggle := m.opts.ToggleKey.Matches(ks.Code, mods)
	onToggle := m.onToggle
	m.mu.Unlock()

	if reason != session.ReasonNone {
		if tok != nil {
			m.trigger(tok, reason)
		}
		return
	}
	if toggle && onToggle != nil {
		go onToggle()
	}
}

// matchAny matches bindings; a binding without modifiers matches the key
// whatever modifiers are held.
func matchAny(bindings []key.Binding, c key.Code, mods key.Modifier) bool {
	for _, b := range bindings {
		if b.Code == key.CodeNone || b.Code != c {
			continue
		}
		if b.Modifiers.IsEmpty() || b.Matches(c, mods) {
			return true
		}
	}
	return false
}

func (m *Monitor) trigger(tok *session.Token, reason session.Reason) {
	if !tok.Cancel(reason) {
		return
	}
	m.mu.Lock()
	fn, logger := m.onTrigger, m.opts.Logger
	m.mu.Unlock()

	logger.Warn("stopping %s session %s: %s", tok.Kind(), tok.ID(), reason)
	if fn != nil {
		fn(tok, reason)
	}
}

func (m *Monitor) watchFocus(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.opts.FocusPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkFocus()
		}
	}
}

func (m *Monitor) checkFocus() {
	m.mu.Lock()
	tok, h := m.token, m.handle
	enabled, grace := m.opts.StopOnFocusLoss, m.opts.FocusGrace
	m.mu.Unlock()

	if tok == nil || !enabled {
		return
	}
	if m.win.IsForeground(h) {
		m.mu.Lock()
		m.lostSince = time.Time{}
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	if m.lostSince.IsZero() {
		m.lostSince = time.Now()
	}
	lost := time.Since(m.lostSince)
	m.mu.Unlock()

	if lost >= grace {
		m.trigger(tok, session.ReasonFocusLost)
	}
}
