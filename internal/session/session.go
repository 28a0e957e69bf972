// Package session serializes recording and playback sessions.
//
// A Lock admits at most one active session. Acquire returns a Token that
// carries the session's identity, cancellation context and state. States
// only move forward:
//
//	Active -> Stopping -> Stopped
//	Active -> Stopped | Failed
//	Stopping -> Failed
//
// Cancel requests a stop; the session's worker observes it at its next
// safe point and calls Finish, which releases the lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrConcurrentSession indicates a session is already active.
var ErrConcurrentSession = errors.New("another session is active")

// Kind identifies what a session does.
type Kind uint8

// Session kinds.
const (
	KindRecording Kind = iota + 1
	KindPlayback
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRecording:
		return "recording"
	case KindPlayback:
		return "playback"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// State is a session's lifecycle position.
type State uint8

// Session states.
const (
	StateIdle State = iota
	StateActive
	StateStopping
	StateStopped
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// Reason explains why a session was asked to stop.
type Reason string

// Stop reasons.
const (
	ReasonNone         Reason = ""
	ReasonUser         Reason = "stop requested"
	ReasonStopKey      Reason = "emergency stop key"
	ReasonStopLoopKey  Reason = "stop loop key"
	ReasonFocusLost    Reason = "target window lost focus"
	ReasonWindowClosed Reason = "target window closed"
	ReasonMaxDuration  Reason = "maximum recording time reached"
	ReasonShutdown     Reason = "engine shutting down"
)

// ID identifies a session.
type ID string

// Lock admits one active session at a time.
type Lock struct {
	mu     sync.Mutex
	active *Token
	last   *Token
}

// NewLock creates an unlocked Lock.
func NewLock() *Lock {
	return &Lock{}
}

// Acquire starts a session of the given kind. It fails with
// ErrConcurrentSession while another session has not finished.
func (l *Lock) Acquire(kind Kind) (*Token, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active != nil {
		return nil, fmt.Errorf("%w: %s session %s", ErrConcurrentSession, l.active.kind, l.active.id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Token{
		id:      ID(uuid.NewString()),
		kind:    kind,
		lock:    l,
		state:   StateActive,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	l.active = t
	l.last = t
	return t, nil
}

// Busy reports whether a session is active.
func (l *Lock) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active != nil
}

// Active returns the active token, or nil.
func (l *Lock) Active() *Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Last returns the most recently acquired token, finished or not.
func (l *Lock) Last() *Token {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func (l *Lock) release(t *Token) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == t {
		l.active = nil
	}
}

// Token is the handle of one session.
type Token struct {
	id     ID
	kind   Kind
	lock   *Lock
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    State
	reason   Reason
	err      error
	started  time.Time
	finished time.Time
}

// ID returns the session identifier.
func (t *Token) ID() ID {
	return t.id
}

// Kind returns the session kind.
func (t *Token) Kind() Kind {
	return t.kind
}

// Context is canceled when a stop is requested or the session finishes.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Stopping returns a channel closed once a stop was requested.
func (t *Token) Stopping() <-chan struct{} {
	return t.ctx.Done()
}

// Done returns a channel closed when the session finished.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the session to stop. Only the first request on an active
// session has an effect; it returns true in that case.
func (t *Token) Cancel(reason Reason) bool {
	t.mu.Lock()
	if t.state != StateActive {
		t.mu.Unlock()
		return false
	}
	t.state = StateStopping
	t.reason = reason
	t.mu.Unlock()

	t.cancel()
	return true
}

// Finish ends the session with err, or cleanly when err is nil, and
// releases the lock. Later calls are ignored.
func (t *Token) Finish(err error) {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	if err != nil {
		t.state = StateFailed
		t.err = err
	} else {
		t.state = StateStopped
	}
	t.finished = time.Now()
	t.mu.Unlock()

	t.cancel()
	t.lock.release(t)
	close(t.done)
}

// State returns the current state.
func (t *Token) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reason returns why a stop was requested, if one was.
func (t *Token) Reason() Reason {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason
}

// Err returns the failure that ended the session.
func (t *Token) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Elapsed returns the session's running time so far, or its total
// duration once finished.
func (t *Token) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished.IsZero() {
		return time.Since(t.started)
	}
	return t.finished.Sub(t.started)
}
