package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/platform"
)

// Capture errors.
var (
	// ErrCaptureAlreadyActive indicates another capture holds the hook.
	ErrCaptureAlreadyActive = errors.New("capture already active")

	// ErrCaptureHookFailure indicates the OS refused to install the hook.
	ErrCaptureHookFailure = errors.New("input hook installation failed")

	// ErrNotStarted indicates Stop was called on an idle capture.
	ErrNotStarted = errors.New("capture not started")
)

// hookHint is appended to hook failures.
const hookHint = "check that the process runs in an interactive desktop session " +
	"and, if the target runs elevated, run this tool elevated too"

// hookHeld guards the single system-wide hook.
var hookHeld atomic.Bool

// Stats reports capture counters.
type Stats struct {
	// Received is the number of events delivered by the hook.
	Received uint64 `json:"received"`
	// Overruns is the number of events dropped because the consumer lagged.
	Overruns uint64 `json:"overruns"`
	// Delivered is the number of events handed to the consumer.
	Delivered uint64 `json:"delivered"`
	// Ignored is the number of injected events filtered out.
	Ignored uint64 `json:"ignored"`
}

// Options configures a Capture.
type Options struct {
	// QueueSize bounds the event queue. Defaults to DefaultQueueSize.
	QueueSize int
	// IgnoreInjected drops software-synthesized events at the hook.
	IgnoreInjected bool
	// Logger receives lifecycle messages.
	Logger *logging.Logger
}

// Capture turns hook callbacks into an ordered event stream.
type Capture struct {
	hook platform.InputHook
	opts Options

	mu      sync.Mutex
	queue   *Queue
	stop    func() error
	events  chan platform.RawEvent
	fwdDone chan struct{}
	cancel  context.CancelFunc
	active  bool
	ignored atomic.Uint64
}

// New creates a capture over hook.
func New(hook platform.InputHook, opts Options) *Capture {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Capture{hook: hook, opts: opts}
}

// Start installs the hook and begins delivering events. ctx bounds the
// forwarding goroutine; Stop must still be called to remove the hook.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active || !hookHeld.CompareAndSwap(false, true) {
		return ErrCaptureAlreadyActive
	}

	q := NewQueue(c.opts.QueueSize)
	c.ignored.Store(0)
	stop, err := c.hook.Install(func(ev platform.RawEvent) {
		if ev.Injected && c.opts.IgnoreInjected {
			c.ignored.Add(1)
			return
		}
		q.Push(ev)
	})
	if err != nil {
		hookHeld.Store(false)
		return fmt.Errorf("%w: %v (%s)", ErrCaptureHookFailure, err, hookHint)
	}

	fctx, cancel := context.WithCancel(ctx)
	c.queue = q
	c.stop = stop
	c.cancel = cancel
	c.events = make(chan platform.RawEvent)
	c.fwdDone = make(chan struct{})
	c.active = true
	go c.forward(fctx, q, c.events, c.fwdDone)

	c.opts.Logger.Debug("capture started (queue %d)", q.Cap())
	return nil
}

func (c *Capture) forward(ctx context.Context, q *Queue, out chan<- platform.RawEvent, done chan struct{}) {
	defer close(done)
	defer close(out)

	for {
		ev, ok := q.Pop(ctx)
		if !ok {
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// Events returns the ordered event stream. It is closed after Stop once
// queued events have been consumed, or when the Start context ends.
func (c *Capture) Events() <-chan platform.RawEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// Stop removes the hook. Events already queued remain readable from
// Events until it closes.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.active = false
	stop, q := c.stop, c.queue
	c.stop = nil
	c.mu.Unlock()

	err := stop()
	q.Close()
	hookHeld.Store(false)

	if err != nil {
		c.opts.Logger.Warn("remove input hook: %v", err)
		return fmt.Errorf("remove input hook: %w", err)
	}
	st := c.Stats()
	c.opts.Logger.Debug("capture stopped: %d received, %d overruns", st.Received, st.Overruns)
	return nil
}

// Abort stops the capture and discards undelivered events.
func (c *Capture) Abort() {
	_ = c.Stop()

	c.mu.Lock()
	cancel, done := c.cancel, c.fwdDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Active reports whether the hook is installed.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Stats returns the capture counters.
func (c *Capture) Stats() Stats {
	c.mu.Lock()
	q := c.queue
	c.mu.Unlock()

	st := Stats{Ignored: c.ignored.Load()}
	if q != nil {
		st.Received = q.pushed.Load()
		st.Overruns = q.dropped.Load()
		st.Delivered = q.consumed.Load()
	}
	return st
}
