package window

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/platform"
)

// DefaultPollInterval is the geometry refresh period.
const DefaultPollInterval = 100 * time.Millisecond

// Tracker errors.
var (
	// ErrWindowNotFound indicates no visible window matched the title.
	ErrWindowNotFound = errors.New("window not found")

	// ErrWindowClosed indicates the tracked window handle stopped resolving.
	ErrWindowClosed = errors.New("window closed")

	// ErrNotTracked indicates the handle is not the one being tracked.
	ErrNotTracked = errors.New("window handle not tracked")

	// ErrEmptyTitle indicates Locate was called without a title.
	ErrEmptyTitle = errors.New("window title is empty")
)

// Snapshot is a geometry plus its freshness.
type Snapshot struct {
	geometry.Geometry
	// Stale is true when the snapshot is older than twice the poll interval.
	Stale bool
}

// ChangeFunc is called after the tracked window moved or was resized.
type ChangeFunc func(h platform.Handle, old, cur geometry.Geometry)

// Option configures a Tracker.
type Option func(*Tracker)

// WithPollInterval sets the polling period.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithExcludeTitles skips windows whose title contains any entry.
func WithExcludeTitles(titles ...string) Option {
	return func(t *Tracker) {
		for _, s := range titles {
			if s = strings.TrimSpace(s); s != "" {
				t.exclude = append(t.exclude, strings.ToLower(s))
			}
		}
	}
}

// WithLogger sets the tracker's logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithClock sets the time source used for snapshots and staleness.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// target is the state of one located window. It is replaced on Locate.
// Its snapshot only ever holds bounds read for its own handle.
type target struct {
	handle    platform.Handle
	title     string
	snap      atomic.Pointer[geometry.Geometry]
	closed    chan struct{}
	closeOnce sync.Once
	lost      atomic.Bool
}

func (t *target) markLost() bool {
	first := false
	t.closeOnce.Do(func() {
		t.lost.Store(true)
		close(t.closed)
		first = true
	})
	return first
}

// Tracker follows the geometry of a single window.
type Tracker struct {
	ws       platform.WindowSystem
	interval time.Duration
	exclude  []string
	logger   *logging.Logger
	now      func() time.Time

	cur atomic.Pointer[target]

	mu        sync.Mutex
	observers []ChangeFunc
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a tracker over a window system.
func New(ws platform.WindowSystem, opts ...Option) *Tracker {
	t := &Tracker{
		ws:       ws,
		interval: DefaultPollInterval,
		logger:   logging.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Interval returns the poll interval.
func (t *Tracker) Interval() time.Duration {
	return t.interval
}

// List returns the visible windows that Locate would consider, largest
// first.
func (t *Tracker) List(ctx context.Context) ([]platform.WindowInfo, error) {
	wins, err := t.ws.Windows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	out := wins[:0:0]
	for _, w := range wins {
		if !w.Visible || w.Bounds.Empty() || strings.TrimSpace(w.Title) == "" {
			continue
		}
		if t.excluded(w.Title) {
			continue
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return area(out[i].Bounds) > area(out[j].Bounds)
	})
	return out, nil
}

// Locate finds the largest visible window whose title contains title,
// case-insensitively, and starts tracking it. The first geometry snapshot
// is taken before Locate returns.
func (t *Tracker) Locate(ctx context.Context, title string) (platform.Handle, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0, ErrEmptyTitle
	}

	wins, err := t.List(ctx)
	if err != nil {
		return 0, err
	}
	needle := strings.ToLower(title)
	var match *platform.WindowInfo
	for i := range wins {
		if strings.Contains(strings.ToLower(wins[i].Title), needle) {
			match = &wins[i]
			break
		}
	}
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrWindowNotFound, title)
	}

	g := geometry.New(match.Bounds.Min, match.Bounds.Size(), t.now())
	if old := t.cur.Load(); old == nil || old.handle != match.Handle || old.lost.Load() {
		tg := &target{handle: match.Handle, title: match.Title, closed: make(chan struct{})}
		tg.snap.Store(&g)
		if old := t.cur.Swap(tg); old != nil {
			old.markLost()
		}
	} else {
		old.snap.Store(&g)
	}

	t.logger.Info("tracking window %q (%s)", match.Title, g)
	return match.Handle, nil
}

// Handle returns the tracked handle, or zero if nothing is tracked.
func (t *Tracker) Handle() platform.Handle {
	if tg := t.cur.Load(); tg != nil {
		return tg.handle
	}
	return 0
}

// Title returns the tracked window's full title.
func (t *Tracker) Title() string {
	if tg := t.cur.Load(); tg != nil {
		return tg.title
	}
	return ""
}

// Tracking reports whether a live window is tracked.
func (t *Tracker) Tracking() bool {
	tg := t.cur.Load()
	return tg != nil && !tg.lost.Load()
}

// Geometry returns the latest snapshot for h without blocking.
func (t *Tracker) Geometry(h platform.Handle) (Snapshot, error) {
	tg := t.cur.Load()
	if tg == nil || tg.handle != h {
		return Snapshot{}, ErrNotTracked
	}
	if tg.lost.Load() {
		return Snapshot{}, ErrWindowClosed
	}
	g := tg.snap.Load()
	if g == nil {
		return Snapshot{}, ErrNotTracked
	}
	return Snapshot{
		Geometry: *g,
		Stale:    t.now().Sub(g.PolledAt) > 2*t.interval,
	}, nil
}

// IsForeground reports whether h currently has input focus.
func (t *Tracker) IsForeground(h platform.Handle) bool {
	fg, err := t.ws.Foreground()
	return err == nil && fg != 0 && fg == h
}

// Screen returns the virtual desktop rectangle.
func (t *Tracker) Screen() geometry.Rect {
	return t.ws.ScreenBounds()
}

// Closed returns a channel closed when the tracked window is lost. Before
// the first Locate the channel never closes.
func (t *Tracker) Closed() <-chan struct{} {
	if tg := t.cur.Load(); tg != nil {
		return tg.closed
	}
	return nil
}

// OnChange registers fn to run after each geometry change. Observers run
// on the polling goroutine.
func (t *Tracker) OnChange(fn ChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, fn)
}

// Start launches the polling goroutine. Calling Start while running is a
// no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	go t.run(ctx, t.done)
}

// Stop halts polling and waits for the goroutine to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Poll()
		}
	}
}

// Poll refreshes the snapshot once. It is called by the polling goroutine
// and may be called directly when no goroutine is running.
func (t *Tracker) Poll() {
	tg := t.cur.Load()
	if tg == nil || tg.lost.Load() {
		return
	}

	r, err := t.ws.Bounds(tg.handle)
	if err != nil {
		if errors.Is(err, platform.ErrNoWindow) {
			if tg.markLost() {
				t.logger.Warn("window %q closed", tg.title)
			}
			return
		}
		// Transient failure: keep the previous snapshot and let it age.
		t.logger.Debug("poll window %q: %v", tg.title, err)
		return
	}

	g := geometry.New(r.Min, r.Size(), t.now())
	old := tg.snap.Swap(&g)
	if t.cur.Load() != tg {
		return
	}
	if old != nil && !old.SameBounds(g) {
		t.notify(tg.handle, *old, g)
	}
}

func (t *Tracker) notify(h platform.Handle, old, cur geometry.Geometry) {
	t.mu.Lock()
	observers := make([]ChangeFunc, len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	t.logger.Debug("window moved %s -> %s", old, cur)
	for _, fn := range observers {
		fn(h, old, cur)
	}
}

func (t *Tracker) excluded(title string) bool {
	lower := strings.ToLower(title)
	for _, ex := range t.exclude {
		if strings.Contains(lower, ex) {
			return true
		}
	}
	return false
}

func area(r geometry.Rect) int {
	s := r.Size()
	return s.Width * s.Height
}
