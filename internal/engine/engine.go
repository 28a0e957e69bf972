package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/winmacro/internal/capture"
	"github.com/dshills/winmacro/internal/config"
	"github.com/dshills/winmacro/internal/config/watcher"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/platform"
	"github.com/dshills/winmacro/internal/safety"
	"github.com/dshills/winmacro/internal/session"
	"github.com/dshills/winmacro/internal/window"
)

// Engine records and replays macros against one target window.
//
// Engine is safe for concurrent use. At most one session, recording or
// playback, is active at a time.
type Engine struct {
	plat    platform.Platform
	opts    Options
	logger  *logging.Logger
	tracker *window.Tracker
	monitor *safety.Monitor
	lock    *session.Lock

	mu         sync.Mutex
	cfg        *config.Config
	started    bool
	closed     bool
	base       context.Context
	cancel     context.CancelFunc
	current    *run
	runs       map[session.ID]*run
	order      []session.ID
	status     Status
	subs       map[int]func(Status)
	nextSub    int
	onRecorded func(*macro.Timeline, error)

	wg sync.WaitGroup
}

// New creates an engine. Call Start before recording or playing.
func New(opts Options) (*Engine, error) {
	if err := opts.Platform.Validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()
	if err := opts.Config.Validate(); err != nil {
		return nil, newOpError("configure", "", err)
	}
	cfg := opts.Config.Clone()
	logger := opts.Logger.WithComponent("engine")

	tracker := window.New(opts.Platform.Windows,
		window.WithPollInterval(cfg.Window.PollInterval.D()),
		window.WithExcludeTitles(cfg.Window.ExcludeTitles...),
		window.WithLogger(opts.Logger.WithComponent("window")),
	)
	safetyOpts, err := safetyOptions(cfg, opts.Logger.WithComponent("safety"))
	if err != nil {
		return nil, newOpError("configure", "", err)
	}

	e := &Engine{
		plat:    opts.Platform,
		opts:    opts,
		logger:  logger,
		tracker: tracker,
		monitor: safety.New(opts.Platform.Keys, tracker, safetyOpts),
		lock:    session.NewLock(),
		cfg:     cfg,
		runs:    make(map[session.ID]*run),
		subs:    make(map[int]func(Status)),
		status:  Status{State: StateIdle, Index: -1, UpdatedAt: time.Now()},
	}
	e.monitor.OnToggle(e.toggleFromHotkey)
	e.monitor.OnTrigger(e.triggered)
	return e, nil
}

// Start begins window tracking and hotkey monitoring. Canceling ctx has
// the same effect as Close on running sessions.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}

	base, cancel := context.WithCancel(ctx)
	if err := e.monitor.Start(base); err != nil {
		cancel()
		return newOpError("start", "", err)
	}
	e.tracker.Start(base)
	e.base, e.cancel, e.started = base, cancel, true

	e.logger.Info("engine started on %s platform", e.plat.Name)
	return nil
}

// Close stops any active session, waits for it to finish, and releases
// the platform hooks. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel := e.cancel
	cur := e.current
	e.mu.Unlock()

	if cur != nil {
		cur.tok.Cancel(session.ReasonShutdown)
	}
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
	e.monitor.Stop()
	e.tracker.Stop()

	e.logger.Info("engine closed")
	return nil
}

// Config returns a copy of the settings in force.
func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// Windows lists the windows a session could target.
func (e *Engine) Windows(ctx context.Context) ([]platform.WindowInfo, error) {
	return e.tracker.List(ctx)
}

// OnRecorded sets a callback run after every recording ends, however it
// was started or stopped. err is non-nil when the recording failed; tl
// then holds the partial timeline.
func (e *Engine) OnRecorded(fn func(tl *macro.Timeline, err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRecorded = fn
}

// StartRecording locates the configured window and begins capturing input
// into a new timeline. Missing metadata is filled in: the name from the
// current time, the category from recording.default_category. ctx bounds
// the window lookup only.
func (e *Engine) StartRecording(ctx context.Context, meta macro.Metadata) error {
	r, cfg, base, err := e.begin(session.KindRecording)
	if err != nil {
		return newOpError("record", "", err)
	}
	title := cfg.Window.Title

	h, err := e.tracker.Locate(ctx, title)
	if err != nil {
		return e.abort(r, newOpError("record", title, err))
	}

	if meta.Name == "" {
		meta.Name = "Recording " + time.Now().Format("2006-01-02 15:04:05")
	}
	if meta.Category == "" {
		meta.Category, _ = macro.ParseCategory(cfg.Recording.DefaultCategory)
	}

	rec := macro.NewRecorder(e.tracker, macro.RecorderOptions{
		MoveThreshold: cfg.Recording.MoveThreshold,
		MaxDuration:   cfg.Recording.MaxDuration.D(),
		IgnoreKeys:    hotkeyCodes(cfg),
		Logger:        e.opts.Logger.WithComponent("recorder"),
	})
	if err := rec.Begin(h, meta); err != nil {
		return e.abort(r, newOpError("record", title, err))
	}

	capt := capture.New(e.plat.Hook, capture.Options{
		QueueSize:      cfg.Capture.QueueSize,
		IgnoreInjected: cfg.Capture.IgnoreInjected,
		Logger:         e.opts.Logger.WithComponent("capture"),
	})
	if err := capt.Start(base); err != nil {
		rec.Note(macro.Diagnostic{Code: macro.DiagCaptureHookFailure, Message: err.Error()})
		tl := rec.End()
		return e.abortWith(r, &Outcome{Timeline: tl, Err: newOpError("record", title, err)})
	}

	e.activate(r, StateRecording, e.tracker.Title(), meta.Name, 0, 0)
	e.monitor.Arm(r.tok, h)

	go e.cancelOnShutdown(base, r.tok)
	go e.record(r, rec, capt)
	return nil
}

func (e *Engine) record(r *run, rec *macro.Recorder, capt *capture.Capture) {
	defer e.wg.Done()

	tok := r.tok
	events := capt.Events()
	var failure error

loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			if err := rec.OnEvent(ev); err != nil {
				failure = err
				break loop
			}
			e.progress(r, func(st *Status) { st.Events = rec.Len() })
		case <-tok.Stopping():
			break loop
		}
	}

	if err := capt.Stop(); err != nil && !errors.Is(err, capture.ErrNotStarted) {
		e.logger.Warn("stop capture: %v", err)
	}
	if failure == nil {
		// Events queued before the stop still belong to the recording.
		for ev := range events {
			if err := rec.OnEvent(ev); err != nil {
				failure = err
				break
			}
		}
	}
	capt.Abort()

	if st := capt.Stats(); st.Overruns > 0 {
		rec.Note(macro.Diagnostic{
			Code:    macro.DiagCaptureOverrun,
			Message: "input events dropped because the recorder fell behind",
			Count:   st.Overruns,
		})
	}

	switch {
	case errors.Is(failure, macro.ErrMaxDuration):
		tok.Cancel(session.ReasonMaxDuration)
		rec.Fail(failure)
		failure = nil
	case failure != nil:
		rec.Fail(failure)
	case tok.Reason() == session.ReasonWindowClosed:
		failure = fmt.Errorf("%w: %s", macro.ErrWindowLost, session.ReasonWindowClosed)
		rec.Fail(failure)
	}

	tl := rec.End()
	e.monitor.Disarm(tok)

	out := &Outcome{Timeline: tl}
	if failure != nil {
		out.Err = newOpError("record", r.window, failure)
	}
	e.finish(r, out)

	e.mu.Lock()
	cb := e.onRecorded
	e.mu.Unlock()
	if cb != nil {
		cb(tl, out.Err)
	}
}

// StopRecording ends the active recording and returns its timeline. When
// the recording failed, the partial timeline is returned along with the
// error.
func (e *Engine) StopRecording() (*macro.Timeline, error) {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()

	if r == nil || r.tok.Kind() != session.KindRecording {
		return nil, newOpError("stop recording", "", ErrNotRecording)
	}
	r.tok.Cancel(session.ReasonUser)
	<-r.done
	return r.outcome.Timeline, r.outcome.Err
}

// ToggleRecording stops the active recording or starts a new one. It
// returns the timeline when a recording was stopped.
func (e *Engine) ToggleRecording(ctx context.Context) (*macro.Timeline, error) {
	e.mu.Lock()
	r := e.current
	e.mu.Unlock()

	if r != nil && r.tok.Kind() == session.KindRecording {
		return e.StopRecording()
	}
	return nil, e.StartRecording(ctx, macro.Metadata{})
}

func (e *Engine) toggleFromHotkey() {
	if _, err := e.ToggleRecording(context.Background()); err != nil {
		e.logger.Warn("toggle recording: %v", err)
	}
}

// Play starts replaying tl against the configured window and returns the
// session ID immediately. loops of 0 repeats until stopped; speed of 0
// means normal speed. ctx bounds the window lookup only; use Stop to end
// the playback.
func (e *Engine) Play(ctx context.Context, tl *macro.Timeline, loops int, speed float64) (session.ID, error) {
	if tl == nil {
		return "", newOpError("play", "", fmt.Errorf("%w: nil timeline", ErrInvalidTimeline))
	}
	name := tl.Metadata().Name
	if err := tl.Validate(); err != nil {
		return "", newOpError("play", name, err)
	}
	if speed < 0 {
		return "", newOpError("play", name, ErrInvalidSpeed)
	}
	if loops < 0 {
		return "", newOpError("play", name, ErrInvalidLoops)
	}

	r, cfg, base, err := e.begin(session.KindPlayback)
	if err != nil {
		return "", newOpError("play", name, err)
	}
	title := cfg.Window.Title

	h, err := e.tracker.Locate(ctx, title)
	if err != nil {
		return "", e.abort(r, newOpError("play", title, err))
	}

	player := macro.NewPlayer(e.tracker, e.plat.Synth, h, macro.PlayerOptions{
		FocusWait:        cfg.Playback.FocusWait.D(),
		FocusPoll:        cfg.Playback.FocusPoll.D(),
		LoopDelay:        cfg.Playback.LoopDelay.D(),
		CenterBeforeLoop: cfg.Playback.CenterBeforeLoop,
		Logger:           e.opts.Logger.WithComponent("player"),
	})

	e.activate(r, StatePlaying, e.tracker.Title(), name, loops, tl.Len())
	e.monitor.Arm(r.tok, h)

	go e.cancelOnShutdown(base, r.tok)
	go e.play(r, player, tl, loops, speed)
	return r.tok.ID(), nil
}

func (e *Engine) play(r *run, player *macro.Player, tl *macro.Timeline, loops int, speed float64) {
	defer e.wg.Done()

	tok := r.tok
	dispatched := 0
	res, err := player.Play(tok.Context(), tl, macro.PlayOptions{
		Loops: loops,
		Speed: speed,
		OnEvent: func(p macro.Progress) {
			dispatched++
			e.progress(r, func(st *Status) {
				st.Loop = p.Loop
				st.Index = p.Index
				st.Events = dispatched
			})
		},
	})

	if err == nil && res != nil && res.Stopped && tok.Reason() == session.ReasonWindowClosed {
		err = &macro.PlaybackError{Index: res.LastIndex, Loop: res.Loops, Err: macro.ErrWindowLost}
	}
	e.monitor.Disarm(tok)

	out := &Outcome{Result: res}
	if err != nil {
		out.Err = newOpError("play", r.window, err)
	}
	e.finish(r, out)
}

// Stop requests the session id to stop. An empty id stops whatever is
// active. Stopping a finished session is a no-op.
func (e *Engine) Stop(id session.ID) error {
	e.mu.Lock()
	r := e.current
	if id != "" {
		r = e.runs[id]
	}
	e.mu.Unlock()

	if r == nil {
		if id == "" {
			return nil
		}
		return newOpError("stop", string(id), ErrSessionNotFound)
	}
	r.tok.Cancel(session.ReasonUser)
	return nil
}

// Wait blocks until the session id finishes or ctx is done.
func (e *Engine) Wait(ctx context.Context, id session.ID) (*Outcome, error) {
	e.mu.Lock()
	r := e.runs[id]
	e.mu.Unlock()

	if r == nil {
		return nil, newOpError("wait", string(id), ErrSessionNotFound)
	}
	select {
	case <-r.done:
		out := *r.outcome
		return &out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn for status changes and returns a function that
// removes it. fn runs on engine goroutines and must not block.
func (e *Engine) Subscribe(fn func(Status)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

// ApplyConfig validates cfg and adopts it. Hotkeys, focus handling and
// the logging level change immediately; the other settings apply from
// the next session. Window poll interval and excluded titles are fixed
// at New.
func (e *Engine) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return newOpError("configure", "", err)
	}
	safetyOpts, err := safetyOptions(cfg, e.opts.Logger.WithComponent("safety"))
	if err != nil {
		return newOpError("configure", "", err)
	}

	e.mu.Lock()
	old := e.cfg
	e.cfg = cfg.Clone()
	e.mu.Unlock()

	e.monitor.Configure(safetyOpts)
	e.logger.SetLevel(cfg.LogLevel())
	if old.Window.PollInterval != cfg.Window.PollInterval {
		e.logger.Warn("window.poll_interval changes take effect after restart")
	}
	e.logger.Info("configuration applied")
	return nil
}

// WatchConfig reloads path whenever it changes and applies the result.
// Invalid files are logged and ignored. The returned function stops
// watching.
func (e *Engine) WatchConfig(path string) (stop func() error, err error) {
	w, err := watcher.New(watcher.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	w.OnChange(func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove {
			e.logger.Warn("config file %s removed, keeping current settings", ev.Path)
			return
		}
		cfg, err := config.Load(path)
		if err != nil {
			e.logger.Warn("reload %s: %v", path, err)
			return
		}
		if err := e.ApplyConfig(cfg); err != nil {
			e.logger.Warn("reload %s: %v", path, err)
		}
	})
	if err := w.Watch(path); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w.Close, nil
}

// begin acquires the session lock and registers a run. On success the
// caller owns one wait group count, released by the worker or by abort.
func (e *Engine) begin(kind session.Kind) (*run, *config.Config, context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, nil, nil, ErrClosed
	}
	if !e.started {
		return nil, nil, nil, ErrNotStarted
	}
	tok, err := e.lock.Acquire(kind)
	if err != nil {
		return nil, nil, nil, err
	}

	r := &run{tok: tok, done: make(chan struct{})}
	e.current = r
	e.runs[tok.ID()] = r
	e.order = append(e.order, tok.ID())
	e.wg.Add(1)
	return r, e.cfg.Clone(), e.base, nil
}

// abort ends a run that failed before its worker started.
func (e *Engine) abort(r *run, err error) error {
	return e.abortWith(r, &Outcome{Err: err})
}

func (e *Engine) abortWith(r *run, out *Outcome) error {
	e.finish(r, out)
	e.wg.Done()
	return out.Err
}

func (e *Engine) activate(r *run, state State, win, name string, loops, total int) {
	e.mu.Lock()
	r.window, r.macro, r.loops, r.total = win, name, loops, total
	e.status = Status{
		State:     state,
		SessionID: r.tok.ID(),
		Window:    win,
		Macro:     name,
		Loops:     loops,
		Index:     -1,
		Total:     total,
		UpdatedAt: time.Now(),
	}
	st := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Info("%s session %s started on %q", r.tok.Kind(), r.tok.ID(), win)
	e.publish(st)
}

func (e *Engine) progress(r *run, update func(*Status)) {
	e.mu.Lock()
	if e.status.SessionID != r.tok.ID() || !e.status.Active() {
		e.mu.Unlock()
		return
	}
	update(&e.status)
	now := time.Now()
	e.status.UpdatedAt = now
	if now.Sub(r.lastPublish) < e.opts.ProgressInterval {
		e.mu.Unlock()
		return
	}
	r.lastPublish = now
	st := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(st)
}

func (e *Engine) finish(r *run, out *Outcome) {
	tok := r.tok
	tok.Finish(out.Err)
	out.ID = tok.ID()
	out.Kind = tok.Kind()
	out.State = tok.State()
	out.Reason = tok.Reason()

	e.mu.Lock()
	r.outcome = out
	if e.current == r {
		e.current = nil
	}
	e.pruneLocked()

	publish := false
	if e.status.SessionID == tok.ID() {
		publish = true
		e.status.SessionID = tok.ID()
		e.status.State = StateStopped
		if out.Err != nil {
			e.status.State = StateFailed
			e.status.Error = out.Err.Error()
		}
		e.status.Reason = string(out.Reason)
		e.status.Elapsed = tok.Elapsed()
		e.status.UpdatedAt = time.Now()
		if out.Result != nil {
			e.status.Events = out.Result.Dispatched
			e.status.Loop = out.Result.Loops
		}
		if out.Timeline != nil {
			e.status.Events = out.Timeline.Len()
		}
	}
	st := e.snapshotLocked()
	e.mu.Unlock()
	close(r.done)

	if out.Err != nil {
		e.logger.Warn("%s session %s failed: %v", tok.Kind(), tok.ID(), out.Err)
	} else {
		e.logger.Info("%s session %s finished after %s", tok.Kind(), tok.ID(), tok.Elapsed().Round(time.Millisecond))
	}
	if publish {
		e.publish(st)
	}
}

// pruneLocked forgets the oldest finished runs beyond the history limit.
func (e *Engine) pruneLocked() {
	for len(e.order) > e.opts.History {
		id := e.order[0]
		if r := e.runs[id]; r != nil && r.outcome == nil {
			return
		}
		e.order = e.order[1:]
		delete(e.runs, id)
	}
}

func (e *Engine) triggered(tok *session.Token, reason session.Reason) {
	e.mu.Lock()
	if e.status.SessionID != tok.ID() {
		e.mu.Unlock()
		return
	}
	e.status.Reason = string(reason)
	e.status.UpdatedAt = time.Now()
	st := e.snapshotLocked()
	e.mu.Unlock()

	e.publish(st)
}

func (e *Engine) cancelOnShutdown(base context.Context, tok *session.Token) {
	select {
	case <-base.Done():
		tok.Cancel(session.ReasonShutdown)
	case <-tok.Done():
	}
}

func (e *Engine) snapshotLocked() Status {
	st := e.status
	if st.Active() && e.current != nil {
		st.Elapsed = e.current.tok.Elapsed()
	}
	return st
}

func (e *Engine) publish(st Status) {
	e.mu.Lock()
	subs := make([]func(Status), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func safetyOptions(cfg *config.Config, logger *logging.Logger) (safety.Options, error) {
	stop, stopLoop, err := cfg.StopBindings()
	if err != nil {
		return safety.Options{}, err
	}
	toggle, err := cfg.ToggleBinding()
	if err != nil {
		return safety.Options{}, fmt.Errorf("safety.toggle_recording_key: %w", err)
	}
	return safety.Options{
		StopKeys:        []key.Binding{stop},
		StopLoopKeys:    []key.Binding{stopLoop},
		ToggleKey:       toggle,
		StopOnFocusLoss: cfg.Safety.StopOnFocusLoss,
		FocusGrace:      cfg.Safety.FocusGrace.D(),
		Logger:          logger,
	}, nil
}

// hotkeyCodes lists the keys a recording must not capture.
func hotkeyCodes(cfg *config.Config) []key.Code {
	var codes []key.Code
	if stop, stopLoop, err := cfg.StopBindings(); err == nil {
		codes = append(codes, stop.Code, stopLoop.Code)
	}
	if toggle, err := cfg.ToggleBinding(); err == nil && toggle.Code != key.CodeNone {
		codes = append(codes, toggle.Code)
	}
	return codes
}
