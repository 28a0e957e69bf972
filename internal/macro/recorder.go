package macro

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/platform"
	"github.com/dshills/winmacro/internal/window"
)

// Recording defaults.
const (
	DefaultMoveThreshold = 5
	DefaultMaxDuration   = 300 * time.Second
)

// GeometrySource provides the live geometry of the target window.
// *window.Tracker implements it.
type GeometrySource interface {
	Geometry(h platform.Handle) (window.Snapshot, error)
}

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// MoveThreshold skips pointer moves shorter than this many pixels on
	// both axes. Zero records every move.
	MoveThreshold int
	// MaxDuration ends the recording once exceeded. Zero means no limit.
	MaxDuration time.Duration
	// IgnoreKeys are never recorded, such as the stop and toggle hotkeys.
	IgnoreKeys []key.Code
	// Clock supplies the time for events without a hook timestamp.
	Clock func() time.Time
	Logger *logging.Logger
}

// Recorder turns raw hook events into a Timeline.
type Recorder struct {
	geom   GeometrySource
	opts   RecorderOptions
	ignore map[key.Code]bool

	mu        sync.Mutex
	recording bool
	handle    platform.Handle
	timeline  *Timeline
	start     time.Time
	last      time.Duration
	lastPos   geometry.Point
	hasPos    bool
	lastGood  *geometry.Geometry
	mods      key.State
	stale     uint64
	skipped   uint64
}

// NewRecorder creates a recorder reading geometry from geom.
func NewRecorder(geom GeometrySource, opts RecorderOptions) *Recorder {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	ignore := make(map[key.Code]bool, len(opts.IgnoreKeys))
	for _, c := range opts.IgnoreKeys {
		ignore[c] = true
	}
	return &Recorder{geom: geom, opts: opts, ignore: ignore}
}

// Begin starts a new timeline for the window h. The start time is taken
// now; event offsets are measured from it.
func (r *Recorder) Begin(h platform.Handle, meta Metadata) error {
	snap, err := r.geom.Geometry(h)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWindowLost, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = r.opts.Clock()
	}
	if meta.ReferenceSize.Empty() {
		meta.ReferenceSize = snap.Size
	}

	g := snap.Geometry
	r.recording = true
	r.handle = h
	r.timeline = NewTimeline(meta)
	r.start = r.opts.Clock()
	r.last = 0
	r.hasPos = false
	r.lastGood = nil
	if g.Usable() {
		r.lastGood = &g
	}
	r.mods = key.State{}
	r.stale = 0
	r.skipped = 0

	r.opts.Logger.Info("recording %q against %s", meta.Name, g)
	return nil
}

// Recording reports whether a timeline is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Len returns the number of events recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	tl := r.timeline
	r.mu.Unlock()
	if tl == nil {
		return 0
	}
	return tl.Len()
}

// OnEvent converts and appends one raw event. Errors wrapping
// ErrWindowLost or ErrMaxDuration end the recording; the caller should
// pass them to Fail and call End.
func (r *Recorder) OnEvent(raw platform.RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return ErrNotRecording
	}

	at := raw.Time
	if at.IsZero() {
		at = r.opts.Clock()
	}
	offset := at.Sub(r.start)
	if offset < r.last {
		offset = r.last
	}
	if r.opts.MaxDuration > 0 && offset > r.opts.MaxDuration {
		return fmt.Errorf("%w (%s)", ErrMaxDuration, r.opts.MaxDuration)
	}

	var ev input.Event
	switch raw.Kind {
	case input.KindKey:
		mods := r.mods.Update(raw.Code, raw.Down)
		if r.ignore[raw.Code] {
			return nil
		}
		ev = input.Key{
			Header:    input.Header{At: offset},
			Code:      raw.Code,
			Modifiers: mods,
			Down:      raw.Down,
		}

	case input.KindPointerMove, input.KindPointerButton, input.KindScroll:
		if raw.Kind == input.KindPointerMove && r.belowThreshold(raw.Point) {
			return nil
		}
		pos, flags, ok, err := r.relative(raw.Point)
		if err != nil {
			return err
		}
		if !ok {
			r.skipped++
			return nil
		}
		hdr := input.Header{At: offset, Notes: flags}
		switch raw.Kind {
		case input.KindPointerMove:
			ev = input.PointerMove{Header: hdr, Pos: pos}
		case input.KindPointerButton:
			ev = input.PointerButton{Header: hdr, Pos: pos, Button: raw.Button, Down: raw.Down}
		default:
			if raw.DeltaX == 0 && raw.DeltaY == 0 {
				return nil
			}
			ev = input.Scroll{Header: hdr, Pos: pos, DeltaX: raw.DeltaX, DeltaY: raw.DeltaY}
		}
		r.lastPos = raw.Point
		r.hasPos = true

	default:
		r.opts.Logger.Debug("ignoring raw event of kind %d", raw.Kind)
		return nil
	}

	if err := r.timeline.Append(ev); err != nil {
		return err
	}
	r.last = offset
	return nil
}

func (r *Recorder) belowThreshold(p geometry.Point) bool {
	th := r.opts.MoveThreshold
	if th <= 0 || !r.hasPos {
		return false
	}
	return abs(p.X-r.lastPos.X) < th && abs(p.Y-r.lastPos.Y) < th
}

// relative maps p with the current geometry. A degenerate geometry (for
// example a minimized window) falls back to the last usable one and marks
// the event stale; ok is false when there is none.
func (r *Recorder) relative(p geometry.Point) (geometry.RelPoint, input.Flags, bool, error) {
	snap, err := r.geom.Geometry(r.handle)
	if err != nil {
		if errors.Is(err, window.ErrWindowClosed) || errors.Is(err, window.ErrNotTracked) {
			return geometry.RelPoint{}, 0, false, fmt.Errorf("%w: %v", ErrWindowLost, err)
		}
		return geometry.RelPoint{}, 0, false, err
	}

	g := snap.Geometry
	var flags input.Flags
	if snap.Stale {
		flags |= input.FlagGeometryStale
	}
	if g.Usable() {
		r.lastGood = &g
	} else {
		if r.lastGood == nil {
			return geometry.RelPoint{}, 0, false, nil
		}
		g = *r.lastGood
		flags |= input.FlagGeometryStale
	}
	pos, err := geometry.ToRelative(p, g)
	if err != nil {
		r.opts.Logger.Debug("normalize %s: %v", p, err)
		return geometry.RelPoint{}, 0, false, nil
	}
	if flags.Has(input.FlagGeometryStale) {
		r.stale++
	}
	return pos, flags, true, nil
}

// Note attaches a diagnostic to the open timeline.
func (r *Recorder) Note(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timeline == nil {
		return
	}
	if d.At == 0 {
		d.At = r.last
	}
	r.timeline.AddDiagnostic(d)
}

// Fail records err as the diagnostic that ended the recording.
func (r *Recorder) Fail(err error) {
	if err == nil {
		return
	}
	code := DiagRecordingError
	switch {
	case errors.Is(err, ErrMaxDuration):
		code = DiagMaxDuration
	case errors.Is(err, ErrWindowLost):
		code = DiagWindowLost
	}
	r.Note(Diagnostic{Code: code, Message: err.Error()})
	r.opts.Logger.Warn("recording stopped: %v", err)
}

// End freezes and returns the timeline. It returns nil if no recording is
// open. A timeline with zero events is valid.
func (r *Recorder) End() *Timeline {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return nil
	}
	r.recording = false

	tl := r.timeline
	if r.stale > 0 {
		tl.AddDiagnostic(Diagnostic{
			Code:    DiagGeometryStale,
			Message: "events captured against stale window geometry",
			At:      r.last,
			Count:   r.stale,
		})
	}
	if r.skipped > 0 {
		tl.AddDiagnostic(Diagnostic{
			Code:    DiagGeometryUnavailable,
			Message: "pointer events skipped without usable window geometry",
			At:      r.last,
			Count:   r.skipped,
		})
		r.opts.Logger.Warn("skipped %d pointer events without usable geometry", r.skipped)
	}
	tl.Freeze()
	r.timeline = nil

	r.opts.Logger.Info("recorded %d events over %s", tl.Len(), tl.Duration())
	return tl
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
