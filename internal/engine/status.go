package engine

import (
	"time"

	"github.com/dshills/winmacro/internal/macro"
	"github.com/dshills/winmacro/internal/session"
)

// State is the engine-level activity.
type State string

// Engine states.
const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePlaying   State = "playing"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Status is a point-in-time view of the engine. After a session ends the
// status keeps describing it, with State Stopped or Failed, until the
// next session starts.
type Status struct {
	State     State      `json:"state"`
	SessionID session.ID `json:"sessionId,omitempty"`
	Window    string     `json:"window,omitempty"`
	Macro     string     `json:"macro,omitempty"`

	// Events is the number of events recorded or dispatched so far.
	Events int `json:"events"`
	// Loop is the zero-based loop being played.
	Loop int `json:"loop"`
	// Loops is the requested loop count; 0 repeats until stopped.
	Loops int `json:"loops"`
	// Index is the last dispatched event within the loop, or -1.
	Index int `json:"index"`
	// Total is the number of events per loop.
	Total int `json:"total"`

	Reason    string        `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Active reports whether a session is running.
func (s Status) Active() bool {
	return s.State == StateRecording || s.State == StatePlaying
}

// Outcome describes a finished session.
type Outcome struct {
	ID     session.ID
	Kind   session.Kind
	State  session.State
	Reason session.Reason

	// Timeline is the recorded timeline, possibly partial, for
	// recording sessions.
	Timeline *macro.Timeline

	// Result summarizes a playback session.
	Result *macro.Result

	// Err is the failure that ended the session, or nil.
	Err error
}

// run is the engine's record of one session.
type run struct {
	tok     *session.Token
	window  string
	macro   string
	loops   int
	total   int
	outcome *Outcome
	done    chan struct{}

	lastPublish time.Time
}
