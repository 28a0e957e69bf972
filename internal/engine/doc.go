// Package engine is the facade over winmacro's record and replay
// machinery.
//
// An Engine owns one window tracker, one safety monitor and one session
// lock. Recording and playback run as sessions; at most one is active at
// a time, whichever kind it is.
//
// # Architecture
//
// The engine wires these packages together:
//
//   - window: locates the target window and polls its geometry
//   - capture: installs the input hook and queues raw events
//   - macro: Recorder and Player, plus the Timeline they share
//   - safety: stop hotkeys and window-closed detection
//   - session: the lock and per-session cancellation tokens
//
// # Sessions
//
// StartRecording and Play return as soon as the session is running. A
// session ends when its work completes, on Stop, on a stop hotkey, when
// the target window closes, or on Close. Stopping is cooperative: the
// worker finishes the event in flight and then exits. Wait blocks until
// a session has ended and returns its Outcome.
//
// # Status
//
// Status returns the current activity. Subscribe delivers every state
// change and throttled progress updates; subscribers run on engine
// goroutines and must return quickly.
//
// # Basic Usage
//
//	e, err := engine.New(engine.Options{Platform: plat, Config: cfg})
//	if err != nil {
//	    return err
//	}
//	if err := e.Start(ctx); err != nil {
//	    return err
//	}
//	defer e.Close()
//
//	if err := e.StartRecording(ctx, macro.Metadata{Name: "fish"}); err != nil {
//	    return err
//	}
//	// ... user performs the actions ...
//	tl, err := e.StopRecording()
//
//	id, err := e.Play(ctx, tl, 3, 1.0)
//	out, err := e.Wait(ctx, id)
package engine
