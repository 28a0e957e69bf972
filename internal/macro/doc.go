// Package macro records and replays input timelines against one window.
//
// # Concepts
//
// A Timeline is an ordered list of input.Event values with offsets
// measured from the start of recording. Pointer positions are stored
// relative to the target window's geometry at the moment each event was
// captured, so a timeline replays correctly after the window moved or
// was resized.
//
// # Recording
//
// A Recorder converts raw hook events into timeline entries:
//
//	rec := macro.NewRecorder(tracker, macro.RecorderOptions{})
//	rec.Begin(handle, macro.Metadata{Name: "fish"})
//	for ev := range capture.Events() {
//	    if err := rec.OnEvent(ev); err != nil {
//	        rec.Fail(err)
//	        break
//	    }
//	}
//	timeline := rec.End()
//
// End always returns the timeline, including a partial one after a
// failure; the failure is kept as a Diagnostic.
//
// # Playback
//
// A Player dispatches a timeline in order. Before each event it waits
// until the event's offset (divided by the speed factor) has elapsed
// since the start of the loop, checks that the window still has focus,
// reads the window's current geometry and synthesizes the event at the
// projected screen position.
//
//	res, err := player.Play(ctx, timeline, macro.PlayOptions{Loops: 3, Speed: 1})
//
// Canceling ctx stops playback at the next event boundary; an event
// already being dispatched completes.
//
// # Persistence
//
// Record is the JSON form of a timeline. Decode validates a record
// wholesale and rejects it with ErrInvalidTimeline rather than loading
// it partially.
package macro
