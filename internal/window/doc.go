// Package window tracks the on-screen geometry of one target window.
//
// A Tracker locates the window by title, then polls its bounds on a fixed
// interval from a single goroutine. Each poll publishes a new immutable
// geometry.Geometry through an atomic pointer, so readers on the capture
// and playback paths never block on the poller.
//
// # Staleness
//
// A snapshot older than twice the poll interval is reported with
// Snapshot.Stale set. Callers keep using it; the recorder flags events
// captured against stale geometry.
//
// # Loss
//
// Once the window handle stops resolving the tracker closes the channel
// returned by Closed and Geometry fails with ErrWindowClosed. The tracker
// does not re-acquire a lost window on its own; a later Locate does.
package window
