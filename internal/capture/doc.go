// Package capture observes global pointer and keyboard input.
//
// A Capture installs the platform's system-wide input hook. The hook
// callback never blocks: it pushes each raw event into a bounded queue
// and returns. When the consumer falls behind, the oldest unconsumed
// event is dropped and counted as an overrun; Stats exposes the counters
// so the recorder can annotate the timeline.
//
// Only one hook may be installed per process. A second Start, on any
// Capture, fails with ErrCaptureAlreadyActive.
//
// Events are delivered in hook order on the channel returned by Events.
// The channel is closed after Stop once the queue has been drained.
package capture
