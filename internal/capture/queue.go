package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/winmacro/internal/platform"
)

// DefaultQueueSize is the capture queue capacity.
const DefaultQueueSize = 1024

// Queue is a bounded FIFO of raw events that drops its oldest entry when
// full. Push never blocks.
type Queue struct {
	mu     sync.Mutex
	buf    []platform.RawEvent
	head   int
	count  int
	closed bool
	notify chan struct{}

	pushed   atomic.Uint64
	dropped  atomic.Uint64
	consumed atomic.Uint64
}

// NewQueue creates a queue holding at most size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		buf:    make([]platform.RawEvent, size),
		notify: make(chan struct{}, 1),
	}
}

// Push appends ev. If the queue is full the oldest event is discarded and
// counted. Pushing to a closed queue is a no-op that returns false.
func (q *Queue) Push(ev platform.RawEvent) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped.Add(1)
	}
	q.buf[(q.head+q.count)%len(q.buf)] = ev
	q.count++
	q.mu.Unlock()

	q.pushed.Add(1)
	q.signal()
	return true
}

// TryPop removes the oldest event without waiting.
func (q *Queue) TryPop() (platform.RawEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *Queue) popLocked() (platform.RawEvent, bool) {
	if q.count == 0 {
		return platform.RawEvent{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = platform.RawEvent{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.consumed.Add(1)
	return ev, true
}

// Pop waits for the next event. It returns false when ctx is done or the
// queue is closed and empty. Events queued before Close are still
// returned.
func (q *Queue) Pop(ctx context.Context) (platform.RawEvent, bool) {
	for {
		q.mu.Lock()
		ev, ok := q.popLocked()
		closed := q.closed
		q.mu.Unlock()

		if ok {
			return ev, true
		}
		if closed {
			return platform.RawEvent{}, false
		}

		select {
		case <-ctx.Done():
			return platform.RawEvent{}, false
		case <-q.notify:
		}
	}
}

// Close stops accepting events and wakes waiting consumers.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return len(q.buf)
}

// Dropped returns the number of events discarded on overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
