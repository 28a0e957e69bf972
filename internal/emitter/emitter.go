// Package emitter mirrors engine status to an MQTT broker.
//
// Every status change is published as JSON to "<prefix>/status" with
// the retained flag set, so a new subscriber immediately sees the last
// known state. Publishing happens on a worker goroutine; when the broker
// is slower than the engine, intermediate updates are dropped.
package emitter

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/dshills/winmacro/internal/engine"
	"github.com/dshills/winmacro/internal/logging"
)

// DefaultBuffer is the default number of queued status updates.
const DefaultBuffer = 32

// Publisher sends payloads to a topic.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close() error
}

// Source produces status updates.
type Source interface {
	Status() engine.Status
	Subscribe(fn func(engine.Status)) (unsubscribe func())
}

// Options configures a StatusEmitter.
type Options struct {
	// Prefix is the topic prefix; the status topic is Prefix + "/status".
	Prefix string
	QoS    byte
	Buffer int
	Logger *logging.Logger
}

// Stats counts emitter activity.
type Stats struct {
	Published uint64
	Dropped   uint64
	Errors    uint64
}

// StatusEmitter publishes engine status changes.
type StatusEmitter struct {
	pub    Publisher
	topic  string
	qos    byte
	logger *logging.Logger

	mu          sync.Mutex
	closed      bool
	queue       chan engine.Status
	unsubscribe func()
	done        chan struct{}
	closeOnce   sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}

// Start subscribes to src and publishes the current status followed by
// every change until Close.
func Start(src Source, pub Publisher, opts Options) *StatusEmitter {
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	e := &StatusEmitter{
		pub:    pub,
		topic:  StatusTopic(opts.Prefix),
		qos:    opts.QoS,
		logger: opts.Logger.WithComponent("emitter"),
		queue:  make(chan engine.Status, opts.Buffer),
		done:   make(chan struct{}),
	}

	e.enqueue(src.Status())
	e.unsubscribe = src.Subscribe(e.enqueue)
	go e.run()
	return e
}

// StatusTopic returns the status topic for prefix.
func StatusTopic(prefix string) string {
	if prefix == "" {
		return "status"
	}
	return prefix + "/status"
}

// Topic returns the status topic.
func (e *StatusEmitter) Topic() string {
	return e.topic
}

// Stats returns the emitter counters.
func (e *StatusEmitter) Stats() Stats {
	return Stats{
		Published: e.published.Load(),
		Dropped:   e.dropped.Load(),
		Errors:    e.errors.Load(),
	}
}

// Close unsubscribes, publishes what is queued and closes the publisher.
func (e *StatusEmitter) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.unsubscribe()
		e.mu.Lock()
		e.closed = true
		close(e.queue)
		e.mu.Unlock()
		<-e.done
		err = e.pub.Close()
	})
	return err
}

func (e *StatusEmitter) enqueue(st engine.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- st:
	default:
		e.dropped.Add(1)
	}
}

func (e *StatusEmitter) run() {
	defer close(e.done)
	for st := range e.queue {
		payload, err := json.Marshal(st)
		if err != nil {
			e.errors.Add(1)
			e.logger.Error("encode status: %v", err)
			continue
		}
		if err := e.pub.Publish(e.topic, e.qos, true, payload); err != nil {
			e.errors.Add(1)
			e.logger.Warn("publish %s: %v", e.topic, err)
			continue
		}
		e.published.Add(1)
	}
}
