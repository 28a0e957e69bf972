package emitter

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dshills/winmacro/internal/engine"
)

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	msgs   []message
	fail   error
	block  chan struct{}
	closed bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.msgs = append(p.msgs, message{topic, qos, retained, payload})
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) messages() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message(nil), p.msgs...)
}

type fakeSource struct {
	mu     sync.Mutex
	status engine.Status
	subs   map[int]func(engine.Status)
	next   int
}

func newSource() *fakeSource {
	return &fakeSource{status: engine.Status{State: engine.StateIdle}, subs: make(map[int]func(engine.Status))}
}

func (s *fakeSource) Status() engine.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *fakeSource) Subscribe(fn func(engine.Status)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *fakeSource) publish(st engine.Status) {
	s.mu.Lock()
	s.status = st
	fns := make([]func(engine.Status), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

func (s *fakeSource) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func TestStatusTopic(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"winmacro", "winmacro/status"},
		{"home/pc1", "home/pc1/status"},
		{"", "status"},
	}
	for _, tt := range tests {
		if got := StatusTopic(tt.prefix); got != tt.want {
			t.Errorf("StatusTopic(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestEmitterPublishesStatus(t *testing.T) {
	src := newSource()
	pub := &fakePublisher{}
	e := Start(src, pub, Options{Prefix: "winmacro", QoS: 1})

	src.publish(engine.Status{State: engine.StateRecording, Macro: "route"})
	src.publish(engine.Status{State: engine.StateStopped, Macro: "route", Events: 4})

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	msgs := pub.messages()
	if len(msgs) != 3 {
		t.Fatalf("published %d messages, want 3", len(msgs))
	}
	want := []engine.State{engine.StateIdle, engine.StateRecording, engine.StateStopped}
	for i, m := range msgs {
		if m.topic != "winmacro/status" || m.qos != 1 || !m.retained {
			t.Errorf("message %d = %s qos %d retained %v", i, m.topic, m.qos, m.retained)
		}
		var st engine.Status
		if err := json.Unmarshal(m.payload, &st); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if st.State != want[i] {
			t.Errorf("message %d state = %q, want %q", i, st.State, want[i])
		}
	}
	if !pub.closed {
		t.Error("publisher not closed")
	}
	if src.subscribers() != 0 {
		t.Error("emitter still subscribed after Close")
	}
	if s := e.Stats(); s.Published != 3 || s.Errors != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestEmitterCountsErrors(t *testing.T) {
	src := newSource()
	pub := &fakePublisher{fail: errors.New("broker down")}
	e := Start(src, pub, Options{Prefix: "x"})
	src.publish(engine.Status{State: engine.StatePlaying})
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if s := e.Stats(); s.Errors != 2 || s.Published != 0 {
		t.Errorf("Stats() = %+v, want 2 errors", s)
	}
}

func TestEmitterDropsWhenBehind(t *testing.T) {
	src := newSource()
	pub := &fakePublisher{block: make(chan struct{})}
	e := Start(src, pub, Options{Buffer: 2})

	for i := 0; i < 10; i++ {
		src.publish(engine.Status{State: engine.StatePlaying, Events: i})
	}
	deadline := time.Now().Add(time.Second)
	for e.Stats().Dropped == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(pub.block)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	s := e.Stats()
	if s.Dropped == 0 {
		t.Error("no updates dropped with a blocked publisher")
	}
	if s.Published+s.Dropped != 11 {
		t.Errorf("published %d + dropped %d, want 11", s.Published, s.Dropped)
	}
}

func TestEmitterCloseIdempotent(t *testing.T) {
	src := newSource()
	e := Start(src, &fakePublisher{}, Options{})
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	src.publish(engine.Status{State: engine.StateIdle})
}
