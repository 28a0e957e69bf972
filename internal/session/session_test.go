package session

import (
	"errors"
	"sync"
	"testing"
)

func TestAcquireExclusive(t *testing.T) {
	l := NewLock()
	tok, err := l.Acquire(KindRecording)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if tok.ID() == "" {
		t.Error("token has empty ID")
	}
	if !l.Busy() || l.Active() != tok {
		t.Error("lock does not report the active token")
	}

	if _, err := l.Acquire(KindPlayback); !errors.Is(err, ErrConcurrentSession) {
		t.Errorf("second Acquire() error = %v, want ErrConcurrentSession", err)
	}
	if tok.State() != StateActive {
		t.Errorf("rejected Acquire changed state to %s", tok.State())
	}

	tok.Finish(nil)
	if l.Busy() {
		t.Error("lock busy after Finish")
	}
	tok2, err := l.Acquire(KindPlayback)
	if err != nil {
		t.Fatalf("Acquire() after Finish error = %v", err)
	}
	if tok2.ID() == tok.ID() {
		t.Error("session IDs repeat")
	}
	if l.Last() != tok2 {
		t.Error("Last() is not the newest token")
	}
}

func TestConcurrentAcquire(t *testing.T) {
	l := NewLock()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(KindPlayback); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("%d goroutines acquired the lock, want 1", wins)
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		name   string
		cancel bool
		err    error
		want   State
	}{
		{"complete", false, nil, StateStopped},
		{"stopped", true, nil, StateStopped},
		{"failed", false, errors.New("boom"), StateFailed},
		{"failed while stopping", true, errors.New("boom"), StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, _ := NewLock().Acquire(KindPlayback)
			if tt.cancel {
				if !tok.Cancel(ReasonUser) {
					t.Fatal("Cancel() on active session returned false")
				}
				if tok.State() != StateStopping {
					t.Fatalf("state after Cancel = %s, want stopping", tok.State())
				}
				select {
				case <-tok.Stopping():
				default:
					t.Fatal("Stopping() not closed after Cancel")
				}
			}
			tok.Finish(tt.err)
			if tok.State() != tt.want {
				t.Errorf("state = %s, want %s", tok.State(), tt.want)
			}
			select {
			case <-tok.Done():
			default:
				t.Error("Done() not closed after Finish")
			}
			if !errors.Is(tok.Err(), tt.err) {
				t.Errorf("Err() = %v, want %v", tok.Err(), tt.err)
			}
		})
	}
}

func TestNoBackwardTransitions(t *testing.T) {
	tok, _ := NewLock().Acquire(KindRecording)
	tok.Cancel(ReasonStopKey)
	if tok.Cancel(ReasonUser) {
		t.Error("second Cancel() returned true")
	}
	if tok.Reason() != ReasonStopKey {
		t.Errorf("Reason() = %q, want first reason", tok.Reason())
	}

	tok.Finish(nil)
	tok.Finish(errors.New("late"))
	if tok.State() != StateStopped {
		t.Errorf("state after late Finish = %s, want stopped", tok.State())
	}
	if tok.Cancel(ReasonUser) {
		t.Error("Cancel() on finished session returned true")
	}
}

func TestStrings(t *testing.T) {
	if KindRecording.String() != "recording" || KindPlayback.String() != "playback" {
		t.Error("unexpected kind names")
	}
	if StateStopping.String() != "stopping" || !StateFailed.Terminal() || StateActive.Terminal() {
		t.Error("unexpected state helpers")
	}
}
