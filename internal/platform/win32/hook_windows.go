package win32

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
	"github.com/dshills/winmacro/internal/platform"
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit        = 0x0012
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C
	wmMouseHWheel = 0x020E

	llmhfInjected = 0x01
	llkhfInjected = 0x10

	xButton1 = 1
	xButton2 = 2
)

type point struct {
	X, Y int32
}

type msllHookStruct struct {
	Pt        point
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type kbdllHookStruct struct {
	VkCode    uint32
	ScanCode  uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type msg struct {
	Hwnd    windows.HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
	Private uint32
}

// Hook procedures are created once; the active handlers are swapped in
// and out through these pointers.
var (
	captureFn atomic.Pointer[func(platform.RawEvent)]
	watchFn   atomic.Pointer[func(platform.KeyStroke)]

	mouseCallback      = windows.NewCallback(mouseProc)
	captureKeyCallback = windows.NewCallback(captureKeyProc)
	watchKeyCallback   = windows.NewCallback(watchKeyProc)
)

func callNext(code int, wparam, lparam uintptr) uintptr {
	r, _, _ := procCallNextHookEx.Call(0, uintptr(code), wparam, lparam)
	return r
}

func mouseProc(code int, wparam, lparam uintptr) uintptr {
	if code >= 0 {
		if fn := captureFn.Load(); fn != nil {
			info := (*msllHookStruct)(unsafe.Pointer(lparam))
			if ev, ok := mouseEvent(uint32(wparam), info); ok {
				(*fn)(ev)
			}
		}
	}
	return callNext(code, wparam, lparam)
}

func captureKeyProc(code int, wparam, lparam uintptr) uintptr {
	if code >= 0 {
		if fn := captureFn.Load(); fn != nil {
			info := (*kbdllHookStruct)(unsafe.Pointer(lparam))
			if down, ok := keyDown(uint32(wparam)); ok {
				(*fn)(platform.RawEvent{
					Kind:     input.KindKey,
					Time:     time.Now(),
					Code:     key.Code(info.VkCode),
					Down:     down,
					Injected: info.Flags&llkhfInjected != 0,
				})
			}
		}
	}
	return callNext(code, wparam, lparam)
}

func watchKeyProc(code int, wparam, lparam uintptr) uintptr {
	if code >= 0 {
		if fn := watchFn.Load(); fn != nil {
			info := (*kbdllHookStruct)(unsafe.Pointer(lparam))
			if down, ok := keyDown(uint32(wparam)); ok {
				(*fn)(platform.KeyStroke{
					Code:     key.Code(info.VkCode),
					Down:     down,
					Injected: info.Flags&llkhfInjected != 0,
				})
			}
		}
	}
	return callNext(code, wparam, lparam)
}

func keyDown(message uint32) (down, ok bool) {
	switch message {
	case wmKeyDown, wmSysKeyDown:
		return true, true
	case wmKeyUp, wmSysKeyUp:
		return false, true
	}
	return false, false
}

func mouseEvent(message uint32, info *msllHookStruct) (platform.RawEvent, bool) {
	ev := platform.RawEvent{
		Time:     time.Now(),
		Point:    geometry.Point{X: int(info.Pt.X), Y: int(info.Pt.Y)},
		Injected: info.Flags&llmhfInjected != 0,
	}
	wheel := mouse.WheelToNotches(int(int16(info.MouseData >> 16)))

	switch message {
	case wmMouseMove:
		ev.Kind = input.KindPointerMove
	case wmLButtonDown, wmLButtonUp:
		ev.Kind, ev.Button, ev.Down = input.KindPointerButton, mouse.ButtonLeft, message == wmLButtonDown
	case wmRButtonDown, wmRButtonUp:
		ev.Kind, ev.Button, ev.Down = input.KindPointerButton, mouse.ButtonRight, message == wmRButtonDown
	case wmMButtonDown, wmMButtonUp:
		ev.Kind, ev.Button, ev.Down = input.KindPointerButton, mouse.ButtonMiddle, message == wmMButtonDown
	case wmXButtonDown, wmXButtonUp:
		ev.Kind, ev.Down = input.KindPointerButton, message == wmXButtonDown
		switch info.MouseData >> 16 {
		case xButton1:
			ev.Button = mouse.ButtonBack
		case xButton2:
			ev.Button = mouse.ButtonForward
		default:
			return ev, false
		}
	case wmMouseWheel:
		ev.Kind, ev.DeltaY = input.KindScroll, wheel
	case wmMouseHWheel:
		ev.Kind, ev.DeltaX = input.KindScroll, wheel
	default:
		return ev, false
	}
	return ev, true
}

type hookSpec struct {
	id   int
	proc uintptr
}

// hookThread owns low-level hooks installed on a locked OS thread that
// pumps messages until stopped.
type hookThread struct {
	tid  uint32
	done chan struct{}
}

func startHookThread(hooks ...hookSpec) (*hookThread, error) {
	t := &hookThread{done: make(chan struct{})}
	ready := make(chan error, 1)

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(t.done)

		t.tid = windows.GetCurrentThreadId()
		handles := make([]uintptr, 0, len(hooks))
		defer func() {
			for _, h := range handles {
				procUnhookWindowsHookEx.Call(h)
			}
		}()
		for _, spec := range hooks {
			h, _, err := procSetWindowsHookExW.Call(uintptr(spec.id), spec.proc, 0, 0)
			if h == 0 {
				ready <- fmt.Errorf("SetWindowsHookEx(%d): %w", spec.id, err)
				return
			}
			handles = append(handles, h)
		}
		ready <- nil

		var m msg
		for {
			r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
			if int32(r) <= 0 {
				return
			}
		}
	}()

	if err := <-ready; err != nil {
		<-t.done
		return nil, err
	}
	return t, nil
}

func (t *hookThread) stop() error {
	r, _, err := procPostThreadMessageW.Call(uintptr(t.tid), wmQuit, 0, 0)
	if r == 0 {
		return fmt.Errorf("PostThreadMessage: %w", err)
	}
	<-t.done
	return nil
}

// inputHook implements platform.InputHook.
type inputHook struct {
	mu     sync.Mutex
	thread *hookThread
}

func (h *inputHook) Install(fn func(platform.RawEvent)) (func() error, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.thread != nil {
		return nil, platform.ErrHookInstalled
	}

	captureFn.Store(&fn)
	t, err := startHookThread(hookSpec{whMouseLL, mouseCallback}, hookSpec{whKeyboardLL, captureKeyCallback})
	if err != nil {
		captureFn.Store(nil)
		return nil, err
	}
	h.thread = t

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			err = t.stop()
			captureFn.Store(nil)
			h.mu.Lock()
			h.thread = nil
			h.mu.Unlock()
		})
		return err
	}, nil
}

// keyWatcher implements platform.KeyWatcher with its own keyboard hook
// thread, independent of the capture hook.
type keyWatcher struct {
	mu     sync.Mutex
	thread *hookThread
}

func (w *keyWatcher) WatchKeys(fn func(platform.KeyStroke)) (func() error, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.thread != nil {
		return nil, platform.ErrHookInstalled
	}

	watchFn.Store(&fn)
	t, err := startHookThread(hookSpec{whKeyboardLL, watchKeyCallback})
	if err != nil {
		watchFn.Store(nil)
		return nil, err
	}
	w.thread = t

	var once sync.Once
	return func() error {
		var err error
		once.Do(func() {
			err = t.stop()
			watchFn.Store(nil)
			w.mu.Lock()
			w.thread = nil
			w.mu.Unlock()
		})
		return err
	}, nil
}
