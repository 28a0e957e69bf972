package win32

import (
	"fmt"
	"unsafe"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/input/mouse"
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseeventfLeftDown   = 0x0002
	mouseeventfLeftUp     = 0x0004
	mouseeventfRightDown  = 0x0008
	mouseeventfRightUp    = 0x0010
	mouseeventfMiddleDown = 0x0020
	mouseeventfMiddleUp   = 0x0040
	mouseeventfXDown      = 0x0080
	mouseeventfXUp        = 0x0100
	mouseeventfWheel      = 0x0800
	mouseeventfHWheel     = 0x1000

	keyeventfExtendedKey = 0x0001
	keyeventfKeyUp       = 0x0002

	mapvkVKToVSC = 0
)

var procMapVirtualKeyW = user32.NewProc("MapVirtualKeyW")

type mouseInput struct {
	Dx        int32
	Dy        int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type keybdInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// The INPUT union is as large as MOUSEINPUT; keyboard inputs are padded.
type mouseINPUT struct {
	Type uint32
	Mi   mouseInput
}

type keybdINPUT struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte
}

// synthesizer implements platform.Synthesizer with SendInput.
type synthesizer struct{}

func (synthesizer) MovePointer(p geometry.Point) error {
	r, _, err := procSetCursorPos.Call(uintptr(int32(p.X)), uintptr(int32(p.Y)))
	if r == 0 {
		return fmt.Errorf("SetCursorPos: %w", err)
	}
	return nil
}

func (s synthesizer) Button(p geometry.Point, b mouse.Button, down bool) error {
	if err := s.MovePointer(p); err != nil {
		return err
	}
	var flags, data uint32
	switch b {
	case mouse.ButtonLeft:
		flags = pick(down, mouseeventfLeftDown, mouseeventfLeftUp)
	case mouse.ButtonRight:
		flags = pick(down, mouseeventfRightDown, mouseeventfRightUp)
	case mouse.ButtonMiddle:
		flags = pick(down, mouseeventfMiddleDown, mouseeventfMiddleUp)
	case mouse.ButtonBack:
		flags, data = pick(down, mouseeventfXDown, mouseeventfXUp), xButton1
	case mouse.ButtonForward:
		flags, data = pick(down, mouseeventfXDown, mouseeventfXUp), xButton2
	default:
		return fmt.Errorf("unsupported button %v", b)
	}
	return sendMouse(mouseInput{MouseData: data, Flags: flags})
}

func (s synthesizer) Scroll(p geometry.Point, dx, dy int) error {
	if err := s.MovePointer(p); err != nil {
		return err
	}
	if dy != 0 {
		if err := sendMouse(mouseInput{MouseData: uint32(int32(mouse.NotchesToWheel(dy))), Flags: mouseeventfWheel}); err != nil {
			return err
		}
	}
	if dx != 0 {
		if err := sendMouse(mouseInput{MouseData: uint32(int32(mouse.NotchesToWheel(dx))), Flags: mouseeventfHWheel}); err != nil {
			return err
		}
	}
	return nil
}

func (synthesizer) Key(code key.Code, down bool) error {
	scan, _, _ := procMapVirtualKeyW.Call(uintptr(code), mapvkVKToVSC)
	var flags uint32
	if !down {
		flags |= keyeventfKeyUp
	}
	if extendedKey(code) {
		flags |= keyeventfExtendedKey
	}
	in := keybdINPUT{
		Type: inputKeyboard,
		Ki:   keybdInput{Vk: uint16(code), Scan: uint16(scan), Flags: flags},
	}
	return sendInput(unsafe.Pointer(&in), unsafe.Sizeof(in))
}

func sendMouse(mi mouseInput) error {
	in := mouseINPUT{Type: inputMouse, Mi: mi}
	return sendInput(unsafe.Pointer(&in), unsafe.Sizeof(in))
}

func sendInput(in unsafe.Pointer, size uintptr) error {
	n, _, err := procSendInput.Call(1, uintptr(in), size)
	if n != 1 {
		return fmt.Errorf("SendInput: %w", err)
	}
	return nil
}

func extendedKey(c key.Code) bool {
	switch c {
	case key.CodeLeft, key.CodeUp, key.CodeRight, key.CodeDown,
		key.CodeInsert, key.CodeDelete, key.CodeHome, key.CodeEnd,
		key.CodePageUp, key.CodePageDown, key.CodeDivide, key.CodeNumLock,
		key.CodeRightControl, key.CodeRightAlt, key.CodeLeftMeta, key.CodeRightMeta,
		key.CodePrint:
		return true
	}
	return false
}

func pick(cond bool, a, b uint32) uint32 {
	if cond {
		return a
	}
	return b
}
