package win32

import (
	"context"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/dshills/winmacro/internal/geometry"
	"github.com/dshills/winmacro/internal/platform"
)

const (
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79

	maxTitle = 512
)

type windowSystem struct{}

// enumState collects windows during one EnumWindows call; enumMu
// serializes calls.
var (
	enumMu       sync.Mutex
	enumState    []platform.WindowInfo
	enumCallback = windows.NewCallback(enumWindowsProc)
)

func enumWindowsProc(hwnd windows.HWND, _ uintptr) uintptr {
	if !windows.IsWindowVisible(hwnd) {
		return 1
	}
	title := windowTitle(hwnd)
	if title == "" {
		return 1
	}
	r, err := windowRect(hwnd)
	if err != nil || r.Empty() {
		return 1
	}
	var pid uint32
	_, _ = windows.GetWindowThreadProcessId(hwnd, &pid)
	enumState = append(enumState, platform.WindowInfo{
		Handle:  platform.Handle(hwnd),
		Title:   title,
		Bounds:  r,
		Visible: true,
		PID:     int(pid),
	})
	return 1
}

func (windowSystem) Windows(ctx context.Context) ([]platform.WindowInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enumMu.Lock()
	defer enumMu.Unlock()

	enumState = nil
	if err := windows.EnumWindows(enumCallback, nil); err != nil {
		return nil, err
	}
	out := enumState
	enumState = nil
	return out, nil
}

func (windowSystem) Bounds(h platform.Handle) (geometry.Rect, error) {
	hwnd := windows.HWND(h)
	if !windows.IsWindow(hwnd) {
		return geometry.Rect{}, platform.ErrNoWindow
	}
	return windowRect(hwnd)
}

func (windowSystem) Foreground() (platform.Handle, error) {
	return platform.Handle(windows.GetForegroundWindow()), nil
}

func (windowSystem) ScreenBounds() geometry.Rect {
	x := systemMetric(smXVirtualScreen)
	y := systemMetric(smYVirtualScreen)
	w := systemMetric(smCXVirtualScreen)
	h := systemMetric(smCYVirtualScreen)
	return geometry.RectFromOriginSize(geometry.Point{X: x, Y: y}, geometry.Size{Width: w, Height: h})
}

func windowRect(hwnd windows.HWND) (geometry.Rect, error) {
	var r windows.Rect
	ok, _, err := procGetWindowRect.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		if !windows.IsWindow(hwnd) {
			return geometry.Rect{}, platform.ErrNoWindow
		}
		return geometry.Rect{}, err
	}
	return geometry.Rect{
		Min: geometry.Point{X: int(r.Left), Y: int(r.Top)},
		Max: geometry.Point{X: int(r.Right), Y: int(r.Bottom)},
	}, nil
}

func windowTitle(hwnd windows.HWND) string {
	buf := make([]uint16, maxTitle)
	n, err := windows.GetWindowText(hwnd, &buf[0], int32(len(buf)))
	if err != nil || n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func systemMetric(index int) int {
	v, _, _ := procGetSystemMetrics.Call(uintptr(index))
	return int(int32(v))
}
