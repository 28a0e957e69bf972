package win32

import (
	"golang.org/x/sys/windows"

	"github.com/dshills/winmacro/internal/platform"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procGetWindowRect                 = user32.NewProc("GetWindowRect")
	procGetSystemMetrics              = user32.NewProc("GetSystemMetrics")
	procSetWindowsHookExW             = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx           = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx                = user32.NewProc("CallNextHookEx")
	procGetMessageW                   = user32.NewProc("GetMessageW")
	procPostThreadMessageW            = user32.NewProc("PostThreadMessageW")
	procSendInput                     = user32.NewProc("SendInput")
	procSetCursorPos                  = user32.NewProc("SetCursorPos")
	procSetProcessDpiAwarenessContext = user32.NewProc("SetProcessDpiAwarenessContext")
)

// dpiAwarenessPerMonitorV2 is DPI_AWARENESS_CONTEXT_PER_MONITOR_AWARE_V2.
const dpiAwarenessPerMonitorV2 = ^uintptr(3) // (HANDLE)-4

// New returns the Windows binding. The process is made per-monitor DPI
// aware so window rectangles and hook coordinates share physical pixels.
func New() (platform.Platform, error) {
	if err := user32.Load(); err != nil {
		return platform.Platform{}, err
	}
	if procSetProcessDpiAwarenessContext.Find() == nil {
		// Fails when the awareness was already set, e.g. by a manifest.
		procSetProcessDpiAwarenessContext.Call(dpiAwarenessPerMonitorV2)
	}

	return platform.Platform{
		Windows: windowSystem{},
		Hook:    &inputHook{},
		Keys:    &keyWatcher{},
		Synth:   synthesizer{},
		Name:    "win32",
	}, nil
}
