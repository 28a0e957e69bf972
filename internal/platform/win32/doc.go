// Package win32 binds the platform interfaces to the Windows API.
//
// Windows are enumerated with EnumWindows and measured with
// GetWindowRect. Global input is observed with low-level hooks
// (WH_MOUSE_LL, WH_KEYBOARD_LL), each running on its own locked OS
// thread with a message loop. Input is synthesized with SendInput.
//
// On other systems New returns platform.ErrUnsupported.
package win32
