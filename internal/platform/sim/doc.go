// Package sim provides an in-memory virtual desktop implementing every
// platform capability.
//
// # Windows
//
// Windows are added with AddWindow and can be moved, resized, focused and
// closed at any time from any goroutine. Handles of closed windows stop
// resolving with platform.ErrNoWindow.
//
// # Input
//
// Emit feeds a RawEvent through the installed input hook, and PressKey
// feeds a key transition to every key watcher, the same way an OS would.
// Synthesized input is appended to an action log readable through
// Actions, and synthesized pointer motion moves the virtual cursor.
//
// The desktop is used by tests throughout the module and by the CLI's
// --simulate flag.
package sim
