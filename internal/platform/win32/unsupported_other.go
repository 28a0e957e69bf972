//go:build !windows

package win32

import "github.com/dshills/winmacro/internal/platform"

// New returns platform.ErrUnsupported on this system.
func New() (platform.Platform, error) {
	return platform.Platform{}, platform.ErrUnsupported
}
