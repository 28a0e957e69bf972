// Package loader reads winmacro configuration sources.
//
// TOMLLoader decodes a TOML file straight into a settings struct, and
// EnvLoader collects WINMACRO_* environment variables into a nested map
// keyed by section and setting name.
package loader

import "os"

// FileSystem reads configuration files. fstest.MapFS satisfies it.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

type osFS struct{}

func (osFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DefaultFS returns the operating system's file system.
func DefaultFS() FileSystem {
	return osFS{}
}
