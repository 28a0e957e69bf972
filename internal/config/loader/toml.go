package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"

	"github.com/pelletier/go-toml/v2"
)

// TOMLLoader loads configuration from a TOML file.
type TOMLLoader struct {
	fs     FileSystem
	path   string
	strict bool
}

// NewTOMLLoader creates a TOML loader for the given path.
func NewTOMLLoader(path string) *TOMLLoader {
	return &TOMLLoader{
		fs:     DefaultFS(),
		path:   path,
		strict: true,
	}
}

// NewTOMLLoaderWithFS creates a TOML loader with a custom file system.
func NewTOMLLoaderWithFS(fsys FileSystem, path string) *TOMLLoader {
	return &TOMLLoader{
		fs:     fsys,
		path:   path,
		strict: true,
	}
}

// Lenient makes Decode ignore keys with no matching field.
func (l *TOMLLoader) Lenient() *TOMLLoader {
	l.strict = false
	return l
}

// Path returns the file path.
func (l *TOMLLoader) Path() string {
	return l.path
}

// Load reads the file into a generic map.
func (l *TOMLLoader) Load() (map[string]any, error) {
	data, err := l.read()
	if err != nil || data == nil {
		return nil, err
	}
	var config map[string]any
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, l.parseError(err)
	}
	return config, nil
}

// Decode reads the file into v, leaving fields absent from the file
// untouched. found is false when the file doesn't exist.
func (l *TOMLLoader) Decode(v any) (found bool, err error) {
	data, err := l.read()
	if err != nil || data == nil {
		return false, err
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	if l.strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(v); err != nil {
		return true, l.parseError(err)
	}
	return true, nil
}

func (l *TOMLLoader) read() ([]byte, error) {
	data, err := l.fs.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil // File doesn't exist, not an error
		}
		return nil, fmt.Errorf("reading config file %s: %w", l.path, err)
	}
	return data, nil
}

func (l *TOMLLoader) parseError(err error) error {
	pe := &ParseError{Path: l.path, Message: err.Error(), Err: err}

	var decErr *toml.DecodeError
	if errors.As(err, &decErr) {
		pe.Line, pe.Column = decErr.Position()
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) && len(strictErr.Errors) > 0 {
		first := strictErr.Errors[0]
		pe.Line, pe.Column = first.Position()
		pe.Message = fmt.Sprintf("unknown setting %v", first.Key())
	}
	return pe
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
