package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	ErrValidationFailed = errors.New("invalid configuration")
	// ErrFileNotFound is returned when a required file is missing.
	ErrFileNotFound = errors.New("config file not found")
)

// ValidationError reports one invalid setting. Validate joins one per
// failure, so errors.As finds the first and errors.Is matches
// ErrValidationFailed.
type ValidationError struct {
	Path    string // e.g. "playback.speed"
	Message string
	Value   any
	Code    ValidationErrorCode
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

// Is matches ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// ValidationErrorCode classifies a ValidationError.
type ValidationErrorCode uint8

// Validation codes.
const (
	ErrCodeOutOfRange ValidationErrorCode = iota
	ErrCodeInvalidEnum
	ErrCodeRequiredMissing
	ErrCodeInvalidBinding
)

var codeNames = [...]string{
	ErrCodeOutOfRange:      "out_of_range",
	ErrCodeInvalidEnum:     "invalid_enum",
	ErrCodeRequiredMissing: "required_missing",
	ErrCodeInvalidBinding:  "invalid_binding",
}

func (c ValidationErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}
