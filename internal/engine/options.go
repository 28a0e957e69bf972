package engine

import (
	"time"

	"github.com/dshills/winmacro/internal/config"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/platform"
)

// Default configuration values.
const (
	// DefaultProgressInterval throttles progress notifications.
	DefaultProgressInterval = 100 * time.Millisecond

	// DefaultHistory is the number of finished sessions kept for Wait.
	DefaultHistory = 32
)

// Options configures an Engine.
type Options struct {
	// Platform binds the engine to a desktop. Required.
	Platform platform.Platform

	// Config supplies the settings. Defaults to config.Default().
	Config *config.Config

	// Logger defaults to logging.Default().
	Logger *logging.Logger

	// ProgressInterval is the minimum gap between progress
	// notifications within one session. State changes are always
	// published.
	ProgressInterval time.Duration

	// History bounds the finished sessions remembered for Wait.
	History int
}

func (o *Options) setDefaults() {
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.History <= 0 {
		o.History = DefaultHistory
	}
}
