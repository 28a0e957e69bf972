package config

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that reads and writes Go duration strings.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// String returns the duration string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// WindowConfig selects and tracks the target window.
type WindowConfig struct {
	// Title is matched case-insensitively as a substring.
	Title string `toml:"title"`
	// ExcludeTitles skips windows whose title contains any entry.
	ExcludeTitles []string `toml:"exclude_titles"`
	// PollInterval is the geometry refresh period.
	PollInterval Duration `toml:"poll_interval"`
}

// RecordingConfig controls how input is turned into timelines.
type RecordingConfig struct {
	// MoveThreshold skips pointer moves below this many pixels on both axes.
	MoveThreshold int `toml:"move_threshold"`
	// MaxDuration stops a recording that runs longer. Zero disables it.
	MaxDuration Duration `toml:"max_duration"`
	// DefaultCategory is assigned to recordings started without one.
	DefaultCategory string `toml:"default_category"`
}

// CaptureConfig controls the input hook.
type CaptureConfig struct {
	// QueueSize bounds the hook-to-recorder queue.
	QueueSize int `toml:"queue_size"`
	// IgnoreInjected drops events synthesized by software.
	IgnoreInjected bool `toml:"ignore_injected"`
}

// PlaybackConfig controls timeline dispatch.
type PlaybackConfig struct {
	Speed float64 `toml:"speed"`
	// Loops is the default repetition count; 0 repeats until stopped.
	Loops int `toml:"loops"`
	// FocusWait bounds the pause while the window is out of focus.
	FocusWait Duration `toml:"focus_wait"`
	// FocusPoll is the focus re-check period during a pause.
	FocusPoll Duration `toml:"focus_poll"`
	// LoopDelay is inserted between loops.
	LoopDelay Duration `toml:"loop_delay"`
	// CenterBeforeLoop moves the pointer to the window center before
	// each loop.
	CenterBeforeLoop bool `toml:"center_before_loop"`
}

// SafetyConfig holds the stop hotkeys.
type SafetyConfig struct {
	StopKey            string   `toml:"stop_key"`
	StopLoopKey        string   `toml:"stop_loop_key"`
	ToggleRecordingKey string   `toml:"toggle_recording_key"`
	StopOnFocusLoss    bool     `toml:"stop_on_focus_loss"`
	FocusGrace         Duration `toml:"focus_grace"`
}

// StorageConfig selects the macro repository.
type StorageConfig struct {
	// Backend is "file" or "sqlite".
	Backend string `toml:"backend"`
	// Dir holds one directory per category for the file backend.
	Dir string `toml:"dir"`
	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `toml:"sqlite_path"`
}

// ServerConfig configures the HTTP control API.
type ServerConfig struct {
	Addr string `toml:"addr"`
	// Mode is the gin mode: "release", "debug" or "test".
	Mode string `toml:"mode"`
}

// MQTTConfig configures the status emitter.
type MQTTConfig struct {
	Enabled     bool   `toml:"enabled"`
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	QoS         int    `toml:"qos"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
}
