package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "winmacro.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	if cfg.Window.Title != "PokeMMO" {
		t.Errorf("Window.Title = %q, want PokeMMO", cfg.Window.Title)
	}
	if cfg.Recording.MoveThreshold != 5 {
		t.Errorf("Recording.MoveThreshold = %d, want 5", cfg.Recording.MoveThreshold)
	}
	if cfg.Recording.MaxDuration.D() != 300*time.Second {
		t.Errorf("Recording.MaxDuration = %v, want 5m0s", cfg.Recording.MaxDuration)
	}
	if cfg.Playback.Speed != 1 || cfg.Playback.Loops != 1 {
		t.Errorf("Playback = %+v, want speed 1 loops 1", cfg.Playback)
	}
	if cfg.Storage.Backend != "file" || cfg.Storage.Dir != "macros" {
		t.Errorf("Storage = %+v, want file backend in macros", cfg.Storage)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, err := LoadWith(path, LoadOptions{SkipEnv: true})
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}
	if cfg.Window.Title != "PokeMMO" {
		t.Errorf("Window.Title = %q, want default", cfg.Window.Title)
	}

	_, err = LoadWith(path, LoadOptions{SkipEnv: true, Required: true})
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("required missing file error = %v, want ErrFileNotFound", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
title = "Notepad"
poll_interval = "250ms"

[playback]
speed = 2.5
loops = 0

[safety]
stop_key = "ctrl+q"
`)

	cfg, err := LoadWith(path, LoadOptions{SkipEnv: true})
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Window.Title != "Notepad" {
		t.Errorf("Window.Title = %q, want Notepad", cfg.Window.Title)
	}
	if cfg.Window.PollInterval.D() != 250*time.Millisecond {
		t.Errorf("Window.PollInterval = %v, want 250ms", cfg.Window.PollInterval)
	}
	if len(cfg.Window.ExcludeTitles) != 1 {
		t.Errorf("Window.ExcludeTitles = %v, want default kept", cfg.Window.ExcludeTitles)
	}
	if cfg.Playback.Speed != 2.5 || cfg.Playback.Loops != 0 {
		t.Errorf("Playback = %+v, want speed 2.5 loops 0", cfg.Playback)
	}
	if cfg.Safety.StopKey != "ctrl+q" {
		t.Errorf("Safety.StopKey = %q, want ctrl+q", cfg.Safety.StopKey)
	}
	if cfg.Recording.MoveThreshold != 5 {
		t.Errorf("Recording.MoveThreshold = %d, want default 5", cfg.Recording.MoveThreshold)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, "[window]\ntitel = \"typo\"\n")
	if _, err := LoadWith(path, LoadOptions{SkipEnv: true}); err == nil {
		t.Error("LoadWith() should reject unknown keys")
	}
}

func TestLoad_SyntaxError(t *testing.T) {
	path := writeConfig(t, "[window\ntitle = 1\n")
	if _, err := LoadWith(path, LoadOptions{SkipEnv: true}); err == nil {
		t.Error("LoadWith() should reject invalid TOML")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[window]\ntitle = \"Notepad\"\n")
	environ := []string{
		"WINMACRO_WINDOW=Calculator",
		"WINMACRO_PLAYBACK_SPEED=2",
		"WINMACRO_PLAYBACK_FOCUS_WAIT=500ms",
		"WINMACRO_CAPTURE_IGNORE_INJECTED=false",
		"WINMACRO_WINDOW_EXCLUDE_TITLES=[\"Overlay\",\"Chat\"]",
		"WINMACRO_LOG_LEVEL=debug",
		"HOME=/root",
	}

	cfg, err := LoadWith(path, LoadOptions{Environ: environ})
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Window.Title != "Calculator" {
		t.Errorf("Window.Title = %q, want Calculator", cfg.Window.Title)
	}
	if cfg.Playback.Speed != 2 {
		t.Errorf("Playback.Speed = %v, want 2", cfg.Playback.Speed)
	}
	if cfg.Playback.FocusWait.D() != 500*time.Millisecond {
		t.Errorf("Playback.FocusWait = %v, want 500ms", cfg.Playback.FocusWait)
	}
	if cfg.Capture.IgnoreInjected {
		t.Error("Capture.IgnoreInjected = true, want false")
	}
	if len(cfg.Window.ExcludeTitles) != 2 || cfg.Window.ExcludeTitles[1] != "Chat" {
		t.Errorf("Window.ExcludeTitles = %v, want [Overlay Chat]", cfg.Window.ExcludeTitles)
	}
	if cfg.LogLevel() != logging.LevelDebug {
		t.Errorf("LogLevel() = %v, want debug", cfg.LogLevel())
	}
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{"unknown section", map[string]any{"nope": map[string]any{"x": 1}}},
		{"unknown setting", map[string]any{"window": map[string]any{"nope": 1}}},
		{"section not table", map[string]any{"window": "x"}},
		{"bad int", map[string]any{"recording": map[string]any{"move_threshold": "many"}}},
		{"fractional int", map[string]any{"recording": map[string]any{"move_threshold": 2.5}}},
		{"bad bool", map[string]any{"mqtt": map[string]any{"enabled": "maybe"}}},
		{"bad duration", map[string]any{"playback": map[string]any{"loop_delay": "soon"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Default().Apply(tt.values); err == nil {
				t.Error("Apply() should fail")
			}
		})
	}
}

func TestApply_CommaList(t *testing.T) {
	cfg := Default()
	err := cfg.Apply(map[string]any{"window": map[string]any{"exclude_titles": "Overlay, Chat ,"}})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(cfg.Window.ExcludeTitles) != 2 || cfg.Window.ExcludeTitles[0] != "Overlay" || cfg.Window.ExcludeTitles[1] != "Chat" {
		t.Errorf("ExcludeTitles = %q, want [Overlay Chat]", cfg.Window.ExcludeTitles)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		path   string
		code   ValidationErrorCode
	}{
		{"empty title", func(c *Config) { c.Window.Title = " " }, "window.title", ErrCodeRequiredMissing},
		{"poll too fast", func(c *Config) { c.Window.PollInterval = Duration(time.Millisecond) }, "window.poll_interval", ErrCodeOutOfRange},
		{"negative threshold", func(c *Config) { c.Recording.MoveThreshold = -1 }, "recording.move_threshold", ErrCodeOutOfRange},
		{"bad category", func(c *Config) { c.Recording.DefaultCategory = "raids" }, "recording.default_category", ErrCodeInvalidEnum},
		{"tiny queue", func(c *Config) { c.Capture.QueueSize = 1 }, "capture.queue_size", ErrCodeOutOfRange},
		{"zero speed", func(c *Config) { c.Playback.Speed = 0 }, "playback.speed", ErrCodeOutOfRange},
		{"negative loops", func(c *Config) { c.Playback.Loops = -2 }, "playback.loops", ErrCodeOutOfRange},
		{"bad stop key", func(c *Config) { c.Safety.StopKey = "ctrl+nothing" }, "safety.stop_key", ErrCodeInvalidBinding},
		{"bad toggle key", func(c *Config) { c.Safety.ToggleRecordingKey = "hyper+x" }, "safety.toggle_recording_key", ErrCodeInvalidBinding},
		{"bad backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend", ErrCodeInvalidEnum},
		{"sqlite without path", func(c *Config) { c.Storage.Backend = "sqlite"; c.Storage.SQLitePath = "" }, "storage.sqlite_path", ErrCodeRequiredMissing},
		{"bad server mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode", ErrCodeInvalidEnum},
		{"mqtt without broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }, "mqtt.broker", ErrCodeRequiredMissing},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos", ErrCodeOutOfRange},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level", ErrCodeInvalidEnum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("Validate() error = %v, want ErrValidationFailed", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error %v is not a ValidationError", err)
			}
			if ve.Path != tt.path {
				t.Errorf("Path = %q, want %q", ve.Path, tt.path)
			}
			if ve.Code != tt.code {
				t.Errorf("Code = %v, want %v", ve.Code, tt.code)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg := Default()
	cfg.Window.Title = ""
	cfg.Playback.Speed = -1
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("Validate() error %T does not join errors", err)
	}
	if n := len(joined.Unwrap()); n != 3 {
		t.Errorf("got %d validation errors, want 3", n)
	}
}

func TestBindings(t *testing.T) {
	cfg := Default()
	stop, stopLoop, err := cfg.StopBindings()
	if err != nil {
		t.Fatalf("StopBindings() error = %v", err)
	}
	if stop.Code != key.CodeEscape {
		t.Errorf("stop = %v, want esc", stop)
	}
	if stopLoop.Code != key.CodeF12 {
		t.Errorf("stop loop = %v, want F12", stopLoop)
	}

	toggle, err := cfg.ToggleBinding()
	if err != nil || toggle.Code != key.CodeBacktick {
		t.Errorf("ToggleBinding() = %v, %v; want backtick", toggle, err)
	}

	cfg.Safety.ToggleRecordingKey = ""
	if toggle, err := cfg.ToggleBinding(); err != nil || toggle.Code != key.CodeNone {
		t.Errorf("empty ToggleBinding() = %v, %v; want zero binding", toggle, err)
	}
}

func TestClone(t *testing.T) {
	cfg := Default()
	cp := cfg.Clone()
	cp.Window.ExcludeTitles[0] = "changed"
	cp.Window.Title = "changed"
	if cfg.Window.ExcludeTitles[0] == "changed" || cfg.Window.Title == "changed" {
		t.Error("Clone() shares state with the original")
	}
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.D() != 90*time.Second {
		t.Errorf("D() = %v, want 1m30s", d.D())
	}
	text, _ := d.MarshalText()
	if string(text) != "1m30s" {
		t.Errorf("MarshalText() = %q, want 1m30s", text)
	}
	if err := d.UnmarshalText([]byte("later")); err == nil {
		t.Error("UnmarshalText(later) should fail")
	}
}
