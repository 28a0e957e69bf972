package config

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/winmacro/internal/config/loader"
	"github.com/dshills/winmacro/internal/input/key"
	"github.com/dshills/winmacro/internal/logging"
	"github.com/dshills/winmacro/internal/macro"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "winmacro.toml"

// Config holds every winmacro setting.
type Config struct {
	Window    WindowConfig    `toml:"window"`
	Recording RecordingConfig `toml:"recording"`
	Capture   CaptureConfig   `toml:"capture"`
	Playback  PlaybackConfig  `toml:"playback"`
	Safety    SafetyConfig    `toml:"safety"`
	Storage   StorageConfig   `toml:"storage"`
	Server    ServerConfig    `toml:"server"`
	MQTT      MQTTConfig      `toml:"mqtt"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:         "PokeMMO",
			ExcludeTitles: []string{"PokeMMO Overlay"},
			PollInterval:  Duration(100 * time.Millisecond),
		},
		Recording: RecordingConfig{
			MoveThreshold:   macro.DefaultMoveThreshold,
			MaxDuration:     Duration(macro.DefaultMaxDuration),
			DefaultCategory: string(macro.CategoryCustom),
		},
		Capture: CaptureConfig{
			QueueSize:      1024,
			IgnoreInjected: true,
		},
		Playback: PlaybackConfig{
			Speed:     1.0,
			Loops:     1,
			FocusWait: Duration(macro.DefaultFocusWait),
			FocusPoll: Duration(macro.DefaultFocusPoll),
		},
		Safety: SafetyConfig{
			StopKey:            "esc",
			StopLoopKey:        "F12",
			ToggleRecordingKey: "`",
			StopOnFocusLoss:    false,
			FocusGrace:         Duration(2 * time.Second),
		},
		Storage: StorageConfig{
			Backend:    "file",
			Dir:        "macros",
			SQLitePath: "winmacro.db",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
			Mode: "release",
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "winmacro",
			TopicPrefix: "winmacro",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadOptions controls Load.
type LoadOptions struct {
	// Required makes a missing file an error.
	Required bool
	// FS overrides the file system.
	FS loader.FileSystem
	// Environ overrides the process environment. Nil reads os.Environ.
	Environ []string
	// SkipEnv ignores environment variables.
	SkipEnv bool
}

// Load reads defaults, then path, then WINMACRO_* variables, and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	return LoadWith(path, LoadOptions{})
}

// LoadWith is Load with options.
func LoadWith(path string, opts LoadOptions) (*Config, error) {
	cfg := Default()

	if path != "" {
		fsys := opts.FS
		if fsys == nil {
			fsys = loader.DefaultFS()
		}
		found, err := loader.NewTOMLLoaderWithFS(fsys, path).Decode(cfg)
		if err != nil {
			return nil, err
		}
		if !found && opts.Required {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
	}

	if !opts.SkipEnv {
		env := loader.NewEnvLoader(loader.EnvPrefix)
		if opts.Environ != nil {
			env = loader.NewEnvLoaderWithEnviron(loader.EnvPrefix, opts.Environ)
		}
		values, err := env.Load()
		if err != nil {
			return nil, fmt.Errorf("loading environment: %w", err)
		}
		if err := cfg.Apply(values); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply overrides settings from a nested map keyed by section and TOML
// setting name, as produced by loader.EnvLoader. Unknown keys are errors.
func (c *Config) Apply(values map[string]any) error {
	root := reflect.ValueOf(c).Elem()
	for section, raw := range values {
		sec, ok := fieldByTag(root, section)
		if !ok {
			return fmt.Errorf("unknown config section %q", section)
		}
		settings, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("config section %q must be a table", section)
		}
		for name, v := range settings {
			f, ok := fieldByTag(sec, name)
			if !ok {
				return fmt.Errorf("unknown setting %s.%s", section, name)
			}
			if err := assign(f, v); err != nil {
				return fmt.Errorf("setting %s.%s: %w", section, name, err)
			}
		}
	}
	return nil
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
		if name == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

var textUnmarshaler = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func assign(f reflect.Value, v any) error {
	if f.CanAddr() && f.Addr().Type().Implements(textUnmarshaler) {
		return f.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(fmt.Sprint(v)))
	}

	switch f.Kind() {
	case reflect.String:
		f.SetString(fmt.Sprint(v))
	case reflect.Bool:
		switch b := v.(type) {
		case bool:
			f.SetBool(b)
		default:
			parsed, err := strconv.ParseBool(fmt.Sprint(v))
			if err != nil {
				return fmt.Errorf("expected boolean, got %v", v)
			}
			f.SetBool(parsed)
		}
	case reflect.Int, reflect.Int64:
		switch n := v.(type) {
		case int64:
			f.SetInt(n)
		case float64:
			if n != float64(int64(n)) {
				return fmt.Errorf("expected integer, got %v", v)
			}
			f.SetInt(int64(n))
		default:
			parsed, err := strconv.ParseInt(fmt.Sprint(v), 10, 64)
			if err != nil {
				return fmt.Errorf("expected integer, got %v", v)
			}
			f.SetInt(parsed)
		}
	case reflect.Float64:
		switch n := v.(type) {
		case float64:
			f.SetFloat(n)
		case int64:
			f.SetFloat(float64(n))
		default:
			parsed, err := strconv.ParseFloat(fmt.Sprint(v), 64)
			if err != nil {
				return fmt.Errorf("expected number, got %v", v)
			}
			f.SetFloat(parsed)
		}
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list type %s", f.Type())
		}
		var items []string
		switch list := v.(type) {
		case []any:
			for _, item := range list {
				items = append(items, fmt.Sprint(item))
			}
		default:
			for _, item := range strings.Split(fmt.Sprint(v), ",") {
				if item = strings.TrimSpace(item); item != "" {
					items = append(items, item)
				}
			}
		}
		f.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported setting type %s", f.Type())
	}
	return nil
}

// Validate checks every setting and returns all failures joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(path, msg string, value any, code ValidationErrorCode) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: value, Code: code})
	}

	if strings.TrimSpace(c.Window.Title) == "" {
		add("window.title", "must not be empty", c.Window.Title, ErrCodeRequiredMissing)
	}
	if c.Window.PollInterval.D() < 10*time.Millisecond || c.Window.PollInterval.D() > 5*time.Second {
		add("window.poll_interval", "must be between 10ms and 5s", c.Window.PollInterval, ErrCodeOutOfRange)
	}

	if c.Recording.MoveThreshold < 0 || c.Recording.MoveThreshold > 100 {
		add("recording.move_threshold", "must be between 0 and 100", c.Recording.MoveThreshold, ErrCodeOutOfRange)
	}
	if c.Recording.MaxDuration.D() < 0 {
		add("recording.max_duration", "must not be negative", c.Recording.MaxDuration, ErrCodeOutOfRange)
	}
	if _, err := macro.ParseCategory(c.Recording.DefaultCategory); err != nil {
		add("recording.default_category", err.Error(), c.Recording.DefaultCategory, ErrCodeInvalidEnum)
	}

	if c.Capture.QueueSize < 16 || c.Capture.QueueSize > 1<<20 {
		add("capture.queue_size", "must be between 16 and 1048576", c.Capture.QueueSize, ErrCodeOutOfRange)
	}

	if c.Playback.Speed <= 0 || c.Playback.Speed > 100 {
		add("playback.speed", "must be greater than 0 and at most 100", c.Playback.Speed, ErrCodeOutOfRange)
	}
	if c.Playback.Loops < 0 {
		add("playback.loops", "must not be negative", c.Playback.Loops, ErrCodeOutOfRange)
	}
	if c.Playback.FocusWait.D() < 0 {
		add("playback.focus_wait", "must not be negative", c.Playback.FocusWait, ErrCodeOutOfRange)
	}
	if c.Playback.FocusPoll.D() <= 0 {
		add("playback.focus_poll", "must be positive", c.Playback.FocusPoll, ErrCodeOutOfRange)
	}
	if c.Playback.LoopDelay.D() < 0 {
		add("playback.loop_delay", "must not be negative", c.Playback.LoopDelay, ErrCodeOutOfRange)
	}

	for path, spec := range map[string]string{
		"safety.stop_key":      c.Safety.StopKey,
		"safety.stop_loop_key": c.Safety.StopLoopKey,
	} {
		if _, err := key.Parse(spec); err != nil {
			add(path, err.Error(), spec, ErrCodeInvalidBinding)
		}
	}
	if c.Safety.ToggleRecordingKey != "" {
		if _, err := key.Parse(c.Safety.ToggleRecordingKey); err != nil {
			add("safety.toggle_recording_key", err.Error(), c.Safety.ToggleRecordingKey, ErrCodeInvalidBinding)
		}
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.Dir == "" {
			add("storage.dir", "must not be empty", c.Storage.Dir, ErrCodeRequiredMissing)
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			add("storage.sqlite_path", "must not be empty", c.Storage.SQLitePath, ErrCodeRequiredMissing)
		}
	default:
		add("storage.backend", `must be "file" or "sqlite"`, c.Storage.Backend, ErrCodeInvalidEnum)
	}

	switch c.Server.Mode {
	case "release", "debug", "test":
	default:
		add("server.mode", `must be "release", "debug" or "test"`, c.Server.Mode, ErrCodeInvalidEnum)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		add("mqtt.broker", "required when mqtt is enabled", c.MQTT.Broker, ErrCodeRequiredMissing)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		add("mqtt.qos", "must be 0, 1 or 2", c.MQTT.QoS, ErrCodeOutOfRange)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", err.Error(), c.Logging.Level, ErrCodeInvalidEnum)
	}

	return errors.Join(errs...)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Window.ExcludeTitles = append([]string(nil), c.Window.ExcludeTitles...)
	return &cp
}

// StopBindings returns the parsed emergency stop and stop-loop keys.
func (c *Config) StopBindings() (stop, stopLoop key.Binding, err error) {
	if stop, err = key.Parse(c.Safety.StopKey); err != nil {
		return stop, stopLoop, fmt.Errorf("safety.stop_key: %w", err)
	}
	if stopLoop, err = key.Parse(c.Safety.StopLoopKey); err != nil {
		return stop, stopLoop, fmt.Errorf("safety.stop_loop_key: %w", err)
	}
	return stop, stopLoop, nil
}

// ToggleBinding returns the parsed toggle-recording key, or a zero binding
// when none is configured.
func (c *Config) ToggleBinding() (key.Binding, error) {
	if c.Safety.ToggleRecordingKey == "" {
		return key.Binding{}, nil
	}
	return key.Parse(c.Safety.ToggleRecordingKey)
}

// LogLevel returns the parsed logging level.
func (c *Config) LogLevel() logging.Level {
	lvl, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.LevelInfo
	}
	return lvl
}
