package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of winmacro's environment variables.
const EnvPrefix = "WINMACRO_"

// envAliases names variables that don't follow the SECTION_SETTING form.
var envAliases = map[string]string{
	"LOG_LEVEL":  "logging.level",
	"WINDOW":     "window.title",
	"MACROS_DIR": "storage.dir",
	"LISTEN":     "server.addr",
	"MQTT_PASS":  "mqtt.password",
}

// EnvLoader collects prefixed environment variables. The first underscore
// after the prefix separates the section from the setting, so
// WINMACRO_RECORDING_MOVE_THRESHOLD sets recording.move_threshold.
type EnvLoader struct {
	prefix  string
	environ func() []string
}

// NewEnvLoader reads the process environment. prefix includes the
// trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix, environ: os.Environ}
}

// NewEnvLoaderWithEnviron reads environ instead of the process environment.
func NewEnvLoaderWithEnviron(prefix string, environ []string) *EnvLoader {
	return &EnvLoader{prefix: prefix, environ: func() []string { return environ }}
}

// Load returns the variables as map[section]map[setting]value. Empty
// values are kept.
func (l *EnvLoader) Load() (map[string]any, error) {
	out := make(map[string]any)
	for _, kv := range l.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		path := l.envToPath(name)
		if path == "" {
			continue
		}
		section, setting, _ := strings.Cut(path, ".")
		tbl, ok := out[section].(map[string]any)
		if !ok {
			tbl = make(map[string]any)
			out[section] = tbl
		}
		tbl[setting] = parseEnvValue(value)
	}
	return out, nil
}

func (l *EnvLoader) envToPath(env string) string {
	rest := strings.TrimPrefix(env, l.prefix)
	if alias, ok := envAliases[rest]; ok {
		return alias
	}
	section, setting, ok := strings.Cut(strings.ToLower(rest), "_")
	if !ok || section == "" || setting == "" {
		return ""
	}
	return section + "." + setting
}

// parseEnvValue types a raw value: yes/no words become bools, integers
// and decimals become numbers, JSON arrays become lists. Everything
// else, durations included, stays a string for the settings decoder.
func parseEnvValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	case "":
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if strings.HasPrefix(s, "[") {
		var list []any
		if json.Unmarshal([]byte(s), &list) == nil {
			return list
		}
	}
	return s
}
