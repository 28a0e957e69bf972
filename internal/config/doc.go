// Package config loads winmacro's settings.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment Variables   │  ← WINMACRO_SECTION_KEY
//	├─────────────────────────────┤
//	│  2. TOML File               │  ← winmacro.toml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │
//	└─────────────────────────────┘
//
// Command-line flags are applied by the CLI on top of the loaded Config.
//
// # Sub-packages
//
//   - loader: TOML file and environment variable loading into maps
//   - watcher: live reload of the TOML file through fsnotify
//
// # Usage
//
//	cfg, err := config.Load("winmacro.toml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Playback.FocusWait)
//
// Durations are written as Go duration strings ("150ms", "2s"). Key
// bindings use the key package syntax ("esc", "ctrl+F12", "`").
package config
