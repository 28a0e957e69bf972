package key

import "strings"

// Modifier is the set of modifier keys held when a key transition happened.
type Modifier uint8

const (
	ModNone  Modifier = 0
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	// ModMeta is the Windows key.
	ModMeta
)

// Has reports whether any bit of mod is set in m.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// IsEmpty reports whether no modifier is held.
func (m Modifier) IsEmpty() bool {
	return m == ModNone
}

// String returns a representation like "ctrl+alt".
func (m Modifier) String() string {
	if m == ModNone {
		return ""
	}

	var parts []string
	if m.Has(ModCtrl) {
		parts = append(parts, "ctrl")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "alt")
	}
	if m.Has(ModShift) {
		parts = append(parts, "shift")
	}
	if m.Has(ModMeta) {
		parts = append(parts, "meta")
	}
	return strings.Join(parts, "+")
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"shift":   ModShift,
	"meta":    ModMeta,
	"cmd":     ModMeta,
	"command": ModMeta,
	"win":     ModMeta,
	"super":   ModMeta,
}

// ModifierFromName looks up a modifier name such as "ctrl" or "win",
// ignoring case. Unknown names yield ModNone.
func ModifierFromName(name string) Modifier {
	return modifierNames[strings.ToLower(strings.TrimSpace(name))]
}

// State tracks which modifier keys are currently held, fed by key down/up
// events. It is not safe for concurrent use.
type State struct {
	held map[Code]bool
}

// Update records a key transition and returns the resulting modifier set.
func (s *State) Update(c Code, down bool) Modifier {
	if c.IsModifier() {
		if s.held == nil {
			s.held = make(map[Code]bool)
		}
		if down {
			s.held[c] = true
		} else {
			delete(s.held, c)
		}
	}
	return s.Current()
}

// Current returns the modifiers currently held.
func (s *State) Current() Modifier {
	var m Modifier
	for c := range s.held {
		m = m.With(c.Modifier())
	}
	return m
}
