package key

import (
	"errors"
	"fmt"
	"strings"
)

// Parse errors.
var (
	ErrEmptySpec   = errors.New("empty key specification")
	ErrInvalidSpec = errors.New("invalid key specification")
)

// Binding is a key code together with the modifiers that must be held.
type Binding struct {
	Code      Code
	Modifiers Modifier
}

// String returns the canonical specification, e.g. "ctrl+F12".
func (b Binding) String() string {
	if b.Modifiers.IsEmpty() {
		return b.Code.String()
	}
	return b.Modifiers.String() + "+" + b.Code.String()
}

// Matches returns true if a key with the given code and modifiers triggers
// the binding. Extra modifiers beyond those required do not match.
func (b Binding) Matches(c Code, mods Modifier) bool {
	return b.Code != CodeNone && b.Code == c && b.Modifiers == mods
}

// Parse parses a key specification.
//
// Supported formats:
//   - Single key: "a", "5", "`", "esc", "F12", "space"
//   - With modifiers: "ctrl+s", "alt+F4", "ctrl+shift+p"
//
// A lone "+" refers to the numpad add key.
func Parse(spec string) (Binding, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Binding{}, ErrEmptySpec
	}
	if spec == "+" {
		return Binding{Code: CodeAdd}, nil
	}

	parts := strings.Split(spec, "+")
	keyPart := parts[len(parts)-1]
	if keyPart == "" {
		return Binding{}, fmt.Errorf("%w: %q has no key", ErrInvalidSpec, spec)
	}

	var mods Modifier
	for _, p := range parts[:len(parts)-1] {
		mod := ModifierFromName(p)
		if mod == ModNone {
			return Binding{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidSpec, p)
		}
		mods = mods.With(mod)
	}

	code := CodeFromName(keyPart)
	if code == CodeNone {
		return Binding{}, fmt.Errorf("%w: unknown key %q", ErrInvalidSpec, keyPart)
	}
	return Binding{Code: code, Modifiers: mods}, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(spec string) Binding {
	b, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return b
}
