package key

import (
	"fmt"
	"strings"
)

// Code is a virtual key code.
type Code uint16

// Virtual key codes.
const (
	CodeNone      Code = 0x00
	CodeBackspace Code = 0x08
	CodeTab       Code = 0x09
	CodeEnter     Code = 0x0D
	CodeShift     Code = 0x10
	CodeControl   Code = 0x11
	CodeAlt       Code = 0x12
	CodePause     Code = 0x13
	CodeCapsLock  Code = 0x14
	CodeEscape    Code = 0x1B
	CodeSpace     Code = 0x20
	CodePageUp    Code = 0x21
	CodePageDown  Code = 0x22
	CodeEnd       Code = 0x23
	CodeHome      Code = 0x24
	CodeLeft      Code = 0x25
	CodeUp        Code = 0x26
	CodeRight     Code = 0x27
	CodeDown      Code = 0x28
	CodePrint     Code = 0x2C
	CodeInsert    Code = 0x2D
	CodeDelete    Code = 0x2E

	// Code0 through Code9 and CodeA through CodeZ match their ASCII values.
	Code0 Code = 0x30
	Code9 Code = 0x39
	CodeA Code = 0x41
	CodeZ Code = 0x5A

	CodeLeftMeta  Code = 0x5B
	CodeRightMeta Code = 0x5C

	CodeNumpad0  Code = 0x60
	CodeNumpad9  Code = 0x69
	CodeMultiply Code = 0x6A
	CodeAdd      Code = 0x6B
	CodeSubtract Code = 0x6D
	CodeDecimal  Code = 0x6E
	CodeDivide   Code = 0x6F

	CodeF1  Code = 0x70
	CodeF12 Code = 0x7B
	CodeF24 Code = 0x87

	CodeNumLock    Code = 0x90
	CodeScrollLock Code = 0x91

	CodeLeftShift    Code = 0xA0
	CodeRightShift   Code = 0xA1
	CodeLeftControl  Code = 0xA2
	CodeRightControl Code = 0xA3
	CodeLeftAlt      Code = 0xA4
	CodeRightAlt     Code = 0xA5

	CodeSemicolon    Code = 0xBA
	CodeEquals       Code = 0xBB
	CodeComma        Code = 0xBC
	CodeMinus        Code = 0xBD
	CodePeriod       Code = 0xBE
	CodeSlash        Code = 0xBF
	CodeBacktick     Code = 0xC0
	CodeLeftBracket  Code = 0xDB
	CodeBackslash    Code = 0xDC
	CodeRightBracket Code = 0xDD
	CodeQuote        Code = 0xDE
)

var codeNames = map[Code]string{
	CodeBackspace:    "backspace",
	CodeTab:          "tab",
	CodeEnter:        "enter",
	CodeShift:        "shift",
	CodeControl:      "ctrl",
	CodeAlt:          "alt",
	CodePause:        "pause",
	CodeCapsLock:     "capslock",
	CodeEscape:       "esc",
	CodeSpace:        "space",
	CodePageUp:       "pageup",
	CodePageDown:     "pagedown",
	CodeEnd:          "end",
	CodeHome:         "home",
	CodeLeft:         "left",
	CodeUp:           "up",
	CodeRight:        "right",
	CodeDown:         "down",
	CodePrint:        "printscreen",
	CodeInsert:       "insert",
	CodeDelete:       "delete",
	CodeLeftMeta:     "lmeta",
	CodeRightMeta:    "rmeta",
	CodeMultiply:     "kp*",
	CodeAdd:          "kp+",
	CodeSubtract:     "kp-",
	CodeDecimal:      "kp.",
	CodeDivide:       "kp/",
	CodeNumLock:      "numlock",
	CodeScrollLock:   "scrolllock",
	CodeLeftShift:    "lshift",
	CodeRightShift:   "rshift",
	CodeLeftControl:  "lctrl",
	CodeRightControl: "rctrl",
	CodeLeftAlt:      "lalt",
	CodeRightAlt:     "ralt",
	CodeSemicolon:    ";",
	CodeEquals:       "=",
	CodeComma:        ",",
	CodeMinus:        "-",
	CodePeriod:       ".",
	CodeSlash:        "/",
	CodeBacktick:     "`",
	CodeLeftBracket:  "[",
	CodeBackslash:    "\\",
	CodeRightBracket: "]",
	CodeQuote:        "'",
}

// aliases maps alternative names (lowercase) to codes.
var aliases = map[string]Code{
	"escape":  CodeEscape,
	"return":  CodeEnter,
	"cr":      CodeEnter,
	"bs":      CodeBackspace,
	"del":     CodeDelete,
	"ins":     CodeInsert,
	"pgup":    CodePageUp,
	"pgdn":    CodePageDown,
	"control": CodeControl,
	"menu":    CodeAlt,
	"option":  CodeAlt,
	"win":     CodeLeftMeta,
	"cmd":     CodeLeftMeta,
	"super":   CodeLeftMeta,
	"grave":   CodeBacktick,
	"prtsc":   CodePrint,
}

var nameToCode = func() map[string]Code {
	m := make(map[string]Code, len(codeNames)+len(aliases))
	for c, n := range codeNames {
		m[n] = c
	}
	for n, c := range aliases {
		m[n] = c
	}
	return m
}()

// String returns the canonical name of the code, e.g. "a", "F12", "esc".
func (c Code) String() string {
	switch {
	case c == CodeNone:
		return "none"
	case c >= CodeA && c <= CodeZ:
		return string(rune('a' + (c - CodeA)))
	case c >= Code0 && c <= Code9:
		return string(rune('0' + (c - Code0)))
	case c >= CodeF1 && c <= CodeF24:
		return fmt.Sprintf("F%d", c-CodeF1+1)
	case c >= CodeNumpad0 && c <= CodeNumpad9:
		return fmt.Sprintf("kp%d", c-CodeNumpad0)
	}
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("vk(0x%02X)", uint16(c))
}

// IsFunctionKey returns true for F1 through F24.
func (c Code) IsFunctionKey() bool {
	return c >= CodeF1 && c <= CodeF24
}

// IsModifier returns true for the shift, control, alt and meta keys.
func (c Code) IsModifier() bool {
	switch c {
	case CodeShift, CodeControl, CodeAlt, CodeLeftMeta, CodeRightMeta,
		CodeLeftShift, CodeRightShift, CodeLeftControl, CodeRightControl,
		CodeLeftAlt, CodeRightAlt:
		return true
	}
	return false
}

// Modifier returns the modifier bit a modifier key contributes, or ModNone.
func (c Code) Modifier() Modifier {
	switch c {
	case CodeShift, CodeLeftShift, CodeRightShift:
		return ModShift
	case CodeControl, CodeLeftControl, CodeRightControl:
		return ModCtrl
	case CodeAlt, CodeLeftAlt, CodeRightAlt:
		return ModAlt
	case CodeLeftMeta, CodeRightMeta:
		return ModMeta
	}
	return ModNone
}

// CodeFromName returns the code for a key name (case-insensitive).
// Returns CodeNone if the name is not recognized.
func CodeFromName(name string) Code {
	name = strings.TrimSpace(name)
	if len(name) == 1 {
		ch := name[0]
		switch {
		case ch >= 'a' && ch <= 'z':
			return CodeA + Code(ch-'a')
		case ch >= 'A' && ch <= 'Z':
			return CodeA + Code(ch-'A')
		case ch >= '0' && ch <= '9':
			return Code0 + Code(ch-'0')
		}
		if c, ok := nameToCode[name]; ok {
			return c
		}
		return CodeNone
	}

	lower := strings.ToLower(name)
	if c, ok := nameToCode[lower]; ok {
		return c
	}

	var n int
	if _, err := fmt.Sscanf(lower, "f%d", &n); err == nil && fmt.Sprintf("f%d", n) == lower {
		if n >= 1 && n <= 24 {
			return CodeF1 + Code(n-1)
		}
	}
	if _, err := fmt.Sscanf(lower, "kp%d", &n); err == nil && fmt.Sprintf("kp%d", n) == lower {
		if n >= 0 && n <= 9 {
			return CodeNumpad0 + Code(n)
		}
	}
	return CodeNone
}
