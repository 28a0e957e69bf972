// Package key defines virtual key codes and modifier sets for captured and
// synthesized keyboard events.
//
// Codes follow the Windows virtual-key numbering, which is also what the
// persisted macro format stores in its keyCode field. Platform bindings for
// other systems translate to and from this numbering.
//
// # Key Specifications
//
// Configuration refers to keys by name:
//
//   - Simple keys: "a", "5", "`", "esc", "F12", "space"
//   - With modifiers: "ctrl+s", "alt+F4", "ctrl+shift+p"
package key
