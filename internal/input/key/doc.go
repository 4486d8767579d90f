// Package key normalises key descriptors so that keys named in
// configuration, keys reported by the terminal and keys published in
// KeyPressed events compare equal.
//
// A Code is lower case, with modifiers first in a fixed order and joined by
// "+":
//
//	"Up"          -> "up"
//	"Ctrl+P"      -> "ctrl+p"
//	"<C-S-F5>"    -> "ctrl+shift+f5"
//	"PageUp"      -> "pgup"
//
// Special key names follow tcell's KeyNames, so any name tcell prints for a
// key can be used in configuration.
package key
