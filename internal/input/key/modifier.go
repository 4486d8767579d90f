package key

import "strings"

// Modifier is a set of modifier keys held with a key press.
type Modifier uint8

// Modifiers, in the order they appear in a normalised code.
const (
	ModNone  Modifier = 0
	ModCtrl  Modifier = 1 << 0
	ModAlt   Modifier = 1 << 1
	ModShift Modifier = 1 << 2
	ModMeta  Modifier = 1 << 3
)

var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModCtrl, "ctrl"},
	{ModAlt, "alt"},
	{ModShift, "shift"},
	{ModMeta, "meta"},
}

// Has reports whether every modifier in mod is set.
func (m Modifier) Has(mod Modifier) bool {
	return mod != ModNone && m&mod == mod
}

// With adds mod.
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// String joins the set modifiers with "+", e.g. "ctrl+alt".
func (m Modifier) String() string {
	var parts []string
	for _, o := range modifierOrder {
		if m.Has(o.mod) {
			parts = append(parts, o.name)
		}
	}
	return strings.Join(parts, "+")
}

// Terminal clients spell modifiers many ways; single letters come from
// vim-style chords such as <C-p>.
var modifierAliases = map[string]Modifier{
	"ctrl": ModCtrl, "control": ModCtrl, "c": ModCtrl,
	"alt": ModAlt, "a": ModAlt, "option": ModAlt, "opt": ModAlt,
	"shift": ModShift, "s": ModShift,
	"meta": ModMeta, "m": ModMeta, "cmd": ModMeta, "super": ModMeta,
}

// ModifierFromName looks up a modifier by name, ignoring case. Unknown
// names give ModNone.
func ModifierFromName(name string) Modifier {
	return modifierAliases[strings.ToLower(strings.TrimSpace(name))]
}
