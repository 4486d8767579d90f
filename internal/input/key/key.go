package key

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Code is a normalised key descriptor.
type Code string

// String returns the code text.
func (c Code) String() string {
	return string(c)
}

// aliases maps alternative spellings to the canonical key name.
var aliases = map[string]string{
	"escape":      "esc",
	"return":      "enter",
	"cr":          "enter",
	"bs":          "backspace",
	"backspace2":  "backspace",
	"del":         "delete",
	"ins":         "insert",
	"pageup":      "pgup",
	"pagedown":    "pgdn",
	"arrowup":     "up",
	"arrowdown":   "down",
	"arrowleft":   "left",
	"arrowright":  "right",
	"printscreen": "print",
	" ":           "space",
	"lt":          "<",
	"gt":          ">",
	"bar":         "|",
	"bslash":      "\\",
}

// specialNames holds every lower-cased tcell key name that is not a control
// chord, plus "space".
var specialNames = buildSpecialNames()

func buildSpecialNames() map[string]bool {
	names := map[string]bool{"space": true}
	for _, name := range tcell.KeyNames {
		if strings.HasPrefix(name, "Ctrl-") {
			continue
		}
		names[strings.ToLower(name)] = true
	}
	return names
}

// IsSpecial reports whether name is a known special key name or alias.
func IsSpecial(name string) bool {
	_, ok := canonicalName(name)
	return ok
}

// canonicalName resolves a special key name. It reports false for names that
// are not special keys.
func canonicalName(name string) (string, bool) {
	lower := strings.ToLower(name)
	if alias, ok := aliases[lower]; ok {
		lower = alias
	}
	if specialNames[lower] {
		return lower, true
	}
	return lower, false
}

// compose builds a code from modifiers and a key name.
func compose(mods Modifier, name string) Code {
	if mods == ModNone {
		return Code(name)
	}
	return Code(mods.String() + "+" + name)
}

// FromTcell converts a terminal key event into a Code.
func FromTcell(ev *tcell.EventKey) Code {
	var mods Modifier
	tm := ev.Modifiers()
	if tm&tcell.ModCtrl != 0 {
		mods = mods.With(ModCtrl)
	}
	if tm&tcell.ModAlt != 0 {
		mods = mods.With(ModAlt)
	}
	if tm&tcell.ModShift != 0 {
		mods = mods.With(ModShift)
	}
	if tm&tcell.ModMeta != 0 {
		mods = mods.With(ModMeta)
	}

	if ev.Key() == tcell.KeyRune {
		r := ev.Rune()
		if r == ' ' {
			return compose(mods, "space")
		}
		if mods.Has(ModCtrl) {
			return compose(mods, strings.ToLower(string(r)))
		}
		// Shift is already reflected in the rune.
		mods &^= ModShift
		return compose(mods, string(r))
	}

	name, ok := tcell.KeyNames[ev.Key()]
	if !ok {
		return ""
	}
	if rest, ok := strings.CutPrefix(name, "Ctrl-"); ok {
		return compose(mods.With(ModCtrl), strings.ToLower(rest))
	}
	canon, _ := canonicalName(name)
	return compose(mods, canon)
}
