package key

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Parse errors
var (
	ErrEmptySpec   = errors.New("empty key specification")
	ErrInvalidSpec = errors.New("invalid key specification")
)

// Parse parses a key specification into its canonical Code.
//
// Supported formats:
//   - Single character: "a", "A", "1", "@"
//   - Special keys: "Enter", "Esc", "Up", "F5", "PgUp" and aliases
//   - With modifiers: "Ctrl+P", "Alt+F4", "ctrl-shift-up"
//   - Vim-style: "<C-p>", "<A-F4>", "<CR>", "<Esc>"
func Parse(spec string) (Code, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", ErrEmptySpec
	}

	if len(spec) > 2 && strings.HasPrefix(spec, "<") && strings.HasSuffix(spec, ">") {
		return parseParts(splitChord(spec[1:len(spec)-1], '-'))
	}
	if utf8.RuneCountInString(spec) == 1 {
		return parseKey(spec, ModNone)
	}
	if strings.Contains(spec[1:], "+") {
		return parseParts(splitChord(spec, '+'))
	}
	if strings.Contains(spec[1:], "-") {
		return parseParts(splitChord(spec, '-'))
	}
	return parseKey(spec, ModNone)
}

// MustParse parses a key specification and panics on error.
// Use only for known-valid specs in initialization code.
func MustParse(spec string) Code {
	code, err := Parse(spec)
	if err != nil {
		panic("invalid key specification: " + spec + ": " + err.Error())
	}
	return code
}

// Equal reports whether two specifications name the same key.
func Equal(a, b string) bool {
	ca, err := Parse(a)
	if err != nil {
		return false
	}
	cb, err := Parse(b)
	return err == nil && ca == cb
}

// splitChord splits a chord on sep. A trailing separator is the key itself,
// so "ctrl++" yields ["ctrl", "+"].
func splitChord(s string, sep rune) []string {
	if strings.HasSuffix(s, string(sep)+string(sep)) {
		return append(strings.Split(s[:len(s)-2], string(sep)), string(sep))
	}
	return strings.Split(s, string(sep))
}

func parseParts(parts []string) (Code, error) {
	if len(parts) == 1 {
		return parseKey(parts[0], ModNone)
	}

	var mods Modifier
	for _, p := range parts[:len(parts)-1] {
		mod := ModifierFromName(p)
		if mod == ModNone {
			return "", fmt.Errorf("%w: unknown modifier %q", ErrInvalidSpec, p)
		}
		mods = mods.With(mod)
	}
	return parseKey(parts[len(parts)-1], mods)
}

func parseKey(keyPart string, mods Modifier) (Code, error) {
	if keyPart == "" {
		return "", fmt.Errorf("%w: missing key", ErrInvalidSpec)
	}
	if keyPart != " " {
		keyPart = strings.TrimSpace(keyPart)
	}

	if name, ok := canonicalName(keyPart); ok {
		return compose(mods, name), nil
	}

	if utf8.RuneCountInString(keyPart) == 1 {
		r, _ := utf8.DecodeRuneInString(keyPart)
		if r == ' ' {
			return compose(mods, "space"), nil
		}
		if mods.Has(ModCtrl) {
			r = unicode.ToLower(r)
		}
		return compose(mods, string(r)), nil
	}

	name, _ := canonicalName(keyPart)
	if len(name) == 1 {
		return compose(mods, name), nil
	}
	return "", fmt.Errorf("%w: unknown key %q", ErrInvalidSpec, keyPart)
}
