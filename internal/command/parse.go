// Package command routes slash-command input lines to per-session command
// tables populated by script modules.
package command

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPrefix introduces a command line.
const DefaultPrefix = "/"

// Line represents a parsed command line.
type Line struct {
	Name      string
	Args      []string
	Raw       string
	Remainder string
}

// Parse parses input and returns a Line if it starts with prefix followed
// by a command name. Names are lower-cased; everything after the name is
// returned untouched in Remainder.
func Parse(input, prefix string) (Line, bool) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	trimmed := strings.TrimLeft(input, " \t")
	rest, ok := strings.CutPrefix(trimmed, prefix)
	if !ok {
		return Line{}, false
	}
	if r, _ := utf8.DecodeRuneInString(rest); !isNameRune(r) {
		return Line{}, false
	}

	raw := strings.TrimSpace(rest)
	fields := strings.Fields(raw)
	args := []string{}
	if len(fields) > 1 {
		args = fields[1:]
	}
	return Line{
		Name:      strings.ToLower(fields[0]),
		Args:      args,
		Raw:       raw,
		Remainder: remainderAfterTokens(raw, 1),
	}, true
}

func isNameRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func remainderAfterTokens(raw string, count int) string {
	i := 0
	remaining := count
	for remaining > 0 && i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
		remaining--
	}
	if i >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
