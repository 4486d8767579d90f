package command

import (
	"slices"
	"strings"
	"unicode"

	"github.com/dshills/mudscript/internal/session"
)

// Match is a command name that fuzzily matches a query.
type Match struct {
	Name  string
	Score int
}

// matchPositions returns the rune positions of query in name when query is
// a subsequence of name.
func matchPositions(query, name []rune) []int {
	if len(query) == 0 || len(query) > len(name) {
		return nil
	}
	pos := make([]int, 0, len(query))
	qi := 0
	for i, r := range name {
		if qi < len(query) && r == query[qi] {
			pos = append(pos, i)
			qi++
		}
	}
	if qi < len(query) {
		return nil
	}
	return pos
}

func boundary(name []rune, i int) bool {
	if i == 0 {
		return true
	}
	prev := name[i-1]
	return prev == '_' || prev == '-' || prev == '.' || unicode.IsDigit(prev) != unicode.IsDigit(name[i])
}

// score rates a match: adjacent runes, runes at word boundaries and a
// shared prefix raise it, gaps and a late start lower it.
func score(query, name []rune, pos []int) int {
	s := 100
	for i := 1; i < len(pos); i++ {
		if pos[i] == pos[i-1]+1 {
			s += 20
		}
	}
	for _, p := range pos {
		if boundary(name, p) {
			s += 15
		}
	}
	if pos[0] == 0 {
		s += 25
	}
	if gap := pos[len(pos)-1] - pos[0] - len(pos) + 1; gap > 0 {
		s -= gap * 2
	}
	s -= pos[0]
	if len(name) < 20 {
		s += 20 - len(name)
	}
	if strings.HasPrefix(string(name), string(query)) {
		s += 50
	}
	return max(s, 1)
}

// FuzzyMatch returns the names query matches, best first. Matching is
// case-insensitive.
func FuzzyMatch(query string, names []string) []Match {
	q := []rune(strings.ToLower(query))
	var out []Match
	for _, name := range names {
		n := []rune(strings.ToLower(name))
		pos := matchPositions(q, n)
		if pos == nil {
			continue
		}
		out = append(out, Match{Name: name, Score: score(q, n, pos)})
	}
	slices.SortStableFunc(out, func(a, b Match) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Suggest returns the best command or alias name of a session for a
// mistyped name.
func (r *Registry) Suggest(id session.ID, name string) (string, bool) {
	var names []string
	for _, cmd := range r.Commands(id) {
		names = append(names, cmd.Names()...)
	}
	matches := FuzzyMatch(name, names)
	if len(matches) == 0 {
		return "", false
	}
	return matches[0].Name, true
}
