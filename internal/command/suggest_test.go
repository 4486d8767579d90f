package command

import (
	"context"
	"testing"

	"github.com/dshills/mudscript/internal/session"
)

func TestFuzzyMatch(t *testing.T) {
	names := []string{"reload", "modules", "help", "history", "greet", "commands"}

	tests := []struct {
		query string
		want  []string
	}{
		{"rel", []string{"reload"}},
		{"hi", []string{"history"}},
		{"h", []string{"help", "history"}},
		{"MOD", []string{"modules"}},
		{"mds", []string{"modules", "commands"}},
		{"xyz", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := FuzzyMatch(tt.query, names)
			if len(got) != len(tt.want) {
				t.Fatalf("FuzzyMatch(%q) = %v, want %v", tt.query, got, tt.want)
			}
			for i := range got {
				if got[i].Name != tt.want[i] {
					t.Errorf("FuzzyMatch(%q)[%d] = %s, want %s", tt.query, i, got[i].Name, tt.want[i])
				}
			}
		})
	}
}

func TestRegistry_Suggest(t *testing.T) {
	reg := NewRegistry()
	noop := func(context.Context, session.ID, string) error { return nil }
	reg.Register(1, Command{Name: "history", Aliases: []string{"hist"}, Owner: "m", Handler: noop})
	reg.Register(1, Command{Name: "help", Owner: "m", Handler: noop})

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"hst", "hist", true},
		{"hlp", "help", true},
		{"zzz", "", false},
	}
	for _, tt := range tests {
		got, ok := reg.Suggest(1, tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Suggest(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
	if _, ok := reg.Suggest(2, "help"); ok {
		t.Error("Suggest() on an empty session should fail")
	}
}
