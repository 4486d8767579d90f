package key

import (
	"errors"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestParse(t *testing.T) {
	tests := []struct {
		spec string
		want Code
	}{
		{"Up", "up"},
		{"up", "up"},
		{"DOWN", "down"},
		{"F5", "f5"},
		{"PageUp", "pgup"},
		{"PgDn", "pgdn"},
		{"Escape", "esc"},
		{"<Esc>", "esc"},
		{"<CR>", "enter"},
		{"Return", "enter"},
		{"a", "a"},
		{"A", "A"},
		{"Ctrl+P", "ctrl+p"},
		{"ctrl+P", "ctrl+p"},
		{"Alt+Ctrl+x", "ctrl+alt+x"},
		{"<C-p>", "ctrl+p"},
		{"<C-S-F5>", "ctrl+shift+f5"},
		{"shift-up", "shift+up"},
		{"Ctrl++", "ctrl++"},
		{"-", "-"},
		{"Space", "space"},
		{"alt+space", "alt+space"},
		{"<lt>", "<"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := Parse(tt.spec)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.spec, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		spec string
		want error
	}{
		{"", ErrEmptySpec},
		{"   ", ErrEmptySpec},
		{"hyper+x", ErrInvalidSpec},
		{"notakey", ErrInvalidSpec},
		{"ctrl+", ErrInvalidSpec},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			if _, err := Parse(tt.spec); !errors.Is(err, tt.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.spec, err, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	if !Equal("Ctrl+P", "<C-p>") {
		t.Error("expected Ctrl+P and <C-p> to be equal")
	}
	if Equal("up", "down") {
		t.Error("expected up and down to differ")
	}
	if Equal("up", "") {
		t.Error("expected invalid spec to compare unequal")
	}
}

func TestFromTcell(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		want Code
	}{
		{"up", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), "up"},
		{"f5", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone), "f5"},
		{"shift up", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModShift), "shift+up"},
		{"pgup", tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModNone), "pgup"},
		{"rune", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), "x"},
		{"alt rune", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModAlt), "alt+x"},
		{"ctrl p", tcell.NewEventKey(tcell.KeyCtrlP, 0, tcell.ModCtrl), "ctrl+p"},
		{"esc", tcell.NewEventKey(tcell.KeyEsc, 0, tcell.ModNone), "esc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromTcell(tt.ev); got != tt.want {
				t.Errorf("FromTcell() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromTcell_MatchesParse(t *testing.T) {
	// Every name tcell prints for a key parses to the code FromTcell reports.
	for k, name := range tcell.KeyNames {
		ev := tcell.NewEventKey(k, 0, tcell.ModNone)
		if ev.Key() != k {
			continue
		}
		want := FromTcell(ev)
		if want == "" {
			continue
		}
		got, err := Parse(name)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", name, err)
			continue
		}
		if got != want && ev.Modifiers() == tcell.ModNone {
			t.Errorf("Parse(%q) = %q, FromTcell = %q", name, got, want)
		}
	}
}
