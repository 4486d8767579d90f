package history

import (
	"testing"

	"github.com/dshills/mudscript/internal/session"
)

func scripted(text string) session.InputLine {
	return session.InputLine{Sent: text, Scripted: true}
}

func appendAll(h *History, lines ...session.InputLine) {
	for _, l := range lines {
		h.Append(l)
	}
}

func TestHistory_SkipScriptedScenario(t *testing.T) {
	h := New(0)
	appendAll(h, session.NewInputLine("look"), scripted("north"), session.NewInputLine("say hi"))

	steps := []struct {
		want string
		ok   bool
	}{
		{"say hi", true},
		{"look", true},
		{"", false},
		{"", false},
	}
	for i, s := range steps {
		line, ok := h.Prev(session.InputLine{}, true)
		if ok != s.ok || line.Sent != s.want {
			t.Fatalf("Prev #%d = %q, %v, want %q, %v", i+1, line.Sent, ok, s.want, s.ok)
		}
	}
	if cursor, scrolling := h.Cursor(); cursor != 0 || !scrolling {
		t.Errorf("Cursor() = %d, %v, want parked at 0 while scrolling", cursor, scrolling)
	}

	// Moving forward from the parked position finds the next match.
	if step := h.Next(true); step.Outcome != OutcomeLine || step.Line.Sent != "say hi" {
		t.Errorf("Next() = %+v, want say hi", step)
	}
}

func TestHistory_IncludesScriptedWhenNotSkipping(t *testing.T) {
	h := New(0)
	appendAll(h, session.NewInputLine("look"), scripted("north"))

	line, ok := h.Prev(session.InputLine{}, false)
	if !ok || line.Sent != "north" {
		t.Errorf("Prev() = %q, %v, want north", line.Sent, ok)
	}
}

func TestHistory_AppendBlank(t *testing.T) {
	empty := ""
	spaces := "  "
	tests := []struct {
		name string
		line session.InputLine
		want bool
	}{
		{"empty", session.InputLine{}, false},
		{"whitespace", session.NewInputLine("   "), false},
		{"empty original", session.InputLine{Original: &empty}, false},
		{"blank original", session.InputLine{Sent: " ", Original: &spaces}, false},
		{"original only", session.NewInputLine("").WithOriginal("k orc"), true},
		{"text", session.NewInputLine("look"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(0)
			if got := h.Append(tt.line); got != tt.want {
				t.Errorf("Append() = %v, want %v", got, tt.want)
			}
			want := 0
			if tt.want {
				want = 1
			}
			if h.Len() != want {
				t.Errorf("Len() = %d, want %d", h.Len(), want)
			}
		})
	}
}

func TestHistory_PrevNextRestoresPartial(t *testing.T) {
	h := New(0)
	h.Append(session.NewInputLine("look"))
	partial := session.NewInputLine("kill o")

	line, ok := h.Prev(partial, false)
	if !ok || line.Sent != "look" {
		t.Fatalf("Prev() = %q, %v", line.Sent, ok)
	}
	if got, ok := h.Partial(); !ok || got.Sent != "kill o" {
		t.Errorf("Partial() = %q, %v", got.Sent, ok)
	}

	step := h.Next(false)
	if step.Outcome != OutcomeRestore || step.Line.Sent != "kill o" {
		t.Errorf("Next() = %+v, want restore of the partial input", step)
	}
	if h.Scrolling() {
		t.Error("still scrolling after restore")
	}
	if _, ok := h.Partial(); ok {
		t.Error("partial kept after restore")
	}
	if step := h.Next(false); step.Outcome != OutcomeNone {
		t.Errorf("Next() while idle = %v, want none", step.Outcome)
	}
}

func TestHistory_PrevOnEmpty(t *testing.T) {
	h := New(0)
	if _, ok := h.Prev(session.NewInputLine("x"), false); ok {
		t.Error("Prev() on empty history ok = true")
	}
	if h.Scrolling() {
		t.Error("empty history started scrolling")
	}
}

func TestHistory_AppendWhileScrolling(t *testing.T) {
	tests := []struct {
		name          string
		line          session.InputLine
		wantScrolling bool
	}{
		{"genuine line resets", session.NewInputLine("say hi"), false},
		{"scripted line keeps scroll", scripted("north"), true},
		{"blank line ignored", session.InputLine{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(0)
			appendAll(h, session.NewInputLine("look"), session.NewInputLine("score"))
			h.Prev(session.NewInputLine("partial"), false)

			h.Append(tt.line)
			if h.Scrolling() != tt.wantScrolling {
				t.Errorf("Scrolling() = %v, want %v", h.Scrolling(), tt.wantScrolling)
			}
			if _, ok := h.Partial(); ok != tt.wantScrolling {
				t.Errorf("partial kept = %v, want %v", ok, tt.wantScrolling)
			}
			if cursor, _ := h.Cursor(); tt.wantScrolling && cursor != 1 {
				t.Errorf("cursor = %d, want 1", cursor)
			}
		})
	}
}

func TestHistory_Eviction(t *testing.T) {
	h := New(3)
	appendAll(h,
		session.NewInputLine("a"),
		session.NewInputLine("b"),
		session.NewInputLine("c"),
		session.NewInputLine("d"),
	)
	lines := h.Lines()
	if len(lines) != 3 || lines[0].Sent != "b" || lines[2].Sent != "d" {
		t.Fatalf("Lines() = %v, want b c d", lines)
	}

	// Eviction during a scroll keeps the cursor on the same entry.
	line, _ := h.Prev(session.InputLine{}, false)
	line, _ = h.Prev(session.InputLine{}, false)
	if line.Sent != "c" {
		t.Fatalf("Prev() = %q, want c", line.Sent)
	}
	h.Append(scripted("e"))
	if step := h.Next(false); step.Line.Sent != "d" {
		t.Errorf("Next() after eviction = %q, want d", step.Line.Sent)
	}
	if h.Capacity() != 3 {
		t.Errorf("Capacity() = %d", h.Capacity())
	}
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		OutcomeNone:    "none",
		OutcomeLine:    "line",
		OutcomeRestore: "restore",
		Outcome(7):     "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", o, got, want)
		}
	}
}
