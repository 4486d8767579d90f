package lua

import (
	"reflect"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestBridgeToGoValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	seq := L.NewTable()
	seq.RawSetInt(1, glua.LString("a"))
	seq.RawSetInt(2, glua.LNumber(2))

	rec := L.NewTable()
	rec.RawSetString("hp", glua.LNumber(40))
	rec.RawSetString("ratio", glua.LNumber(0.5))

	holey := L.NewTable()
	holey.RawSetInt(1, glua.LTrue)
	holey.RawSetInt(3, glua.LFalse)

	tests := []struct {
		name  string
		input glua.LValue
		want  any
	}{
		{"nil", glua.LNil, nil},
		{"bool", glua.LTrue, true},
		{"integer", glua.LNumber(42), int64(42)},
		{"float", glua.LNumber(3.5), 3.5},
		{"string", glua.LString("hello"), "hello"},
		{"sequence", seq, []any{"a", int64(2)}},
		{"record", rec, map[string]any{"hp": int64(40), "ratio": 0.5}},
		{"holes", holey, map[string]any{"1": true, "3": false}},
		{"empty", L.NewTable(), map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bridge.ToGoValue(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToGoValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBridgeToGoValueCycle(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	tbl := L.NewTable()
	tbl.RawSetString("self", tbl)

	got, ok := bridge.ToGoValue(tbl).(map[string]any)
	if !ok {
		t.Fatalf("ToGoValue() = %T, want map", got)
	}
	if got["self"] != nil {
		t.Errorf("cyclic reference = %v, want nil", got["self"])
	}
}

func TestBridgeToLuaValue(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	type port uint16

	tests := []struct {
		name  string
		input any
		want  glua.LValue
	}{
		{"nil", nil, glua.LNil},
		{"bool", true, glua.LTrue},
		{"int", 7, glua.LNumber(7)},
		{"named uint", port(4000), glua.LNumber(4000)},
		{"float", 1.5, glua.LNumber(1.5)},
		{"string", "x", glua.LString("x")},
		{"nil pointer", (*int)(nil), glua.LNil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bridge.ToLuaValue(tt.input); got != tt.want {
				t.Errorf("ToLuaValue(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBridgeRoundTripNested(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	in := map[string]any{
		"name":  "Vitals",
		"stats": []any{int64(1), int64(2)},
		"flags": map[string]any{"combat": true},
	}
	if got := bridge.ToGoValue(bridge.ToLuaValue(in)); !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %#v, want %#v", got, in)
	}
}

func TestBridgeStringList(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	bridge := NewBridge(L)

	tbl := L.NewTable()
	tbl.Append(glua.LString("n"))
	tbl.Append(glua.LString("north"))

	if got := bridge.StringList(tbl); !reflect.DeepEqual(got, []string{"n", "north"}) {
		t.Errorf("StringList(table) = %q", got)
	}
	if got := bridge.StringList(glua.LString("s")); !reflect.DeepEqual(got, []string{"s"}) {
		t.Errorf("StringList(string) = %q", got)
	}
	if got := bridge.StringList(glua.LNil); got != nil {
		t.Errorf("StringList(nil) = %q, want nil", got)
	}
}
