package event

import (
	"fmt"
	"reflect"
)

// Filter maps event field names to required values. An event matches when
// each entry equals the event's field of the same name. Numbers are compared
// by value, so a filter value of 3.0 matches a field holding uint8(3), and
// named string types compare equal to plain strings.
type Filter map[string]any

// Where returns a copy of f with name set to value.
func (f Filter) Where(name string, value any) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[name] = value
	return out
}

// Clone returns a copy of f. A nil filter clones to nil.
func (f Filter) Clone() Filter {
	if f == nil {
		return nil
	}
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Validate checks that every entry has a field name and a comparable value.
func (f Filter) Validate() error {
	for name, value := range f {
		if name == "" {
			return fmt.Errorf("%w: empty field name", ErrMalformedFilter)
		}
		if value == nil {
			return fmt.Errorf("%w: field %q has no value", ErrMalformedFilter, name)
		}
		if !reflect.TypeOf(value).Comparable() {
			return fmt.Errorf("%w: field %q has non-comparable %T", ErrMalformedFilter, name, value)
		}
	}
	return nil
}

// Matches reports whether ev satisfies every entry of f. An empty filter
// matches every event.
func (f Filter) Matches(ev Event) bool {
	for name, want := range f {
		got, ok := ev.Field(name)
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

func equal(got, want any) bool {
	if gf, ok := number(got); ok {
		wf, ok := number(want)
		return ok && gf == wf
	}
	if gs, ok := text(got); ok {
		ws, ok := text(want)
		return ok && gs == ws
	}
	if got == nil {
		return false
	}
	gt := reflect.TypeOf(got)
	if gt != reflect.TypeOf(want) || !gt.Comparable() {
		return false
	}
	return got == want
}

func text(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

func number(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
