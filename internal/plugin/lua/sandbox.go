package lua

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Capability is a permission a module manifest can request.
type Capability string

// Available capabilities.
const (
	// CapabilityOS exposes the clock, date and environment parts of os.
	CapabilityOS Capability = "os"

	// CapabilityIO exposes the io library.
	CapabilityIO Capability = "io"

	// CapabilityUnsafe opens io, os and debug without restriction.
	CapabilityUnsafe Capability = "unsafe"
)

// CapabilityError is returned for a capability that is unknown or not granted.
type CapabilityError struct {
	Capability Capability
	Unknown    bool
}

func (e *CapabilityError) Error() string {
	if e.Unknown {
		return "unknown capability: " + string(e.Capability)
	}
	return "capability not granted: " + string(e.Capability)
}

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityOS, CapabilityIO, CapabilityUnsafe:
		return true
	}
	return false
}

var requireName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// builtinModules resolve to the already-open global of the same name.
var builtinModules = map[string]bool{
	"string":    true,
	"table":     true,
	"math":      true,
	"coroutine": true,
}

// osDenied are stripped from os under CapabilityOS.
var osDenied = []string{"execute", "exit", "remove", "rename", "setenv", "tmpname", "setlocale"}

// Sandbox restricts what a module's Lua code can reach.
type Sandbox struct {
	L *lua.LState

	moduleDir    string
	printer      Printer
	capabilities map[Capability]bool
}

// NewSandbox creates a sandbox for L. An empty moduleDir disables file requires.
func NewSandbox(L *lua.LState, moduleDir string, printer Printer) *Sandbox {
	return &Sandbox{
		L:            L,
		moduleDir:    moduleDir,
		printer:      printer,
		capabilities: make(map[Capability]bool),
	}
}

// Install applies the restrictions.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	if s.printer != nil {
		s.installPrint()
	}
	s.installRequire()
}

func (s *Sandbox) installPrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		s.printer(strings.Join(parts, "\t"))
		return 0
	}))
}

// installRequire replaces require. Resolution order: package.loaded,
// package.preload, built-ins, granted libraries, then files below the
// module directory.
func (s *Sandbox) installRequire() {
	pkg, _ := s.L.GetGlobal("package").(*lua.LTable)
	if pkg != nil {
		s.L.SetField(pkg, "path", lua.LString(""))
		s.L.SetField(pkg, "cpath", lua.LString(""))
	}

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		loaded, preload := s.packageTables()
		if loaded != nil {
			if v := loaded.RawGetString(name); v != lua.LNil {
				L.Push(v)
				return 1
			}
		}

		if preload != nil {
			if loader, ok := preload.RawGetString(name).(*lua.LFunction); ok {
				L.Push(loader)
				L.Push(lua.LString(name))
				L.Call(1, 1)
				return s.store(L, loaded, name, L.Get(-1))
			}
		}

		if builtinModules[name] {
			L.Push(L.GetGlobal(name))
			return 1
		}

		switch name {
		case "os", "io", "debug":
			if v := L.GetGlobal(name); v != lua.LNil {
				L.Push(v)
				return 1
			}
			L.RaiseError("module %q requires a capability", name)
			return 0
		}

		path, err := s.resolve(name)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		fn, err := L.LoadFile(path)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(fn)
		L.Push(lua.LString(name))
		L.Call(1, 1)
		return s.store(L, loaded, name, L.Get(-1))
	}))
}

func (s *Sandbox) packageTables() (loaded, preload *lua.LTable) {
	pkg, ok := s.L.GetGlobal("package").(*lua.LTable)
	if !ok {
		return nil, nil
	}
	loaded, _ = pkg.RawGetString("loaded").(*lua.LTable)
	preload, _ = pkg.RawGetString("preload").(*lua.LTable)
	return loaded, preload
}

// store caches a module result the way require does; nil becomes true.
func (s *Sandbox) store(L *lua.LState, loaded *lua.LTable, name string, v lua.LValue) int {
	L.Pop(1)
	if v == lua.LNil {
		v = lua.LTrue
	}
	if loaded != nil {
		loaded.RawSetString(name, v)
	}
	L.Push(v)
	return 1
}

// resolve maps a dotted module name to a file below the module directory.
func (s *Sandbox) resolve(name string) (string, error) {
	if s.moduleDir == "" || !requireName.MatchString(name) {
		return "", fmt.Errorf("module %q is not available", name)
	}

	rel := filepath.FromSlash(strings.ReplaceAll(name, ".", "/")) + ".lua"
	path := filepath.Join(s.moduleDir, rel)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("module %q is not available", name)
	}
	return path, nil
}

// Grant enables a capability.
func (s *Sandbox) Grant(c Capability) error {
	if !c.Valid() {
		return &CapabilityError{Capability: c, Unknown: true}
	}
	if s.capabilities[c] {
		return nil
	}
	s.capabilities[c] = true

	switch c {
	case CapabilityOS:
		openLib(s.L, lua.OsLibName, lua.OpenOs)
		if mod, ok := s.L.GetGlobal(lua.OsLibName).(*lua.LTable); ok {
			for _, name := range osDenied {
				mod.RawSetString(name, lua.LNil)
			}
		}
	case CapabilityIO:
		openLib(s.L, lua.IoLibName, lua.OpenIo)
	case CapabilityUnsafe:
		openLib(s.L, lua.IoLibName, lua.OpenIo)
		openLib(s.L, lua.OsLibName, lua.OpenOs)
		openLib(s.L, lua.DebugLibName, lua.OpenDebug)
	}
	return nil
}

// HasCapability reports whether c is granted.
func (s *Sandbox) HasCapability(c Capability) bool {
	return s.capabilities[c]
}

// Capabilities returns the granted capabilities, sorted.
func (s *Sandbox) Capabilities() []Capability {
	caps := make([]Capability, 0, len(s.capabilities))
	for c := range s.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// CheckCapability returns an error if c is not granted.
func (s *Sandbox) CheckCapability(c Capability) error {
	if !s.capabilities[c] {
		return &CapabilityError{Capability: c}
	}
	return nil
}
