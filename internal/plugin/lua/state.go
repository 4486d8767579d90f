package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single load or callback.
const DefaultExecutionTimeout = 5 * time.Second

// Printer receives the output of the Lua print function.
type Printer func(msg string)

// State wraps a gopher-lua state with a sandbox and per-call deadlines.
type State struct {
	L *lua.LState

	mu sync.Mutex

	timeout   time.Duration
	moduleDir string
	printer   Printer
	caps      []Capability

	sandbox *Sandbox
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the deadline applied to each call. Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// WithModuleDir allows require to load files below dir.
func WithModuleDir(dir string) StateOption {
	return func(s *State) {
		s.moduleDir = dir
	}
}

// WithPrinter redirects print.
func WithPrinter(p Printer) StateOption {
	return func(s *State) {
		s.printer = p
	}
}

// WithCapabilities grants capabilities at creation.
func WithCapabilities(caps ...Capability) StateOption {
	return func(s *State) {
		s.caps = append(s.caps, caps...)
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	state := &State{
		timeout: DefaultExecutionTimeout,
	}
	for _, opt := range opts {
		opt(state)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	state.L = L
	openSafeLibraries(L)

	state.sandbox = NewSandbox(L, state.moduleDir, state.printer)
	state.sandbox.Install()
	for _, c := range state.caps {
		if err := state.sandbox.Grant(c); err != nil {
			L.Close()
			return nil, err
		}
	}

	return state, nil
}

// openSafeLibraries opens the libraries every module gets.
func openSafeLibraries(L *lua.LState) {
	openLib(L, lua.BaseLibName, lua.OpenBase)
	openLib(L, lua.LoadLibName, lua.OpenPackage)
	openLib(L, lua.TabLibName, lua.OpenTable)
	openLib(L, lua.StringLibName, lua.OpenString)
	openLib(L, lua.MathLibName, lua.OpenMath)
	openLib(L, lua.CoroutineLibName, lua.OpenCoroutine)
}

// openLib runs a library opener the way gopher-lua's OpenLibs does.
func openLib(L *lua.LState, name string, open lua.LGFunction) {
	L.Push(L.NewFunction(open))
	L.Push(lua.LString(name))
	L.Call(1, 0)
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.exec(ctx, func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua chunk.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.exec(ctx, func() error {
		return s.L.DoString(code)
	})
}

// Call calls a global Lua function.
func (s *State) Call(ctx context.Context, name string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	fn, ok := s.L.GetGlobal(name).(*lua.LFunction)
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFunction, name)
	}
	return s.CallFunction(ctx, fn, args...)
}

// CallFunction calls fn in protected mode. Returns an empty slice (not nil)
// if the function returns no values.
func (s *State) CallFunction(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) ([]lua.LValue, error) {
	if fn == nil {
		return nil, ErrNotFunction
	}

	var results []lua.LValue
	err := s.exec(ctx, func() error {
		top := s.L.GetTop()
		s.L.Push(fn)
		for _, arg := range args {
			s.L.Push(arg)
		}
		if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
			s.L.SetTop(top)
			return err
		}

		n := s.L.GetTop() - top
		results = make([]lua.LValue, n)
		for i := 0; i < n; i++ {
			results[i] = s.L.Get(top + i + 1)
		}
		s.L.Pop(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// exec runs fn under the lock with the call deadline installed.
func (s *State) exec(ctx context.Context, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
		}
	}()

	return fn()
}

// Preload registers a module loader resolvable through require.
func (s *State) Preload(name string, loader lua.LGFunction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.PreloadModule(name, loader)
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// LuaState returns the underlying gopher-lua state. Callers bypass the lock.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Sandbox returns the sandbox for capability management.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed reports whether Close has been called.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. It is safe to call more than once.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
