// Package lua hosts script modules on sandboxed gopher-lua states.
//
// A State is not goroutine-safe in the Lua sense: every call into it must come
// from the runtime's dispatch loop. The mutex only guards against accidental
// concurrent use from Go.
//
// Execution limits are enforced with a context deadline installed on the
// LState for the duration of each call:
//
//	state, err := lua.NewState(lua.WithExecutionTimeout(2 * time.Second))
//	if err != nil {
//	    return err
//	}
//	defer state.Close()
//
//	if err := state.DoFile(ctx, "init.lua"); err != nil {
//	    return err
//	}
//
// The sandbox removes dofile, loadfile and load, and replaces require with a
// version that only resolves preloaded modules, a whitelist of built-in
// libraries and files below the module directory.
package lua
