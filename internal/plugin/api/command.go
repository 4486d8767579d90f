package api

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mudscript/internal/command"
	plua "github.com/dshills/mudscript/internal/plugin/lua"
	"github.com/dshills/mudscript/internal/session"
)

// CommandModule implements mud.command.
type CommandModule struct {
	ctx *Context
}

// NewCommandModule creates a new command module.
func NewCommandModule(ctx *Context) *CommandModule {
	return &CommandModule{ctx: ctx}
}

// Name returns the module name.
func (m *CommandModule) Name() string {
	return "command"
}

// Register adds mud.command to the mud table.
func (m *CommandModule) Register(L *lua.LState, mud *lua.LTable) error {
	L.SetField(mud, "command", L.NewFunction(m.command))
	return nil
}

// command(session, name, fn, [opts]) registers a slash command for a session.
// opts is either a list of aliases or a table with aliases and description.
// fn(session, args) may return a string, which is shown as the result.
func (m *CommandModule) command(L *lua.LState) int {
	id := checkSession(L, 1)
	name := L.CheckString(2)
	fn := L.CheckFunction(3)
	if m.ctx.Commands == nil {
		L.RaiseError("commands are not available in this context")
		return 0
	}

	b := plua.NewBridge(L)
	cmd := command.Command{Name: name}
	if opts, ok := L.Get(4).(*lua.LTable); ok {
		if aliases := opts.RawGetString("aliases"); aliases != lua.LNil {
			cmd.Aliases = b.StringList(aliases)
		} else {
			cmd.Aliases = b.StringList(opts)
		}
		cmd.Description, _ = b.TableString(opts, "description")
	}

	cmd.Handler = func(ctx context.Context, id session.ID, args string) error {
		results, err := m.ctx.call(ctx, fn, lua.LNumber(id), lua.LString(args))
		if err != nil {
			return err
		}
		if len(results) > 0 && m.ctx.Host != nil {
			if s, ok := results[0].(lua.LString); ok && s != "" {
				return m.ctx.Host.AddOutput(id, session.CommandResult(string(s)))
			}
		}
		return nil
	}

	if err := m.ctx.Commands.RegisterCommand(id, cmd); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}
