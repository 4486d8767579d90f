package app

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dshills/mudscript/internal/command"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/plugin"
	"github.com/dshills/mudscript/internal/session"
)

// BuiltinModule owns the runtime's own session commands.
const BuiltinModule event.ModuleID = "builtin"

// builtinModule registers /reload, /modules and /help in every session.
type builtinModule struct {
	r *Runtime
}

func (b *builtinModule) ID() event.ModuleID {
	return BuiltinModule
}

func (b *builtinModule) Load(ctx context.Context, env *plugin.Env) error {
	env.OnSetup(func(ctx context.Context, info session.Info) error {
		for _, cmd := range b.commands() {
			if err := env.RegisterCommand(info.ID, cmd); err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}

func (b *builtinModule) Close() error {
	return nil
}

func (b *builtinModule) commands() []command.Command {
	return []command.Command{
		{
			Name:        "reload",
			Description: "Reload one module, or rescan and reload every module",
			Handler:     b.reload,
		},
		{
			Name:        "modules",
			Description: "List modules and their state",
			Handler:     b.modules,
		},
		{
			Name:        "help",
			Aliases:     []string{"commands"},
			Description: "List the commands of this session",
			Handler:     b.help,
		},
	}
}

// reload queues the reload; it runs after the current dispatch, so the
// command never retracts itself mid-call.
func (b *builtinModule) reload(ctx context.Context, id session.ID, args string) error {
	name := strings.TrimSpace(args)
	if name == "" {
		b.r.RequestReload("")
		return b.r.base.AddOutput(id, session.CommandResult("Reloading all modules"))
	}

	mod := event.ModuleID(strings.ToLower(name))
	if !plugin.ValidID(mod) || mod == event.CoreModule {
		return fmt.Errorf("%w: %q", plugin.ErrInvalidID, name)
	}
	if _, ok := b.r.manager.Module(mod); !ok {
		if _, err := b.r.loader.Find(string(mod)); err != nil {
			return err
		}
	}
	b.r.RequestReload(mod)
	return b.r.base.AddOutput(id, session.CommandResult("Reloading "+string(mod)))
}

func (b *builtinModule) modules(ctx context.Context, id session.ID, args string) error {
	var sb strings.Builder
	for _, m := range b.r.manager.Modules() {
		fmt.Fprintf(&sb, "%-16s %-8s", m.ID, m.State)
		if m.Reloads > 0 {
			fmt.Fprintf(&sb, " reloads=%d", m.Reloads)
		}
		if m.Err != nil {
			fmt.Fprintf(&sb, " %v", m.Err)
		}
		sb.WriteByte('\n')
	}

	broken := b.r.BrokenModules()
	names := make([]string, 0, len(broken))
	for name := range broken {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "%-16s %-8s %v\n", name, "broken", broken[name])
	}

	return b.r.base.AddOutput(id, session.CommandResult(strings.TrimSuffix(sb.String(), "\n")))
}

func (b *builtinModule) help(ctx context.Context, id session.ID, args string) error {
	prefix := b.r.dispatcher.Prefix()
	cmds := b.r.commands.Commands(id)
	if query := strings.TrimSpace(args); query != "" {
		cmds = slices.DeleteFunc(cmds, func(c command.Command) bool {
			return len(command.FuzzyMatch(query, c.Names())) == 0
		})
		if len(cmds) == 0 {
			return b.r.base.AddOutput(id, session.CommandResult(fmt.Sprintf("No commands match %q", query)))
		}
	}

	var sb strings.Builder
	for _, cmd := range cmds {
		fmt.Fprintf(&sb, "%s%s", prefix, cmd.Name)
		if len(cmd.Aliases) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(cmd.Aliases, ", "))
		}
		if cmd.Description != "" {
			fmt.Fprintf(&sb, " - %s", cmd.Description)
		}
		fmt.Fprintf(&sb, " [%s]\n", cmd.Owner)
	}
	return b.r.base.AddOutput(id, session.CommandResult(strings.TrimSuffix(sb.String(), "\n")))
}
