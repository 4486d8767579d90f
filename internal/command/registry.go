package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/session"
)

// Registration errors.
var (
	ErrEmptyName    = errors.New("command name is required")
	ErrNilHandler   = errors.New("command handler cannot be nil")
	ErrMissingOwner = errors.New("command owner is required")
)

// Handler runs a command. args is the text after the command name; parsing
// it is up to the handler.
type Handler func(ctx context.Context, id session.ID, args string) error

// Command is a named action available in one session.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Owner       event.ModuleID
	Handler     Handler
}

// Names returns the command name followed by its aliases, lower-cased.
func (c Command) Names() []string {
	names := make([]string, 0, 1+len(c.Aliases))
	names = append(names, strings.ToLower(c.Name))
	for _, a := range c.Aliases {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			names = append(names, a)
		}
	}
	return names
}

// Registry holds per-session command tables. A later registration under an
// existing name or alias replaces the earlier command entirely, aliases
// included.
type Registry struct {
	mu     sync.RWMutex
	tables map[session.ID]map[string]*Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tables: make(map[session.ID]map[string]*Command),
	}
}

// Register adds cmd to the table of session id.
func (r *Registry) Register(id session.ID, cmd Command) error {
	cmd.Name = strings.TrimSpace(cmd.Name)
	switch {
	case cmd.Name == "":
		return ErrEmptyName
	case cmd.Handler == nil:
		return fmt.Errorf("command %q: %w", cmd.Name, ErrNilHandler)
	case cmd.Owner == "":
		return fmt.Errorf("command %q: %w", cmd.Name, ErrMissingOwner)
	}
	cmd.Aliases = slices.Clone(cmd.Aliases)

	r.mu.Lock()
	defer r.mu.Unlock()

	table, ok := r.tables[id]
	if !ok {
		table = make(map[string]*Command)
		r.tables[id] = table
	}
	entry := &cmd
	for _, name := range cmd.Names() {
		if old, ok := table[name]; ok && old != entry {
			for n, c := range table {
				if c == old {
					delete(table, n)
				}
			}
		}
		table[name] = entry
	}
	return nil
}

// Lookup finds a command by name or alias.
func (r *Registry) Lookup(id session.ID, name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.tables[id][strings.ToLower(name)]
	if !ok {
		return Command{}, false
	}
	return *cmd, true
}

// Commands returns the distinct commands of a session sorted by name.
func (r *Registry) Commands(id session.ID) []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Command]bool)
	var out []Command
	for _, cmd := range r.tables[id] {
		if seen[cmd] {
			continue
		}
		seen[cmd] = true
		out = append(out, *cmd)
	}
	slices.SortFunc(out, func(a, b Command) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// RetractByOwner removes every command owned by owner from every session and
// returns how many distinct commands were removed.
func (r *Registry) RetractByOwner(owner event.ModuleID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make(map[*Command]bool)
	for id, table := range r.tables {
		for name, cmd := range table {
			if cmd.Owner == owner {
				removed[cmd] = true
				delete(table, name)
			}
		}
		if len(table) == 0 {
			delete(r.tables, id)
		}
	}
	return len(removed)
}

// Drop forgets the table of a closed session.
func (r *Registry) Drop(id session.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, id)
}

// Count returns the number of distinct commands registered for a session.
func (r *Registry) Count(id session.ID) int {
	return len(r.Commands(id))
}
