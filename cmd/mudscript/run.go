package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dshills/mudscript/internal/app"
	"github.com/dshills/mudscript/internal/event"
	"github.com/dshills/mudscript/internal/host"
	"github.com/dshills/mudscript/internal/session"
)

// errQuit ends the session loop without an error.
var errQuit = errors.New("quit")

type runFlags struct {
	mud       string
	character string
	noWatch   bool
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scripts against a headless session fed from stdin",
		Long: `Run opens one session on an in-memory host and reads lines from stdin.
Plain lines are submitted as user input. Lines starting with ':' drive the
session instead:

  :recv TEXT          a line received from the MUD
  :prompt TEXT        a prompt received from the MUD
  :gmcp PKG JSON      a GMCP message
  :key SPEC           a key press in the input area (up, ctrl+p, ...)
  :shortcut NAME      a bound shortcut
  :input TEXT         replace the input area
  :submit             submit the input area
  :password on|off    mask the input area
  :status STATUS      connection status (connecting, connected, disconnected)
  :quit               close the session and exit

Start a line with '::' to submit it with a single leading ':'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), g, f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&f.mud, "mud", "m", "local", "MUD name of the session")
	cmd.Flags().StringVar(&f.character, "character", "", "Character name of the session")
	cmd.Flags().BoolVar(&f.noWatch, "no-watch", false, "Do not reload scripts when they change")
	return cmd
}

// console serialises writes from the loop and the watcher.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func formatOutput(o session.Output) string {
	switch o.Kind {
	case session.OutputCommandResult:
		return "= " + o.Text
	case session.OutputFailedCommandResult:
		return "! " + o.Text
	case session.OutputDebug:
		return "# " + o.Text
	default:
		return o.Text
	}
}

func runSession(ctx context.Context, g *globalFlags, f runFlags, in io.Reader, out io.Writer) error {
	cfg, logger, err := setup(g)
	if err != nil {
		return err
	}
	if f.noWatch {
		cfg.Scripts.Watch = false
	}

	con := &console{out: out}
	mem := host.NewMemory()
	mem.OnSend = func(id session.ID, text string) {
		con.printf("> %s\n", text)
	}
	mem.OnOutput = func(id session.ID, o session.Output) {
		con.printf("%s\n", formatOutput(o))
	}

	rt, err := app.New(cfg, app.WithLogger(logger), app.WithHost(mem))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- rt.Run(ctx)
	}()

	info := rt.OpenSession(session.Info{MUD: f.mud, Character: f.character})
	if err := rt.SetStatus(info.ID, session.StatusConnected); err != nil {
		logger.Warn().Err(err).Msg("set status")
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s := &replSession{rt: rt, mem: mem, id: info.ID, con: con}
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			err := s.handle(line)
			if errors.Is(err, errQuit) {
				break loop
			}
			if err != nil {
				con.printf("error: %v\n", err)
			}
			if err := rt.Flush(ctx); err != nil {
				break loop
			}
		}
	}

	if err := rt.CloseSession(info.ID); err == nil {
		_ = rt.Flush(ctx)
	}
	rt.Shutdown()
	return <-done
}

// replSession maps stdin lines to runtime calls for one session.
type replSession struct {
	rt  *app.Runtime
	mem *host.Memory
	id  session.ID
	con *console
}

// metaLine splits a ':' line into its command and argument. Lines starting
// with '::' are not meta lines.
func metaLine(line string) (name, args string, ok bool) {
	rest, found := strings.CutPrefix(line, ":")
	if !found || strings.HasPrefix(rest, ":") {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func (s *replSession) handle(line string) error {
	name, args, ok := metaLine(line)
	if !ok {
		return s.rt.Submit(s.id, session.NewInputLine(unescape(line)))
	}

	switch name {
	case "recv":
		return s.rt.ReceiveLine(s.id, event.LinePayload{Text: args})
	case "prompt":
		return s.rt.ReceiveLine(s.id, event.LinePayload{Text: args, Prompt: true})
	case "gmcp":
		pkg, body, _ := strings.Cut(args, " ")
		if pkg == "" {
			return errors.New("usage: :gmcp PKG JSON")
		}
		return s.rt.ReceiveGMCP(s.id, pkg, strings.TrimSpace(body))
	case "key":
		if err := s.rt.PressKey(s.id, args); err != nil {
			return err
		}
		return s.showInput()
	case "shortcut":
		if err := s.rt.InvokeShortcut(s.id, args); err != nil {
			return err
		}
		return s.showInput()
	case "input":
		return s.mem.SetInputValue(s.id, session.NewInputLine(args))
	case "submit":
		return s.rt.SubmitInput(s.id)
	case "password":
		return s.mem.SetPasswordMode(s.id, args == "on")
	case "status":
		return s.rt.SetStatus(s.id, session.Status(args))
	case "quit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown meta command %q", name)
	}
}

// showInput prints the input area once the key press has been handled.
func (s *replSession) showInput() error {
	ctx := context.Background()
	return s.rt.Call(ctx, func(context.Context) error {
		s.con.printf("[input] %s\n", s.mem.CurrentInputValue(s.id).ForDisplay())
		return nil
	})
}

// unescape turns a leading '::' into ':'.
func unescape(line string) string {
	if strings.HasPrefix(line, "::") {
		return line[1:]
	}
	return line
}
