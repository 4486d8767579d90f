// Package main is the entry point for the mudscript runtime.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/mudscript/internal/app"
	"github.com/dshills/mudscript/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	scriptDirs []string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "mudscript",
		Short:         "Scripting runtime for MUD clients",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to configuration file (.toml, .yaml or .json)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format (console, json)")
	pf.StringSliceVarP(&g.scriptDirs, "scripts", "s", nil, "Script directory; repeat to search several")

	root.AddCommand(newRunCmd(&g))
	root.AddCommand(newCheckCmd(&g))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig builds the configuration: defaults or the config file, then
// MUDSCRIPT_* variables, then flags.
func loadConfig(g *globalFlags, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	if len(g.scriptDirs) > 0 {
		cfg.Scripts.Dirs = g.scriptDirs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(g *globalFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig(g, nil)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := app.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "mudscript %s\nCommit: %s\nBuilt: %s\n", version, commit, date)
			return err
		},
	}
}
