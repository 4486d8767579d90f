package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dshills/mudscript/internal/app"
	"github.com/dshills/mudscript/internal/plugin"
)

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load every script module once and report failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(g)
			if err != nil {
				return err
			}
			cfg.Scripts.Watch = false

			rt, err := app.New(cfg, app.WithLogger(logger))
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			_ = rt.Manager().LoadAll(ctx)
			defer func() {
				mods := rt.Manager().Modules()
				for i := len(mods) - 1; i >= 0; i-- {
					_ = rt.Manager().Unload(ctx, mods[i].ID)
				}
			}()

			out := cmd.OutOrStdout()
			failed := 0
			for _, m := range rt.Manager().Modules() {
				if m.State == plugin.StateLoaded {
					fmt.Fprintf(out, "ok      %s\n", m.ID)
					continue
				}
				failed++
				fmt.Fprintf(out, "FAIL    %s: %v\n", m.ID, m.Err)
			}

			broken := rt.BrokenModules()
			names := make([]string, 0, len(broken))
			for name := range broken {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				failed++
				fmt.Fprintf(out, "FAIL    %s: %v\n", name, broken[name])
			}

			if failed > 0 {
				return fmt.Errorf("%d module(s) failed", failed)
			}
			return nil
		},
	}
}
