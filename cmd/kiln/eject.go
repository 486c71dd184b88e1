package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilnforge/kiln/internal/eject"
)

var ejectFlags struct {
	makefile bool
	output   string
}

func newEjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eject",
		Short: "Render the portable environment dump for the sandbox's root build",
		RunE:  runEject,
	}
	cmd.Flags().BoolVar(&ejectFlags.makefile, "makefile", false, "render a GNU Make fragment instead of a shell script")
	cmd.Flags().StringVarP(&ejectFlags.output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func runEject(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	sandbox, err := crawlSandbox(cfg)
	if err != nil {
		return err
	}

	groups, conflicts := eject.Build(sandbox.Root, cfg)
	for _, c := range conflicts {
		fmt.Fprintf(os.Stderr, "conflict: %s\n", c)
	}

	var out string
	if ejectFlags.makefile {
		out = eject.RenderMakefile(groups)
	} else {
		out = eject.RenderShell(groups)
	}

	if ejectFlags.output == "" {
		fmt.Print(out)
		return nil
	}
	return os.WriteFile(ejectFlags.output, []byte(out), 0o644)
}
