package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	kiln "github.com/kilnforge/kiln"
	"github.com/kilnforge/kiln/internal/driver"
	"github.com/kilnforge/kiln/internal/task"
)

var buildFlags struct {
	dependenciesOnly bool
	release          int
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the sandbox rooted at --sandbox (or cwd)",
		RunE:  runBuild,
	}
	cmd.Flags().BoolVar(&buildFlags.dependenciesOnly, "dependencies-only", false, "build every task except the root, to warm a shared store")
	cmd.Flags().IntVar(&buildFlags.release, "release", 0, "release mode: keep only the last N log lines, written only on failure (0 disables)")
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	sandbox, err := crawlSandbox(cfg)
	if err != nil {
		return err
	}
	root := task.Plan(sandbox, cfg)

	d := driver.New(cfg)
	d.LogTail = buildFlags.release

	colorize := isatty.IsTerminal(os.Stdout.Fd())
	onStatus := func(s driver.Status) { printStatus(s, colorize) }

	ctx, cancel := kiln.InterruptibleContext()
	defer cancel()

	if buildFlags.dependenciesOnly {
		return buildDependenciesOnly(ctx, d, root, onStatus)
	}
	return d.Build(ctx, root, onStatus)
}

// buildDependenciesOnly runs every task in root's graph except root itself
// (§4 "kiln build -dependencies-only"), by building each of root's direct
// dependencies as its own build. All of them go through the same Driver,
// whose per-task memoization outlives a single Build call, so a dependency
// shared between them executes once and later calls reuse its result.
func buildDependenciesOnly(ctx context.Context, d *driver.Driver, root *task.Task, onStatus driver.OnStatus) error {
	for _, dep := range root.Dependencies {
		if err := d.Build(ctx, dep, onStatus); err != nil {
			return err
		}
	}
	return nil
}

func printStatus(s driver.Status, colorize bool) {
	switch s.Phase {
	case driver.PhaseInProgress:
		fmt.Printf("%s: building\n", s.Task.Spec.Name)
	case driver.PhaseSuccess:
		tag := "built"
		if s.Cached {
			tag = "cached"
		}
		if colorize {
			fmt.Printf("\033[32m%s: %s\033[0m (%dms)\n", s.Task.Spec.Name, tag, s.TimeMS)
		} else {
			fmt.Printf("%s: %s (%dms)\n", s.Task.Spec.Name, tag, s.TimeMS)
		}
	case driver.PhaseFailure:
		if colorize {
			fmt.Fprintf(os.Stderr, "\033[31m%s: failed: %v\033[0m\n", s.Task.Spec.Name, s.Err)
		} else {
			fmt.Fprintf(os.Stderr, "%s: failed: %v\n", s.Task.Spec.Name, s.Err)
		}
	}
}
