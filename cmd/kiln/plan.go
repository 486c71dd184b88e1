package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilnforge/kiln/internal/task"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the build plan without executing anything",
		RunE:  runPlan,
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	sandbox, err := crawlSandbox(cfg)
	if err != nil {
		return err
	}
	root := task.Plan(sandbox, cfg)

	for _, t := range flattenLeavesFirst(root) {
		cached := ""
		if _, err := os.Stat(cfg.FinalInstall(t.Spec, t.Spec.ShouldBePersisted)); err == nil {
			cached = " (cached)"
		}
		fmt.Printf("%s%s\n", t.ID, cached)
		for _, c := range t.Command {
			fmt.Printf("  $ %s\n", c.Rendered)
		}
	}
	return nil
}

// flattenLeavesFirst walks root's Task graph and returns every reachable
// Task exactly once, dependencies before dependents, mirroring
// graph.CollectTransitive's ordering guarantee for the BuildSpec graph it
// was planned from.
func flattenLeavesFirst(root *task.Task) []*task.Task {
	var order []*task.Task
	seen := make(map[string]bool)
	var visit func(t *task.Task)
	visit = func(t *task.Task) {
		if seen[t.ID] {
			return
		}
		seen[t.ID] = true
		for _, d := range t.Dependencies {
			visit(d)
		}
		order = append(order, t)
	}
	visit(root)
	return order
}
