// Package task turns a crawled BuildSpec graph into BuildTasks: specs paired
// with their fully-resolved environment and rendered commands (§3
// BuildTask, §4.4). A planner builds the whole graph once per crawl; the
// driver consumes it and discards it when the root task completes.
package task

import (
	"github.com/kilnforge/kiln/internal/envscope"
	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
)

// Command pairs a spec's declared command line with its fully shell-expanded
// form, ready to hand to exec.Command.
type Command struct {
	Raw      string
	Rendered string
}

// Task is a BuildTask (§3): a spec plus the environment and rendered
// commands the driver actually executes it with.
type Task struct {
	ID           string
	Spec         *manifest.BuildSpec
	Env          *envscope.Scope
	Command      []Command
	Dependencies []*Task
}

// Plan builds the Task graph for sandbox's root, computing every reachable
// spec's environment exactly once (by id), the way the crawler dedupes
// BuildSpecs by manifest path (§4.2 step 4).
func Plan(sandbox *manifest.Sandbox, cfg storepath.Config) *Task {
	p := &planner{cfg: cfg, seeded: sandbox.InitialEnv, byID: make(map[string]*Task)}
	return p.plan(sandbox.Root)
}

type planner struct {
	cfg    storepath.Config
	seeded []manifest.EnvVar
	byID   map[string]*Task
}

func (p *planner) plan(spec *manifest.BuildSpec) *Task {
	if t, ok := p.byID[spec.ID]; ok {
		return t
	}

	deps := make([]*Task, len(spec.Dependencies))
	for i, d := range spec.Dependencies {
		deps[i] = p.plan(d)
	}

	classified, transitive := envscope.ClassifyAll(spec, p.cfg)
	direct := make([]envscope.Classified, len(spec.Dependencies))
	byID := make(map[string]envscope.Classified, len(transitive))
	for _, c := range transitive {
		byID[c.Spec.ID] = c
	}
	for i, d := range spec.Dependencies {
		direct[i] = byID[d.ID]
	}

	env := envscope.AssembleTaskEnv(spec, p.cfg, classified, direct, transitive, p.seeded)

	commands := make([]Command, len(spec.Command))
	for i, raw := range spec.Command {
		commands[i] = Command{Raw: raw, Rendered: envscope.ShellExpand(raw, env)}
	}

	t := &Task{
		ID:           spec.ID,
		Spec:         spec,
		Env:          env,
		Command:      commands,
		Dependencies: deps,
	}
	p.byID[spec.ID] = t
	return t
}
