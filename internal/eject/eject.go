// Package eject renders the ejected, portable environment dump (§6) a human
// can source outside the orchestrator, plus the exclusivity-conflict
// diagnostics that eject mode surfaces from the composition engine (§4.4).
package eject

import (
	"fmt"
	"strings"

	"github.com/kilnforge/kiln/internal/envscope"
	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
)

// Group is one package's flattened environment in the ejected dump: its
// built-in bindings (root, install, bin, …) plus its own local and global
// exports, combined so the group is self-sufficient if sourced alone.
type Group struct {
	Header string
	Env    *envscope.Scope
}

// Build classifies root's whole dependency closure and flattens each
// reachable spec into one Group, in leaves-first order (the order a shell
// script would need to define a dependency's variables before a dependent
// references them). It also runs the cross-group exclusivity check (§4.4
// "Exclusivity conflict detection") over the full ordered set of groups.
func Build(root *manifest.BuildSpec, cfg storepath.Config) (groups []Group, conflicts []string) {
	rootResult, transitive := envscope.ClassifyAll(root, cfg)
	ordered := append(append([]envscope.Classified{}, transitive...), rootResult)

	scopes := make([]*envscope.Scope, 0, len(ordered))
	for _, c := range ordered {
		combined := envscope.NewScope()
		envscope.BuiltinsFor(c.Spec, cfg, false).MergeInto(combined)
		c.Local.MergeInto(combined)
		c.Global.MergeInto(combined)

		groups = append(groups, Group{
			Header: fmt.Sprintf("%s@%s", c.Spec.Name, c.Spec.Version),
			Env:    combined,
		})
		scopes = append(scopes, combined)
	}

	conflicts = envscope.DetectConflicts(scopes...)
	return groups, conflicts
}

// RenderShell renders groups as the §6 "Ejected environment dump": groups of
// `# <header>` followed by `export NAME="value"` lines, separated by the
// host line terminator, ready to be sourced by a portable shell.
func RenderShell(groups []Group) string {
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteString(eol)
		}
		fmt.Fprintf(&b, "# %s%s", g.Header, eol)
		for _, name := range g.Env.Names() {
			e, _ := g.Env.Get(name)
			fmt.Fprintf(&b, "export %s=%q%s", name, e.Value, eol)
		}
	}
	return b.String()
}

// RenderMakefile renders the same groups as a GNU Make fragment, one
// exported variable assignment per line, so a dependent build system can
// `include` the result rather than `source` it.
func RenderMakefile(groups []Group) string {
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteString(eol)
		}
		fmt.Fprintf(&b, "# %s%s", g.Header, eol)
		for _, name := range g.Env.Names() {
			e, _ := g.Env.Get(name)
			fmt.Fprintf(&b, "export %s := %s%s", name, makeEscape(e.Value), eol)
		}
	}
	return b.String()
}

// makeEscape escapes the characters Make treats specially in a recipe/value
// position: '$' must be doubled or Make tries to expand it as a variable
// reference.
func makeEscape(value string) string {
	return strings.ReplaceAll(value, "$", "$$")
}
