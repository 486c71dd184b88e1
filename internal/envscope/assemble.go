package envscope

import (
	"path/filepath"
	"strings"

	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
)

// FoldGlobalScopes merges a topologically-ordered (leaves-first) sequence
// of global scopes into one accumulator, re-substituting each entry's
// value against the accumulator as it stands before inserting it (§4.4
// step 6): "This makes a downstream global shadow an upstream one while
// letting the downstream refer back to the shadowed value."
func FoldGlobalScopes(ordered []*Scope) *Scope {
	acc := NewScope()
	for _, sc := range ordered {
		for _, name := range sc.Names() {
			e, _ := sc.Get(name)
			e.Value = Substitute(e.Value, acc)
			acc.Set(name, e)
		}
	}
	return acc
}

// AssembleTaskEnv produces the ordered environment mapping spec's command
// runs under (§4.4 "Task environment assembly"). classified is spec's own
// Classified result; direct is spec's direct dependencies' Classified
// results in declaration order; transitive is every transitive dependency
// (not including spec) in topological, leaves-first order — the same order
// ClassifyAll returns; seeded is the sandbox's initial environment.
func AssembleTaskEnv(spec *manifest.BuildSpec, cfg storepath.Config, classified Classified, direct []Classified, transitive []Classified, seeded []manifest.EnvVar) *Scope {
	env := NewScope()

	// 1. OCAMLFIND_CONF under the build's scratch directory.
	buildPath := cfg.Build(spec, spec.ShouldBePersisted)
	env.Set("OCAMLFIND_CONF", Entry{Value: filepath.Join(buildPath, "_esy", "findlib.conf")})

	// 2. PATH / MAN_PATH, concatenating every transitive dependency's bin
	// and man directories in the same leaves-first order used by the
	// global-scope fold in step 6.
	var bins, mans []string
	for _, d := range transitive {
		installPath := cfg.FinalInstall(d.Spec, d.Spec.ShouldBePersisted)
		bins = append(bins, filepath.Join(installPath, "bin"))
		mans = append(mans, filepath.Join(installPath, "man"))
	}
	env.Set("PATH", Entry{Value: strings.Join(bins, ":") + ":$PATH"})
	env.Set("MAN_PATH", Entry{Value: strings.Join(mans, ":") + ":$MAN_PATH"})

	// 3. Own built-in scope under the cur prefix.
	Builtins(spec, cfg, CurPrefix, true).MergeInto(env)

	// 4. Each direct dependency's local scope, in declaration order.
	for _, d := range direct {
		d.Local.MergeInto(env)
	}

	// 5. Own local scope.
	classified.Local.MergeInto(env)

	// 6. Fold of every transitive dependency's global scope plus spec's
	// own global scope, leaves-first, re-substituting as it accumulates.
	ordered := make([]*Scope, 0, len(transitive)+1)
	for _, d := range transitive {
		ordered = append(ordered, d.Global)
	}
	ordered = append(ordered, classified.Global)
	FoldGlobalScopes(ordered).MergeInto(env)

	// 7. The sandbox's seeded environment, substituted through everything
	// assembled so far.
	for _, kv := range seeded {
		env.Set(kv.Name, Entry{Value: Substitute(kv.Value, env)})
	}

	return env
}
