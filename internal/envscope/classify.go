package envscope

import (
	"github.com/kilnforge/kiln/internal/graph"
	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
)

// Classified holds one spec's fully-substituted local and global exports,
// the result of folding that spec's own exported_env through its
// evaluation scope (§4.4).
type Classified struct {
	Spec   *manifest.BuildSpec
	Local  *Scope
	Global *Scope
}

// EvaluationScope builds the scope used to substitute $var in spec's own
// exports (§4.4 "Evaluation scope"): each direct dependency's built-in
// scope under its own prefix, each direct dependency's local exports, and
// spec's own built-in scope under its non-cur prefix. Transitive
// dependencies' global exports are deliberately excluded.
func EvaluationScope(spec *manifest.BuildSpec, direct []Classified, cfg storepath.Config) *Scope {
	eval := NewScope()
	for _, d := range direct {
		BuiltinsFor(d.Spec, cfg, false).MergeInto(eval)
		d.Local.MergeInto(eval)
	}
	BuiltinsFor(spec, cfg, false).MergeInto(eval)
	return eval
}

// ClassifyExports substitutes every entry of spec's exported_env through
// eval and routes each to local or global scope by its descriptor's scope
// field (§4.4 "Per-spec export classification").
func ClassifyExports(spec *manifest.BuildSpec, eval *Scope) (local, global *Scope) {
	local, global = NewScope(), NewScope()
	for _, name := range spec.ExportedEnv.Names() {
		d, _ := spec.ExportedEnv.Get(name)
		entry := Entry{
			Value:     Substitute(d.Value, eval),
			Exclusive: d.Exclusive,
			Builtin:   d.Builtin,
			SetBy:     spec.Name,
		}
		if d.EffectiveScope() == manifest.ScopeGlobal {
			global.Set(name, entry)
		} else {
			local.Set(name, entry)
		}
	}
	return local, global
}

// ClassifyAll folds classification over spec's entire dependency graph
// (§4.4), computing each reachable spec's Local/Global scopes exactly once
// and returning the root's result plus its full transitive closure in
// topological (leaves-first) order — the input internal/task and the
// eject renderer need for task environment assembly (§4.4 step 6) and the
// ejected dump respectively.
func ClassifyAll(root *manifest.BuildSpec, cfg storepath.Config) (rootResult Classified, transitive []Classified) {
	var all []Classified
	result := graph.Fold(root, func(direct []Classified, allDeps []Classified, n graph.Node) Classified {
		spec := n.(*manifest.BuildSpec)
		eval := EvaluationScope(spec, direct, cfg)
		local, global := ClassifyExports(spec, eval)
		c := Classified{Spec: spec, Local: local, Global: global}
		if spec.NodeID() == root.NodeID() {
			all = allDeps
		}
		return c
	})
	return result, all
}
