package envscope

import (
	"fmt"
	"strings"

	"github.com/kilnforge/kiln/internal/buildid"
	"github.com/kilnforge/kiln/internal/manifest"
)

// DetectConflicts tracks every variable ever bound while composing
// flattened groups for the ejected environment dump (§4.4, eject-mode
// only), and reports a diagnostic for each collision: either the new
// binding targets a name a previous exclusive entry already owns, or the
// new binding is itself exclusive and the name already exists. Unlike
// AssembleTaskEnv's silent "later writes override earlier", eject mode
// must surface these since a human is meant to read the result.
func DetectConflicts(groups ...*Scope) []string {
	var diagnostics []string
	owner := map[string]Entry{}
	for _, g := range groups {
		for _, name := range g.Names() {
			e, _ := g.Get(name)
			prev, exists := owner[name]
			// The two conditions are independent, not mutually exclusive: an
			// exclusive binding followed by another exclusive binding of the
			// same name must produce both diagnostics (§8), so this cannot be
			// a switch/case.
			if exists && prev.Exclusive {
				diagnostics = append(diagnostics, conflictMessage(name, prev, e))
			}
			if exists && e.Exclusive {
				diagnostics = append(diagnostics, conflictMessage(name, prev, e))
			}
			owner[name] = e
		}
	}
	return diagnostics
}

func conflictMessage(name string, prev, next Entry) string {
	kind := "user-authored"
	if prev.Builtin || next.Builtin {
		kind = "built-in"
	}
	prevOwner, nextOwner := prev.SetBy, next.SetBy
	if prevOwner == "" {
		prevOwner = "(current package)"
	}
	if nextOwner == "" {
		nextOwner = "(current package)"
	}
	return fmt.Sprintf("%s variable %q set by %s conflicts with the exclusive binding from %s", kind, name, nextOwner, prevOwner)
}

// Lint reports namespacing problems in spec's user-authored exports
// (§4.4 "Namespacing lints"): a non-global export whose name doesn't start
// with the package's own prefix, a same-prefix export with the wrong case,
// and a global export containing "__" that doesn't start with its own
// prefix (which would otherwise look like it's clobbering another
// package's built-in namespace).
func Lint(spec *manifest.BuildSpec) []string {
	prefix := buildid.Normalize(spec.Name)
	var diagnostics []string
	for _, name := range spec.ExportedEnv.Names() {
		d, _ := spec.ExportedEnv.Get(name)
		lower := strings.ToLower(name)

		if d.EffectiveScope() == manifest.ScopeGlobal {
			if strings.Contains(name, "__") && !strings.HasPrefix(lower, prefix+"__") {
				diagnostics = append(diagnostics, fmt.Sprintf("global export %q contains \"__\" but does not start with %q's own prefix %q; it may clobber another package's namespace", name, spec.Name, prefix))
			}
			continue
		}

		switch {
		case !strings.HasPrefix(lower, prefix):
			diagnostics = append(diagnostics, fmt.Sprintf("export %q does not start with %q's package prefix %q", name, spec.Name, prefix))
		case !strings.HasPrefix(name, prefix):
			diagnostics = append(diagnostics, fmt.Sprintf("export %q matches package prefix %q only case-insensitively", name, prefix))
		}
	}
	return diagnostics
}
