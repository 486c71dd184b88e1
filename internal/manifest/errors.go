package manifest

import "fmt"

// CycleError records that resolving dep from within pkg would revisit a
// package already on the current resolution trace. The crawl attaches it to
// the offending BuildSpec's Errors and continues walking the rest of the
// graph rather than aborting (§4.2).
type CycleError struct {
	Package string
	Dep     string
	Trace   []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s -> %s (trace: %v)", e.Package, e.Dep, e.Trace)
}

// UnresolvedDependencyError records that dep could not be resolved to a
// package.json relative to pkgDir.
type UnresolvedDependencyError struct {
	PkgDir string
	Dep    string
	Cause  error
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("unresolved dependency %q from %s: %v", e.Dep, e.PkgDir, e.Cause)
}

func (e *UnresolvedDependencyError) Unwrap() error { return e.Cause }

// summarizeUnresolved implements §8's boundary case: "Unresolved dependency
// names are batched: the first three are named, the rest summarized."
func summarizeUnresolved(deps []string) string {
	const shown = 3
	if len(deps) <= shown {
		return fmt.Sprintf("%v", deps)
	}
	return fmt.Sprintf("%v and %d more", deps[:shown], len(deps)-shown)
}
