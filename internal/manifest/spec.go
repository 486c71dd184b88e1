// Package manifest implements the sandbox crawler (§4.2 of the design): it
// walks a package directory tree, resolves dependency names to paths via an
// external module resolver, and produces an immutable BuildSpec graph with
// stable, content-derived identifiers (internal/buildid).
package manifest

import "github.com/kilnforge/kiln/internal/graph"

// Scope controls whether an export is visible only to a build's direct
// consumers (local, the default) or is additionally threaded through to
// every transitive consumer (global). See the environment composition
// engine (internal/envscope) for how the two are folded differently.
type Scope string

const (
	ScopeLocal  Scope = "local"
	ScopeGlobal Scope = "global"
)

// ExportDescriptor is one entry of a BuildSpec's exported environment.
// Builtin is true only for the auto-generated system variables
// (internal/envscope computes those); no user-authored descriptor may set
// it.
type ExportDescriptor struct {
	Value     string
	Scope     Scope
	Exclusive bool
	Builtin   bool
}

// EffectiveScope returns d.Scope, defaulting to ScopeLocal for the zero
// value so callers never need to special-case an unset scope.
func (d ExportDescriptor) EffectiveScope() Scope {
	if d.Scope == "" {
		return ScopeLocal
	}
	return d.Scope
}

// ExportedEnv is an insertion-ordered mapping from variable name to export
// descriptor. Manifest authors write exportedEnv as a JSON object, and its
// textual key order must survive into every downstream rendering (the
// ejected environment dump, _esy/env) — plain Go map iteration order is
// randomized per process and would make builds visibly nondeterministic to
// a human reading the output, so this type carries its own order.
type ExportedEnv struct {
	names  []string
	values map[string]ExportDescriptor
}

// NewExportedEnv returns an empty, ready-to-use ExportedEnv.
func NewExportedEnv() *ExportedEnv {
	return &ExportedEnv{values: make(map[string]ExportDescriptor)}
}

// Set assigns name's descriptor, recording name's position the first time
// it is set. Re-setting an existing name updates its value without moving
// its position.
func (e *ExportedEnv) Set(name string, d ExportDescriptor) {
	if e.values == nil {
		e.values = make(map[string]ExportDescriptor)
	}
	if _, exists := e.values[name]; !exists {
		e.names = append(e.names, name)
	}
	e.values[name] = d
}

// Get returns name's descriptor and whether it is present.
func (e *ExportedEnv) Get(name string) (ExportDescriptor, bool) {
	if e == nil {
		return ExportDescriptor{}, false
	}
	d, ok := e.values[name]
	return d, ok
}

// Names returns every exported variable name in textual declaration order.
func (e *ExportedEnv) Names() []string {
	if e == nil {
		return nil
	}
	return e.names
}

// Len reports how many variables are exported.
func (e *ExportedEnv) Len() int {
	if e == nil {
		return 0
	}
	return len(e.names)
}

// EnvVar is a name/value pair, used wherever ordering (not map semantics)
// is significant, e.g. the sandbox's seeded initial environment.
type EnvVar struct {
	Name  string
	Value string
}

// BuildSpec is immutable once the crawl that produced it returns. It is the
// node type the graph primitives (internal/graph) and the build driver
// (internal/driver) operate on.
type BuildSpec struct {
	// ID is a globally unique, content-derived identifier (see
	// internal/buildid) stable under permutation of map iteration order, as
	// long as the dependency ids and their declared order are unchanged
	// (the dependency ids are hashed as an ordered sequence).
	ID      string
	Name    string
	Version string

	// Command is the ordered sequence of shell command lines run, in order,
	// to produce this build's outputs. A build with an empty Command still
	// gets _esy/env and _esy/findlib.conf written; it just spawns no
	// subprocess.
	Command []string

	ExportedEnv *ExportedEnv

	// SourcePath is relative to the sandbox root.
	SourcePath string

	MutatesSourcePath bool
	ShouldBePersisted bool

	// Dependencies holds this spec's direct dependencies, in manifest
	// declaration order (runtime dependencies followed by peer
	// dependencies, deduplicated by name). The overall graph is a DAG;
	// BuildSpec holds dependencies directly by pointer rather than by id
	// because a crawl never mutates a BuildSpec once constructed, so
	// sharing a pointer across multiple dependents is safe and lets
	// memoization (by ID) dedupe identical subgraphs cheaply.
	Dependencies []*BuildSpec

	// Errors accumulates crawl-phase diagnostics for this specific build
	// (cycles, unresolved dependencies). A non-empty Errors does not imply
	// the rest of the spec is invalid — the crawl records and continues.
	Errors []string
}

// NodeID implements graph.Node.
func (s *BuildSpec) NodeID() string { return s.ID }

// BuildID implements internal/storepath's Spec.
func (s *BuildSpec) BuildID() string { return s.ID }

// Mutates implements internal/storepath's Spec.
func (s *BuildSpec) Mutates() bool { return s.MutatesSourcePath }

// NodeDeps implements graph.Node.
func (s *BuildSpec) NodeDeps() []graph.Node {
	out := make([]graph.Node, len(s.Dependencies))
	for i, d := range s.Dependencies {
		out[i] = d
	}
	return out
}

// Sandbox is the result of crawling a sandbox root.
type Sandbox struct {
	Root *BuildSpec
	// InitialEnv is seeded from the host process: PATH, SHELL, and the
	// platform/architecture identifiers (kiln__platform, kiln__architecture,
	// kiln__target_platform, kiln__target_architecture).
	InitialEnv []EnvVar
}
