// Package buildid computes the stable identifier that locates a build in
// the content-addressed store (§4.3). The identifier is a canonical SHA-1
// over the build's entire transitive build definition, so two sandboxes
// describing the same build end up at the same store path regardless of
// where they were crawled from.
package buildid

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"strings"
)

// SkipHashEnv, when set to a non-empty value, makes Compute omit the hash
// suffix from the returned id (§4.3 "test-mode override"). This exists so
// fixture output is diffable across runs; it must never be set in
// production, since it collapses every build of the same name and version
// onto the same store path.
const SkipHashEnv = "KILN_STORE_SKIP_HASH"

// KV is an ordered name/value pair. Only used for the SeededEnv input —
// canonicalization sorts by key regardless of input order (see
// canonicalJSON), so the ordering here exists only so callers don't need to
// build a map themselves.
type KV struct {
	Name  string
	Value string
}

// Export mirrors one entry of a BuildSpec's exported_env for hashing
// purposes. It intentionally does not import internal/manifest —
// internal/manifest imports buildid, not the other way around.
type Export struct {
	Name      string
	Value     string
	Scope     string
	Exclusive bool
}

// Input is everything that must be hashed for a build's identifier to be a
// pure function of its entire transitive build definition.
type Input struct {
	Name    string
	Version string

	Command           []string
	ExportedEnv       []Export
	MutatesSourcePath bool

	// Source is the manifest's immutable-source URL if present, or
	// "local:<realpath-of-source>" otherwise.
	Source string

	// SeededEnv is the sandbox's initial environment (PATH, SHELL,
	// platform/architecture identifiers).
	SeededEnv []KV

	// DependencyIDs is the ordered sequence of direct dependencies' ids.
	DependencyIDs []string
}

// Compute returns the build identifier for in: normalize(name) + "-" +
// (version or "0.0.0") + "-" + hex(sha1(canonical(in))), unless SkipHashEnv
// is set, in which case the hash suffix is omitted.
func Compute(in Input) string {
	version := in.Version
	if version == "" {
		version = "0.0.0"
	}

	id := Normalize(in.Name) + "-" + version
	if os.Getenv(SkipHashEnv) != "" {
		return id
	}
	return id + "-" + hex.EncodeToString(sum(in))
}

func sum(in Input) []byte {
	h := sha1.New()
	h.Write(canonicalJSON(canonicalInput(in)))
	sum := h.Sum(nil)
	return sum
}

// canonicalInput builds the recursively-normalized structure described in
// §4.3: mappings sorted by key, sequences preserving declaration order,
// primitives serialized as-is.
func canonicalInput(in Input) map[string]interface{} {
	exports := make(map[string]interface{}, len(in.ExportedEnv))
	for _, e := range in.ExportedEnv {
		exports[e.Name] = map[string]interface{}{
			"value":     e.Value,
			"scope":     e.Scope,
			"exclusive": e.Exclusive,
		}
	}

	seeded := make(map[string]interface{}, len(in.SeededEnv))
	for _, kv := range in.SeededEnv {
		seeded[kv.Name] = kv.Value
	}

	deps := make([]string, len(in.DependencyIDs))
	copy(deps, in.DependencyIDs)

	command := make([]string, len(in.Command))
	copy(command, in.Command)

	return map[string]interface{}{
		"name":    in.Name,
		"version": in.Version,
		"source":  in.Source,
		"build_metadata": map[string]interface{}{
			"command":             command,
			"exported_env":        exports,
			"mutates_source_path": in.MutatesSourcePath,
		},
		"seeded_env":     seeded,
		"dependency_ids": deps,
	}
}

// canonicalJSON serializes v deterministically: encoding/json already sorts
// map[string]X keys lexicographically and preserves slice order, which is
// exactly the canonicalization rule §4.3 asks for, so no bespoke encoder is
// needed — this is the one place the hasher leans on that stdlib guarantee
// rather than re-implementing it.
func canonicalJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// v is built exclusively from maps, slices, strings and bools
		// above; Marshal cannot fail on it.
		panic("buildid: canonical encoding failed: " + err.Error())
	}
	return b
}

// Normalize maps an arbitrary package name to a valid POSIX path component,
// per §4.3: lower-case, strip '@', expand '_' to '__', map '/' to
// "__slash__", '.' to "__dot__", and finally '-' to '_'. The '-' mapping
// runs after the '_' expansion so the underscores it introduces are not
// doubled.
func Normalize(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "@", "")
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, "/", "__slash__")
	s = strings.ReplaceAll(s, ".", "__dot__")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// SortedExports returns a copy of exports sorted by name, useful for callers
// that want deterministic iteration without affecting the hash (which
// already canonicalizes via a map).
func SortedExports(exports []Export) []Export {
	out := make([]Export, len(exports))
	copy(out, exports)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
