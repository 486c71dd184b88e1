package manifest

import (
	"bytes"
	"encoding/json"
	"os"

	"golang.org/x/xerrors"
)

// parsedManifest is the minimal, already-normalized view the crawler needs
// out of a package.json-shaped manifest. Schema validation and JSON5/ANF
// tolerance are the manifest parser's concern, which §1 places out of
// scope; this is the explicit interface the crawler consumes from that
// external collaborator.
type parsedManifest struct {
	name    string
	version string

	command        []string
	buildsInSource bool
	exportedEnv    *ExportedEnv

	// runtimeDeps is the order-preserved, deduplicated union of the
	// manifest's "dependencies" and "peerDependencies" name@versionSpec
	// pairs, read in that order (§4.2 step 2). devDependencies and
	// optionalDependencies are never consulted.
	runtimeDeps []string

	// immutableSource is the manifest's declared immutable-source
	// identifier (e.g. a tarball URL or registry resolution), used by
	// internal/buildid as the "source" tag and to decide
	// should_be_persisted. Empty means the package came from a local,
	// mutable source.
	immutableSource string
}

type rawCommand []string

// UnmarshalJSON accepts either a single string or an array of strings
// (§4.2 "command normalization"): a bare string promotes to a one-element
// sequence.
func (c *rawCommand) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*c = rawCommand{single}
		return nil
	}
	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return xerrors.Errorf("build: expected a string or array of strings: %w", err)
	}
	*c = rawCommand(multi)
	return nil
}

type rawExport struct {
	Val       string `json:"val"`
	Scope     string `json:"scope"`
	Exclusive bool   `json:"exclusive"`
}

type rawEsyConfig struct {
	Build          rawCommand      `json:"build"`
	BuildsInSource bool            `json:"buildsInSource"`
	ExportedEnvRaw json.RawMessage `json:"exportedEnv"`
}

type rawManifest struct {
	Name    string        `json:"name"`
	Version string        `json:"version"`
	Esy     *rawEsyConfig `json:"esy"`
	Build   rawCommand    `json:"build"` // esy also accepts a top-level "build" as shorthand for esy.build

	DependenciesRaw     json.RawMessage `json:"dependencies"`
	PeerDependenciesRaw json.RawMessage `json:"peerDependencies"`

	// Resolved is non-empty when the package was installed from an
	// immutable source (a tarball fetched by a package manager, as opposed
	// to a local, mutable checkout); its presence drives
	// should_be_persisted (§4.2 step 6).
	Resolved string `json:"_resolved"`
}

// readManifestFile reads and parses dir/package.json.
func readManifestFile(path string) (*parsedManifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw rawManifest
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, xerrors.Errorf("parsing %s: %w", path, err)
	}

	runtimeDeps, err := orderedDependencyUnion(raw.DependenciesRaw, raw.PeerDependenciesRaw)
	if err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}

	command := []string(raw.Build)
	buildsInSource := false
	var exportedEnv *ExportedEnv
	if raw.Esy != nil {
		if len(raw.Esy.Build) > 0 {
			command = []string(raw.Esy.Build)
		}
		buildsInSource = raw.Esy.BuildsInSource
		exportedEnv, err = orderedExportedEnv(raw.Esy.ExportedEnvRaw)
		if err != nil {
			return nil, xerrors.Errorf("%s: exportedEnv: %w", path, err)
		}
	}
	if exportedEnv == nil {
		exportedEnv = NewExportedEnv()
	}

	return &parsedManifest{
		name:            raw.Name,
		version:         raw.Version,
		command:         command,
		buildsInSource:  buildsInSource,
		exportedEnv:     exportedEnv,
		runtimeDeps:     runtimeDeps,
		immutableSource: raw.Resolved,
	}, nil
}

// orderedDependencyUnion reads "dependencies" then "peerDependencies" as
// JSON objects, preserving each object's textual key order and
// deduplicating by name@versionSpec across the two (§4.2 step 2). Plain
// encoding/json map decoding loses key order, which is why each object is
// walked with a streaming decoder instead of being unmarshaled into a Go
// map.
func orderedDependencyUnion(sections ...json.RawMessage) ([]string, error) {
	seen := make(map[string]bool)
	var union []string
	for _, section := range sections {
		names, values, err := decodeOrderedStringObject(section)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			pair := name + "@" + values[name]
			if seen[pair] {
				continue
			}
			seen[pair] = true
			union = append(union, pair)
		}
	}
	return union, nil
}

// decodeOrderedStringObject decodes a JSON object of string values,
// returning its keys in textual declaration order alongside a lookup map.
func decodeOrderedStringObject(raw json.RawMessage) (names []string, values map[string]string, err error) {
	values = make(map[string]string)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, values, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, xerrors.Errorf("expected a JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, xerrors.Errorf("non-string object key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return nil, nil, xerrors.Errorf("key %q: %w", key, err)
		}
		if _, exists := values[key]; !exists {
			names = append(names, key)
		}
		values[key] = value
	}
	return names, values, nil
}

// orderedExportedEnv decodes an exportedEnv JSON object, preserving its
// textual key order (the open question in §9 — "a strict implementation
// must preserve the manifest's textual order through parse" — decided in
// favor of preservation, since the ejected environment dump and _esy/env
// are meant to be human-read and a shuffled order would make two
// byte-identical manifests look like they diverged).
func orderedExportedEnv(raw json.RawMessage) (*ExportedEnv, error) {
	out := NewExportedEnv()
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, xerrors.Errorf("expected a JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, xerrors.Errorf("non-string object key %v", keyTok)
		}
		var entry rawExport
		if err := dec.Decode(&entry); err != nil {
			return nil, xerrors.Errorf("%q: %w", name, err)
		}
		scope := ScopeLocal
		if entry.Scope == string(ScopeGlobal) {
			scope = ScopeGlobal
		}
		out.Set(name, ExportDescriptor{
			Value:     entry.Val,
			Scope:     scope,
			Exclusive: entry.Exclusive,
		})
	}
	return out, nil
}
