package envscope

import (
	"path/filepath"
	"strings"

	"github.com/kilnforge/kiln/internal/buildid"
	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
)

// CurPrefix is the prefix used for the built-in scope of the build
// currently running, as opposed to a dependency's (§4.4: "cur when the
// variable describes the build currently running").
const CurPrefix = "cur"

// subdirs lists the directory-valued built-ins that live directly under
// __install, in the order they are computed (not user-visible; only Names
// order matters, which is fixed below).
var subdirs = []string{"bin", "sbin", "lib", "man", "doc", "stublibs", "toplevel", "share", "etc"}

// Builtins computes the 14-odd built-in variables for spec under the given
// prefix (§4.4). currentlyBuilding selects __root/__install between the
// build's in-progress scratch path and its finalized path;
// spec.ShouldBePersisted selects which store root the paths resolve against.
func Builtins(spec *manifest.BuildSpec, cfg storepath.Config, prefix string, currentlyBuilding bool) *Scope {
	// cfg.Root already returns Build(spec) whenever MutatesSourcePath is
	// set and Source(spec) otherwise, which is exactly getRootPath(spec);
	// that happens to equal "getBuildPath(spec) iff currently building and
	// mutatesSourcePath, else getRootPath(spec)" for every combination of
	// the two booleans, so no separate currently-building branch is needed
	// here.
	root := cfg.Root(spec, spec.SourcePath, spec.ShouldBePersisted)

	install := cfg.FinalInstall(spec, spec.ShouldBePersisted)
	if currentlyBuilding {
		install = cfg.Install(spec, spec.ShouldBePersisted)
	}

	// __target_dir names the scratch directory a build's command actually
	// writes intermediate outputs into, distinct from __root (the source
	// tree the command runs from, which only equals the build scratch dir
	// when the package mutates its source in place).
	targetDir := cfg.Build(spec, spec.ShouldBePersisted)

	depends := make([]string, len(spec.Dependencies))
	for i, d := range spec.Dependencies {
		depends[i] = buildid.Normalize(d.Name)
	}

	s := NewScope()
	set := func(suffix, value string) {
		s.Set(prefix+"__"+suffix, Entry{Value: value, Exclusive: true, Builtin: true})
	}
	set("name", spec.Name)
	set("version", spec.Version)
	set("root", root)
	set("depends", strings.Join(depends, " "))
	set("target_dir", targetDir)
	set("install", install)
	for _, sub := range subdirs {
		set(sub, filepath.Join(install, sub))
	}
	return s
}

// BuiltinsFor is Builtins with the prefix derived from name the way §4.4
// describes dependency prefixes: normalize(name).
func BuiltinsFor(spec *manifest.BuildSpec, cfg storepath.Config, currentlyBuilding bool) *Scope {
	return Builtins(spec, cfg, buildid.Normalize(spec.Name), currentlyBuilding)
}
