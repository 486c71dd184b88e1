package eject

import (
	"strings"
	"testing"

	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
)

func testCfg() storepath.Config {
	return storepath.Config{
		StorePath:      "/store",
		LocalStorePath: "/local-store",
		SandboxPath:    "/sandbox",
	}
}

func newSpec(id, name, version string, deps ...*manifest.BuildSpec) *manifest.BuildSpec {
	return &manifest.BuildSpec{
		ID:           id,
		Name:         name,
		Version:      version,
		ExportedEnv:  manifest.NewExportedEnv(),
		SourcePath:   name,
		Dependencies: deps,
	}
}

func TestBuildOrdersLeavesBeforeRoot(t *testing.T) {
	base := newSpec("base-1.0.0-aaaa", "base", "1.0.0")
	app := newSpec("app-1.0.0-bbbb", "app", "1.0.0", base)

	groups, _ := Build(app, testCfg())
	if len(groups) != 2 {
		t.Fatalf("want 2 groups, got %d", len(groups))
	}
	if groups[0].Header != "base@1.0.0" {
		t.Errorf("groups[0] = %q, want the dependency before the dependent", groups[0].Header)
	}
	if groups[1].Header != "app@1.0.0" {
		t.Errorf("groups[1] = %q, want the root last", groups[1].Header)
	}
}

func TestBuildFlagsExclusivityConflictAcrossGroups(t *testing.T) {
	base := newSpec("base-1.0.0-aaaa", "base", "1.0.0")
	base.ExportedEnv.Set("shared__v", manifest.ExportDescriptor{Value: "1", Scope: manifest.ScopeGlobal, Exclusive: true})
	other := newSpec("other-1.0.0-cccc", "other", "1.0.0")
	other.ExportedEnv.Set("shared__v", manifest.ExportDescriptor{Value: "2", Scope: manifest.ScopeGlobal})
	app := newSpec("app-1.0.0-bbbb", "app", "1.0.0", base, other)

	_, conflicts := Build(app, testCfg())
	if len(conflicts) == 0 {
		t.Error("expected an exclusivity-conflict diagnostic for the shared__v collision")
	}
}

func TestRenderShellProducesSourceableExports(t *testing.T) {
	base := newSpec("base-1.0.0-aaaa", "base", "1.0.0")
	groups, _ := Build(base, testCfg())

	out := RenderShell(groups)
	if !strings.HasPrefix(out, "# base@1.0.0"+eol) {
		t.Errorf("output should start with the package header, got %q", out)
	}
	if !strings.Contains(out, `export base__name="base"`) {
		t.Errorf("output should contain the built-in name export, got %q", out)
	}
}

func TestRenderMakefileEscapesDollar(t *testing.T) {
	base := newSpec("base-1.0.0-aaaa", "base", "1.0.0")
	base.ExportedEnv.Set("base__price", manifest.ExportDescriptor{Value: "$5", Scope: manifest.ScopeLocal})
	groups, _ := Build(base, testCfg())

	out := RenderMakefile(groups)
	if !strings.Contains(out, "base__price := $$5") {
		t.Errorf("want an escaped literal dollar sign, got %q", out)
	}
}
