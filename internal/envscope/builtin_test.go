package envscope

import (
	"path/filepath"
	"testing"
)

func TestBuiltinsAllExclusive(t *testing.T) {
	spec := newSpec("foo-1.0.0-aaaa", "foo", "1.0.0")
	s := Builtins(spec, testCfg(), CurPrefix, true)
	for _, name := range s.Names() {
		e, _ := s.Get(name)
		if !e.Exclusive || !e.Builtin {
			t.Errorf("%s: want Exclusive=true Builtin=true, got %+v", name, e)
		}
	}
}

func TestBuiltinsSubdirsUnderInstall(t *testing.T) {
	spec := newSpec("foo-1.0.0-aaaa", "foo", "1.0.0")
	s := Builtins(spec, testCfg(), CurPrefix, false)
	install, _ := s.Get("cur__install")
	bin, _ := s.Get("cur__bin")
	if bin.Value != filepath.Join(install.Value, "bin") {
		t.Errorf("cur__bin = %q, want under cur__install %q", bin.Value, install.Value)
	}
}

func TestBuiltinsRootEqualsSourceWhenNotMutating(t *testing.T) {
	spec := newSpec("foo-1.0.0-aaaa", "foo", "1.0.0")
	cfg := testCfg()
	s := Builtins(spec, cfg, CurPrefix, true)
	root, _ := s.Get("cur__root")
	if root.Value != cfg.Source(spec.SourcePath) {
		t.Errorf("cur__root = %q, want source path %q", root.Value, cfg.Source(spec.SourcePath))
	}
}

func TestBuiltinsInstallDiffersWhileBuilding(t *testing.T) {
	spec := newSpec("foo-1.0.0-aaaa", "foo", "1.0.0")
	cfg := testCfg()
	building := Builtins(spec, cfg, CurPrefix, true)
	finished := Builtins(spec, cfg, CurPrefix, false)
	bInstall, _ := building.Get("cur__install")
	fInstall, _ := finished.Get("cur__install")
	if bInstall.Value == fInstall.Value {
		t.Error("cur__install should differ between in-progress (Install) and finished (FinalInstall) builds")
	}
}

func TestBuiltinsDependsListsNormalizedNames(t *testing.T) {
	dep := newSpec("my_lib-1.0.0-aaaa", "my_lib", "1.0.0")
	spec := newSpec("app-1.0.0-bbbb", "app", "1.0.0", dep)
	s := Builtins(spec, testCfg(), CurPrefix, false)
	depends, _ := s.Get("cur__depends")
	if depends.Value != "my__lib" {
		t.Errorf("cur__depends = %q, want the normalized dependency name %q", depends.Value, "my__lib")
	}
}

func TestBuiltinsForUsesNormalizedPrefix(t *testing.T) {
	spec := newSpec("my-lib-1.0.0-aaaa", "my-lib", "1.0.0")
	s := BuiltinsFor(spec, testCfg(), false)
	if _, ok := s.Get("my_lib__name"); !ok {
		t.Errorf("expected a my_lib__name entry, got names %v", s.Names())
	}
}
