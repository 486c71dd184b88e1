package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// writePackage writes dir/package.json with the given raw JSON manifest
// body, creating dir as needed.
func writePackage(t *testing.T, dir string, manifest map[string]interface{}) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(manifest)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFromDirectorySimple(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]interface{}{
		"name":    "root-pkg",
		"version": "1.0.0",
		"esy": map[string]interface{}{
			"build": "echo hi",
		},
	})

	sb, err := FromDirectory(root)
	if err != nil {
		t.Fatalf("FromDirectory: %v", err)
	}
	if sb.Root.Name != "root-pkg" {
		t.Errorf("root name = %q, want root-pkg", sb.Root.Name)
	}
	if len(sb.Root.Dependencies) != 0 {
		t.Errorf("root should have no dependencies, got %d", len(sb.Root.Dependencies))
	}
	if sb.Root.ID == "" {
		t.Error("root ID is empty")
	}
}

func TestFromDirectoryMissingRootManifest(t *testing.T) {
	root := t.TempDir()
	if _, err := FromDirectory(root); err == nil {
		t.Fatal("expected an error for a sandbox root with no package.json")
	}
}

func TestFromDirectoryWithDependency(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]interface{}{
		"name":    "app",
		"version": "1.0.0",
		"dependencies": map[string]interface{}{
			"libfoo": "1.2.3",
		},
	})
	writePackage(t, filepath.Join(root, "node_modules", "libfoo"), map[string]interface{}{
		"name":     "libfoo",
		"version":  "1.2.3",
		"_resolved": "https://example.invalid/libfoo-1.2.3.tgz",
		"esy": map[string]interface{}{
			"exportedEnv": map[string]interface{}{
				"libfoo__lib": map[string]interface{}{"val": "$cur__lib"},
			},
		},
	})

	sb, err := FromDirectory(root)
	if err != nil {
		t.Fatalf("FromDirectory: %v", err)
	}
	if len(sb.Root.Dependencies) != 1 {
		t.Fatalf("want 1 dependency, got %d", len(sb.Root.Dependencies))
	}
	dep := sb.Root.Dependencies[0]
	if dep.Name != "libfoo" {
		t.Errorf("dependency name = %q, want libfoo", dep.Name)
	}
	if !dep.ShouldBePersisted {
		t.Error("libfoo has a _resolved field, should be persisted")
	}
	if sb.Root.ShouldBePersisted {
		t.Error("the root must never be marked should_be_persisted")
	}
}

func TestFromDirectoryCycleIsRecordedNotFatal(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]interface{}{
		"name": "a",
		"dependencies": map[string]interface{}{
			"b": "1.0.0",
		},
	})
	writePackage(t, filepath.Join(root, "node_modules", "b"), map[string]interface{}{
		"name": "b",
		"dependencies": map[string]interface{}{
			"a": "1.0.0",
		},
	})
	// A second copy of "a" is resolvable from b under node_modules. The
	// root's name is already on the trace when b is crawled, so b's
	// dependency on "a" is reported as a cycle before it is resolved and
	// this copy is never crawled.
	writePackage(t, filepath.Join(root, "node_modules", "a"), map[string]interface{}{
		"name": "a",
		"dependencies": map[string]interface{}{
			"b": "1.0.0",
		},
	})

	sb, err := FromDirectory(root)
	if err != nil {
		t.Fatalf("FromDirectory must not abort on a cycle: %v", err)
	}
	if sb.Root == nil {
		t.Fatal("expected a root spec despite the cycle")
	}
	// b is reachable and should carry a cycle diagnostic since its "a"
	// dependency loops back to the root's own name within the trace.
	if len(sb.Root.Dependencies) != 1 {
		t.Fatalf("want 1 dependency, got %d", len(sb.Root.Dependencies))
	}
	b := sb.Root.Dependencies[0]
	if len(b.Errors) == 0 {
		t.Error("expected b to carry a cycle diagnostic")
	}
}

func TestFromDirectoryUnresolvedDependency(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]interface{}{
		"name": "app",
		"dependencies": map[string]interface{}{
			"missing": "1.0.0",
		},
	})

	sb, err := FromDirectory(root)
	if err != nil {
		t.Fatalf("FromDirectory: %v", err)
	}
	if len(sb.Root.Dependencies) != 0 {
		t.Errorf("unresolved dependency must not appear in Dependencies, got %d", len(sb.Root.Dependencies))
	}
	if len(sb.Root.Errors) == 0 {
		t.Error("expected an unresolved-dependency diagnostic on the root")
	}
}

func TestFromDirectoryIDStableAcrossRuns(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]interface{}{
		"name":    "app",
		"version": "2.0.0",
	})

	sb1, err := FromDirectory(root)
	if err != nil {
		t.Fatal(err)
	}
	sb2, err := FromDirectory(root)
	if err != nil {
		t.Fatal(err)
	}
	if sb1.Root.ID != sb2.Root.ID {
		t.Errorf("id not stable across crawls: %s != %s", sb1.Root.ID, sb2.Root.ID)
	}
}

func TestFromDirectoryDedupsSharedDependency(t *testing.T) {
	root := t.TempDir()
	writePackage(t, root, map[string]interface{}{
		"name": "app",
		"dependencies": map[string]interface{}{
			"a": "1.0.0",
			"b": "1.0.0",
		},
	})
	writePackage(t, filepath.Join(root, "node_modules", "a"), map[string]interface{}{
		"name": "a",
		"dependencies": map[string]interface{}{
			"base": "1.0.0",
		},
	})
	writePackage(t, filepath.Join(root, "node_modules", "b"), map[string]interface{}{
		"name": "b",
		"dependencies": map[string]interface{}{
			"base": "1.0.0",
		},
	})
	writePackage(t, filepath.Join(root, "node_modules", "base"), map[string]interface{}{
		"name": "base",
	})

	sb, err := FromDirectory(root)
	if err != nil {
		t.Fatal(err)
	}
	var aBase, bBase *BuildSpec
	for _, d := range sb.Root.Dependencies {
		if d.Name == "a" {
			aBase = d.Dependencies[0]
		}
		if d.Name == "b" {
			bBase = d.Dependencies[0]
		}
	}
	if aBase == nil || bBase == nil {
		t.Fatal("expected both a and b to carry a base dependency")
	}
	if aBase != bBase {
		t.Error("base reached through a and through b should be the same *BuildSpec instance (crawled once, §4.2 step 4)")
	}
}
