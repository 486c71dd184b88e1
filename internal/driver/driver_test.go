package driver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kilnforge/kiln/internal/envscope"
	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
	"github.com/kilnforge/kiln/internal/task"
)

// countLines reports how many newline-terminated lines path contains,
// treating a missing file as zero lines.
func countLines(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatal(err)
	}
	n := 0
	for _, b := range data {
		if b == '\n' {
			n++
		}
	}
	return n
}

func testCfg(t *testing.T) storepath.Config {
	t.Helper()
	root := t.TempDir()
	cfg := storepath.Config{
		StorePath:      filepath.Join(root, "store"),
		LocalStorePath: filepath.Join(root, "local-store"),
		SandboxPath:    filepath.Join(root, "sandbox"),
	}
	if err := os.MkdirAll(cfg.SandboxPath, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := cfg.EnsureStoreDirs(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

// buildTask returns a Task for a spec named name that depends on deps and
// runs command (no command when it is empty); tests pick commands that
// leave a trace on disk so they can assert whether the build actually ran.
func buildTask(id, name string, persisted bool, command string, deps ...*task.Task) *task.Task {
	spec := &manifest.BuildSpec{
		ID:                id,
		Name:              name,
		Version:           "1.0.0",
		ExportedEnv:       manifest.NewExportedEnv(),
		SourcePath:        name,
		ShouldBePersisted: persisted,
	}
	for _, d := range deps {
		spec.Dependencies = append(spec.Dependencies, d.Spec)
	}
	var cmds []task.Command
	if command != "" {
		cmds = append(cmds, task.Command{Raw: command, Rendered: command})
	}
	return &task.Task{
		ID:           id,
		Spec:         spec,
		Env:          envscope.NewScope(),
		Command:      cmds,
		Dependencies: deps,
	}
}

func TestBuildRunsCommandAndReportsSuccess(t *testing.T) {
	cfg := testCfg(t)
	if err := os.MkdirAll(filepath.Join(cfg.SandboxPath, "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(cfg.SandboxPath, "ran")
	tk := buildTask("app-1.0.0-aaaa", "app", false, "touch "+marker)

	d := New(cfg)
	var statuses []Status
	var mu sync.Mutex
	err := d.Build(context.Background(), tk, func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, statErr := os.Stat(marker); statErr != nil {
		t.Errorf("command did not run: %v", statErr)
	}
	var sawSuccess bool
	for _, s := range statuses {
		if s.Phase == PhaseSuccess {
			sawSuccess = true
		}
	}
	if !sawSuccess {
		t.Error("expected a success status")
	}
}

func TestBuildPersistedShortCircuits(t *testing.T) {
	cfg := testCfg(t)
	if err := os.MkdirAll(filepath.Join(cfg.SandboxPath, "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	tk := buildTask("app-1.0.0-bbbb", "app", true, "true")

	if err := os.MkdirAll(cfg.FinalInstall(tk.Spec, true), 0o755); err != nil {
		t.Fatal(err)
	}

	d := New(cfg)
	var cached bool
	err := d.Build(context.Background(), tk, func(s Status) {
		if s.Phase == PhaseSuccess {
			cached = s.Cached
		}
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !cached {
		t.Error("a persisted build whose final_install already exists should short-circuit to cached success")
	}
}

func TestBuildSharedDependencyRunsOnce(t *testing.T) {
	cfg := testCfg(t)
	for _, name := range []string{"app", "a", "b", "base"} {
		if err := os.MkdirAll(filepath.Join(cfg.SandboxPath, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	counter := filepath.Join(t.TempDir(), "count")
	base := buildTask("base-1.0.0-aaaa", "base", false, "echo x >> "+counter)
	a := buildTask("a-1.0.0-bbbb", "a", false, "true", base)
	b := buildTask("b-1.0.0-cccc", "b", false, "true", base)
	app := buildTask("app-1.0.0-dddd", "app", false, "true", a, b)

	d := New(cfg)
	if err := d.Build(context.Background(), app, func(Status) {}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := os.ReadFile(counter)
	if err != nil {
		t.Fatalf("base never ran: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 1 {
		t.Errorf("base ran %d times, want exactly once (shared dependency must join a single execution)", lines)
	}
}

func TestBuildReleaseModeTailsLogOnFailure(t *testing.T) {
	cfg := testCfg(t)
	if err := os.MkdirAll(filepath.Join(cfg.SandboxPath, "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	tk := buildTask("app-1.0.0-eeee", "app", false, "echo one; echo two; echo three; false")

	d := New(cfg)
	d.LogTail = 1
	err := d.Build(context.Background(), tk, func(Status) {})
	if err == nil {
		t.Fatal("expected an error from the failing command")
	}

	data, readErr := os.ReadFile(filepath.Join(cfg.Build(tk.Spec, false), "_esy", "log"))
	if readErr != nil {
		t.Fatalf("reading tailed log: %v", readErr)
	}
	if string(data) != "three\n" {
		t.Errorf("log = %q, want only the last line (\"three\\n\")", string(data))
	}
}

// TestBuildChangeDetectionRebuildsOnlyChangedRoot is §8 scenario 3:
// touching a source file in the root triggers rebuild of the root only;
// its (unchanged) library dependency stays cached.
func TestBuildChangeDetectionRebuildsOnlyChangedRoot(t *testing.T) {
	cfg := testCfg(t)
	for _, name := range []string{"app", "lib"} {
		if err := os.MkdirAll(filepath.Join(cfg.SandboxPath, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	appSrc := filepath.Join(cfg.SandboxPath, "app", "src.txt")
	if err := os.WriteFile(appSrc, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	libCounter := filepath.Join(t.TempDir(), "lib-count")
	appCounter := filepath.Join(t.TempDir(), "app-count")
	lib := buildTask("lib-1.0.0-aaaa", "lib", false, "echo x >> "+libCounter)
	app := buildTask("app-1.0.0-bbbb", "app", false, "echo x >> "+appCounter, lib)

	d1 := New(cfg)
	if err := d1.Build(context.Background(), app, func(Status) {}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if lines := countLines(t, libCounter); lines != 1 {
		t.Fatalf("lib ran %d times after first build, want 1", lines)
	}
	if lines := countLines(t, appCounter); lines != 1 {
		t.Fatalf("app ran %d times after first build, want 1", lines)
	}

	// Give app's source an unambiguously different mtime (an hour in the
	// future) so the checksum walk sees a change regardless of the
	// filesystem's mtime resolution.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(appSrc, future, future); err != nil {
		t.Fatal(err)
	}

	d2 := New(cfg)
	if err := d2.Build(context.Background(), app, func(Status) {}); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if lines := countLines(t, libCounter); lines != 1 {
		t.Errorf("lib ran %d times after touching only app's source, want still 1 (library must stay cached)", lines)
	}
	if lines := countLines(t, appCounter); lines != 2 {
		t.Errorf("app ran %d times after touching its source, want 2 (root must rebuild)", lines)
	}
}

// TestBuildForcePropagatesThroughUnchangedDependents is §8 scenario 6:
// when a dependency actually rebuilds, on_status reports forced=true for
// every dependent that had to rebuild because of it, even when those
// dependents' own sources never changed.
func TestBuildForcePropagatesThroughUnchangedDependents(t *testing.T) {
	cfg := testCfg(t)
	for _, name := range []string{"app", "a", "base"} {
		if err := os.MkdirAll(filepath.Join(cfg.SandboxPath, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	baseSrc := filepath.Join(cfg.SandboxPath, "base", "src.txt")
	if err := os.WriteFile(baseSrc, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	baseCounter := filepath.Join(t.TempDir(), "base-count")
	aCounter := filepath.Join(t.TempDir(), "a-count")
	appCounter := filepath.Join(t.TempDir(), "app-count")
	base := buildTask("base-1.0.0-aaaa", "base", false, "echo x >> "+baseCounter)
	a := buildTask("a-1.0.0-bbbb", "a", false, "echo x >> "+aCounter, base)
	app := buildTask("app-1.0.0-cccc", "app", false, "echo x >> "+appCounter, a)

	d1 := New(cfg)
	if err := d1.Build(context.Background(), app, func(Status) {}); err != nil {
		t.Fatalf("first build: %v", err)
	}

	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(baseSrc, future, future); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	forced := map[string]bool{}
	d2 := New(cfg)
	err := d2.Build(context.Background(), app, func(s Status) {
		if s.Phase != PhaseSuccess {
			return
		}
		mu.Lock()
		forced[s.Task.ID] = s.Forced
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("second build: %v", err)
	}

	if lines := countLines(t, baseCounter); lines != 2 {
		t.Fatalf("base ran %d times, want 2 (its own source changed)", lines)
	}
	if lines := countLines(t, aCounter); lines != 2 {
		t.Fatalf("a ran %d times, want 2 (forced to rebuild by base)", lines)
	}
	if lines := countLines(t, appCounter); lines != 2 {
		t.Fatalf("app ran %d times, want 2 (forced transitively through a)", lines)
	}
	if !forced["a-1.0.0-bbbb"] {
		t.Error("a's second-build status should report forced=true, even though a's own source is unchanged")
	}
	if !forced["app-1.0.0-cccc"] {
		t.Error("app's second-build status should report forced=true, propagated transitively through a")
	}
}

func TestBuildFailurePropagatesToDependent(t *testing.T) {
	cfg := testCfg(t)
	for _, name := range []string{"app", "base"} {
		if err := os.MkdirAll(filepath.Join(cfg.SandboxPath, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	base := buildTask("base-1.0.0-aaaa", "base", false, "false")
	app := buildTask("app-1.0.0-bbbb", "app", false, "true", base)

	d := New(cfg)
	var sawFailure bool
	err := d.Build(context.Background(), app, func(s Status) {
		if s.Task.ID == "app-1.0.0-bbbb" && s.Phase == PhaseFailure {
			sawFailure = true
		}
	})
	if err == nil {
		t.Fatal("expected an error when a dependency fails")
	}
	if !sawFailure {
		t.Error("expected the dependent task to report failure too")
	}
}
