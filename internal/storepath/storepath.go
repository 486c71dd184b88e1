// Package storepath resolves the directories a build reads from and writes
// to (§3 BuildConfig). It owns exactly the environment variables the
// teacher's env package used to own for locating the distri checkout:
// KILN_STORE, KILN_LOCAL_STORE and KILN_SANDBOX pick the store, the
// non-persisted store and the sandbox root; when unset, the two stores
// default to directories under $HOME and the sandbox to the working
// directory.
package storepath

import (
	"os"
	"path/filepath"
)

// Spec is the minimal view of a build a path function needs: its stable id
// and whether its command mutates the source tree in place.
// internal/manifest's BuildSpec satisfies this without storepath needing to
// import internal/manifest.
type Spec interface {
	BuildID() string
	Mutates() bool
}

// Config is a BuildConfig (§3): the three roots a build's paths are
// resolved against, plus the five pure path functions.
type Config struct {
	// StorePath holds persisted builds: packages installed from an
	// immutable source (should_be_persisted = true).
	StorePath string
	// LocalStorePath holds non-persisted builds: local, mutable packages
	// rebuilt on every change-detected invocation.
	LocalStorePath string
	// SandboxPath is the root of the sandbox being built; Source resolves
	// every package's source path against it.
	SandboxPath string
}

const (
	storeEnv      = "KILN_STORE"
	localStoreEnv = "KILN_LOCAL_STORE"
	sandboxEnv    = "KILN_SANDBOX"
)

// FromEnviron builds a Config from KILN_STORE / KILN_LOCAL_STORE /
// KILN_SANDBOX, falling back to $HOME/.kiln/{store,local-store} and the
// current working directory respectively.
func FromEnviron() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	cfg := Config{
		StorePath:      envOrDefault(storeEnv, filepath.Join(home, ".kiln", "store")),
		LocalStorePath: envOrDefault(localStoreEnv, filepath.Join(home, ".kiln", "local-store")),
		SandboxPath:    envOrDefault(sandboxEnv, cwd),
	}
	return cfg, nil
}

func envOrDefault(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// storeFor picks StorePath or LocalStorePath per §3's persistence rule:
// "Persistence selects between store_path and local_store_path."
func (c Config) storeFor(persisted bool) string {
	if persisted {
		return c.StorePath
	}
	return c.LocalStorePath
}

// Source is the root of the package's source tree, relative to the
// sandbox. It never depends on where builds/installs land.
func (c Config) Source(relSourcePath string) string {
	return filepath.Join(c.SandboxPath, relSourcePath)
}

// Root is where the build's command actually runs: the source tree itself,
// unless the build mutates it in place, in which case the command runs
// against a private copy under Build.
func (c Config) Root(s Spec, relSourcePath string, persisted bool) string {
	if s.Mutates() {
		return c.Build(s, persisted)
	}
	return c.Source(relSourcePath)
}

// Build is the build's scratch directory, <store>/_build/<id>.
func (c Config) Build(s Spec, persisted bool) string {
	return filepath.Join(c.storeFor(persisted), "_build", s.BuildID())
}

// Install is the build's pre-rename staging directory,
// <store>/_insttmp/<id>. Artifacts are written here, path-rewritten, then
// atomically renamed to FinalInstall.
func (c Config) Install(s Spec, persisted bool) string {
	return filepath.Join(c.storeFor(persisted), "_insttmp", s.BuildID())
}

// FinalInstall is the build's permanent home, <store>/_install/<id>.
// Existence of this path is, by itself, proof the build is current (§3
// invariant iii) — callers never need to re-verify contents.
func (c Config) FinalInstall(s Spec, persisted bool) string {
	return filepath.Join(c.storeFor(persisted), "_install", s.BuildID())
}

// EnsureStoreDirs creates the _build/_insttmp/_install subtrees under both
// StorePath and LocalStorePath, so a fresh KILN_STORE/KILN_LOCAL_STORE
// needs no separate init step before the first build.
func (c Config) EnsureStoreDirs() error {
	for _, store := range []string{c.StorePath, c.LocalStorePath} {
		for _, sub := range []string{"_build", "_insttmp", "_install"} {
			if err := os.MkdirAll(filepath.Join(store, sub), 0o755); err != nil {
				return err
			}
		}
	}
	return nil
}
