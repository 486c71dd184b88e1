package manifest

import (
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/xerrors"
)

// Resolver resolves a dependency name to the directory containing its
// manifest, relative to baseDir. The module-resolution algorithm proper is
// explicitly out of scope for this package (§1) — it is an external
// collaborator the crawler drives through this interface. NestedResolver
// below is the standard nested-node_modules implementation used unless a
// caller supplies its own (e.g. a test double, or a resolver backed by a
// lockfile).
type Resolver interface {
	// Resolve returns the absolute path to the directory containing name's
	// manifest, as seen from a package located at baseDir.
	Resolve(baseDir, name string) (string, error)
}

// cacheKey is (baseDir, name); the crawler expects resolution results to be
// cached across the whole crawl (§4.2 step 3), since the same dependency
// name is frequently resolved from the same directory many times over in a
// deep graph.
type cacheKey struct {
	baseDir string
	name    string
}

// NestedResolver resolves dependencies the way nested package managers do:
// starting at baseDir, it looks for baseDir/node_modules/name, then walks up
// parent directories doing the same until it reaches Root (exclusive of
// going above it).
type NestedResolver struct {
	// Root bounds the upward walk; resolution never considers a
	// node_modules directory outside of Root. Typically the sandbox root.
	Root string

	mu    sync.Mutex
	cache map[cacheKey]string
}

// NewNestedResolver returns a NestedResolver rooted at root.
func NewNestedResolver(root string) *NestedResolver {
	return &NestedResolver{Root: root, cache: make(map[cacheKey]string)}
}

func (r *NestedResolver) Resolve(baseDir, name string) (string, error) {
	key := cacheKey{baseDir: baseDir, name: name}

	r.mu.Lock()
	if hit, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return hit, nil
	}
	r.mu.Unlock()

	dir := baseDir
	root := filepath.Clean(r.Root)
	for {
		candidate := filepath.Join(dir, "node_modules", name)
		if st, err := os.Stat(filepath.Join(candidate, "package.json")); err == nil && !st.IsDir() {
			r.mu.Lock()
			r.cache[key] = candidate
			r.mu.Unlock()
			return candidate, nil
		}
		if filepath.Clean(dir) == root {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", xerrors.Errorf("package %q not found under node_modules relative to %s (root %s)", name, baseDir, r.Root)
}
