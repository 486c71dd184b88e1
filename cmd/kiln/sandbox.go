package main

import (
	"fmt"
	"os"

	"golang.org/x/xerrors"

	"github.com/kilnforge/kiln/internal/graph"
	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
)

// resolveConfig builds a storepath.Config from the environment, overriding
// SandboxPath with the --sandbox flag when set, and makes sure the store's
// _build/_insttmp/_install subtrees exist.
func resolveConfig() (storepath.Config, error) {
	cfg, err := storepath.FromEnviron()
	if err != nil {
		return cfg, err
	}
	if storeFlags.sandboxPath != "" {
		cfg.SandboxPath = storeFlags.sandboxPath
	}
	if err := cfg.EnsureStoreDirs(); err != nil {
		return cfg, xerrors.Errorf("preparing store directories: %w", err)
	}
	return cfg, nil
}

// crawlSandbox crawls cfg.SandboxPath and prints every crawl-phase
// diagnostic accumulated on any reachable BuildSpec (§7 "Crawl errors") to
// stderr before returning the sandbox, since those are non-fatal by design
// and a build should proceed past them.
func crawlSandbox(cfg storepath.Config) (*manifest.Sandbox, error) {
	sandbox, err := manifest.FromDirectory(cfg.SandboxPath)
	if err != nil {
		return nil, xerrors.Errorf("crawling sandbox at %s: %w", cfg.SandboxPath, err)
	}
	specs := append(graph.CollectTransitive(sandbox.Root), graph.Node(sandbox.Root))
	for _, n := range specs {
		spec := n.(*manifest.BuildSpec)
		for _, msg := range spec.Errors {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", spec.Name, msg)
		}
	}
	return sandbox, nil
}
