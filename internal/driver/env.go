package driver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	"github.com/kilnforge/kiln/internal/envscope"
)

// writeEnvFile writes _esy/env as a sequence of `export NAME="value";`
// lines (§4.5 step 4), in the same order AssembleTaskEnv produced them —
// this file is meant to be sourced by a human debugging a build by hand.
func writeEnvFile(buildPath string, env *envscope.Scope) error {
	var b strings.Builder
	for _, name := range env.Names() {
		e, _ := env.Get(name)
		fmt.Fprintf(&b, "export %s=%q;\n", name, e.Value)
	}
	return renameio.WriteFile(filepath.Join(buildPath, "_esy", "env"), []byte(b.String()), 0o644)
}
