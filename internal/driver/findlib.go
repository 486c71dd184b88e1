package driver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/renameio"

	"github.com/kilnforge/kiln/internal/manifest"
	"github.com/kilnforge/kiln/internal/storepath"
	"github.com/kilnforge/kiln/internal/task"
)

// writeFindlibConf writes the currently-building variant of _esy/findlib.conf
// (§4.5 step 5): destdir points at the in-progress install path, so tools
// invoked mid-build see where their own outputs are landing.
func (d *Driver) writeFindlibConf(buildPath, installPath string, t *task.Task) error {
	return writeFindlibConfAt(d.cfg, buildPath, installPath, t)
}

// writeFindlibConfFinal re-writes findlib.conf with the finalized variant
// (§4.5 step 9), so anything reading it after the build completes sees the
// permanent final_install-rooted paths instead of the scratch ones.
func (d *Driver) writeFindlibConfFinal(buildPath, finalInstallPath string, t *task.Task) error {
	return writeFindlibConfAt(d.cfg, buildPath, finalInstallPath, t)
}

// findlibToolchainLines are the fixed ocaml* toolchain entries findlib.conf
// documents (§6): kiln has no OCaml toolchain of its own to probe, so these
// name the ".opt" variants findlib resolves against PATH, matching what a
// stock ocamlfind.conf carries.
var findlibToolchainLines = []string{
	`ocamlc = "ocamlc.opt"`,
	`ocamlopt = "ocamlopt.opt"`,
	`ocamlcp = "ocamlcp.opt"`,
	`ocamlmklib = "ocamlmklib.opt"`,
	`ocamldep = "ocamldep.opt"`,
	`ocamldoc = "ocamldoc.opt"`,
}

func writeFindlibConfAt(cfg storepath.Config, buildPath, destdir string, t *task.Task) error {
	var libPaths []string
	for _, dep := range transitiveDepSpecs(t) {
		depInstall := cfg.FinalInstall(dep, dep.ShouldBePersisted)
		libPaths = append(libPaths, filepath.Join(depInstall, "lib"))
	}
	destdirLib := filepath.Join(destdir, "lib")
	libPaths = append(libPaths, destdirLib)

	lines := []string{
		fmt.Sprintf("path = %q", strings.Join(libPaths, ":")),
		fmt.Sprintf("destdir = %q", destdirLib),
		`ldconf = "ignore"`,
	}
	lines = append(lines, findlibToolchainLines...)

	conf := strings.Join(lines, "\n") + "\n"
	return renameio.WriteFile(filepath.Join(buildPath, "_esy", "findlib.conf"), []byte(conf), 0o644)
}

// transitiveDepSpecs walks t's dependency tree, deduplicated by id, the same
// notion of "deps' final-install lib paths" findlib.conf needs (§4.5 step
// 5) but over Tasks rather than BuildSpecs.
func transitiveDepSpecs(t *task.Task) []*manifest.BuildSpec {
	seen := map[string]bool{}
	var out []*manifest.BuildSpec
	var walk func(*task.Task)
	walk = func(n *task.Task) {
		for _, d := range n.Dependencies {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, d.Spec)
			walk(d)
		}
	}
	walk(t)
	return out
}
