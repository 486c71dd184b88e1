package driver

import (
	"os"
	"path/filepath"

	"github.com/kilnforge/kiln/internal/task"
)

// createConvenienceSymlinks creates _install and _build symlinks in the
// sandbox root pointing at the root task's finalized locations (§4.5 step
// 11), so a user building at the top level can find the result without
// knowing its content-derived id.
func (d *Driver) createConvenienceSymlinks(t *task.Task) error {
	spec := t.Spec
	persisted := spec.ShouldBePersisted

	targets := map[string]string{
		"_install": d.cfg.FinalInstall(spec, persisted),
		"_build":   d.cfg.Build(spec, persisted),
	}
	for link, target := range targets {
		linkPath := filepath.Join(d.cfg.SandboxPath, link)
		if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := os.Symlink(target, linkPath); err != nil {
			return err
		}
	}
	return nil
}
