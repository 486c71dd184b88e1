package driver

import (
	"path/filepath"

	"github.com/kilnforge/kiln/internal/sandboxprofile"
)

func writeSandboxProfile(buildPath, buildScratch, installPath string) error {
	if !sandboxprofile.Supported {
		return nil
	}
	profilePath := filepath.Join(buildPath, "_esy", "sandbox.sb")
	return sandboxprofile.Write(profilePath, buildScratch, installPath)
}

func wrapSandboxed(command, buildPath string) string {
	if !sandboxprofile.Supported {
		return command
	}
	return sandboxprofile.Wrap(command, buildPath)
}
