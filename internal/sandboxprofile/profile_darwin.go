//go:build darwin

// Package sandboxprofile writes the per-build sandbox-exec profile (§4.5
// step 6) on platforms that support it, and wraps a command's argv to run
// under it.
package sandboxprofile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Supported reports whether this platform can sandbox a build's command.
const Supported = true

// Write renders a sandbox-exec profile at profilePath allowing writes only
// to /dev/null, buildPath, installPath, and the platform temp directory.
func Write(profilePath, buildPath, installPath string) error {
	tmp := os.TempDir()
	profile := fmt.Sprintf(`(version 1)
(allow default)
(deny file-write*)
(allow file-write*
  (literal "/dev/null")
  (subpath %q)
  (subpath %q)
  (subpath %q))
`, buildPath, installPath, tmp)
	return os.WriteFile(profilePath, []byte(profile), 0o644)
}

// Wrap prepends the sandbox-exec invocation around command, given the
// profile already written at profilePath under buildPath's _esy directory.
func Wrap(command, buildPath string) string {
	profilePath := filepath.Join(buildPath, "_esy", "sandbox.sb")
	return fmt.Sprintf("sandbox-exec -f %q -- %s", profilePath, command)
}
