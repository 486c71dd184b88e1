//go:build !darwin

package sandboxprofile

// Supported is false on platforms without a sandbox-exec equivalent wired
// up (§4.5 step 6: "On platforms supporting it").
const Supported = false

// Write is a no-op outside macOS.
func Write(profilePath, buildPath, installPath string) error {
	return nil
}

// Wrap returns command unchanged outside macOS.
func Wrap(command, buildPath string) string {
	return command
}
