package eject

import "runtime"

// eol is the host line terminator (§6: "separated by the host EOL").
var eol = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()
