//go:build !windows

package driver

import (
	"os"

	"golang.org/x/sys/unix"
)

// platformLock flocks buildPath+".lock" (a sibling file inside the already
// store-initialized _build directory), blocking until any other holder
// releases it.
func platformLock(buildPath string) (func() error, error) {
	f, err := os.OpenFile(buildPath+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() error {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return f.Close()
	}, nil
}
