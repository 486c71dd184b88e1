package driver

import (
	"sync"

	kiln "github.com/kilnforge/kiln"
)

// acquireBuildLock serializes concurrent kiln invocations racing to build
// the same id (§5: "guards against two kiln invocations racing the same
// id"). It blocks until the lock is free and returns a func that releases
// it; platformLock is a no-op on platforms with no advisory-locking
// primitive to use.
//
// The release is also registered with kiln.RegisterAtExit, so any lock
// still held when cmd/kiln calls RunAtExit is released then; the sync.Once
// makes the second of the two releases a no-op. A panic that ends the
// process runs neither release.
func acquireBuildLock(buildPath string) (func() error, error) {
	unlock, err := platformLock(buildPath)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	var releaseErr error
	release := func() error {
		once.Do(func() { releaseErr = unlock() })
		return releaseErr
	}
	kiln.RegisterAtExit(release)
	return release, nil
}
