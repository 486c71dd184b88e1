package kiln

import (
	"sync"
	"sync/atomic"
)

// atExit collects cleanup callbacks registered by RegisterAtExit, e.g. to
// release a build directory's lock. They run only when RunAtExit is called
// (cmd/kiln does so after its root command returns); a process that exits
// through os.Exit, log.Fatal or a panic runs none of them.
var atExit struct {
	sync.Mutex
	fns    []func() error
	closed uint32
}

// RegisterAtExit queues fn to run when RunAtExit is called. It must not be
// called from within an already-running atExit function.
func RegisterAtExit(fn func() error) {
	if atomic.LoadUint32(&atExit.closed) != 0 {
		panic("BUG: RegisterAtExit must not be called from an atExit func")
	}
	atExit.Lock()
	defer atExit.Unlock()
	atExit.fns = append(atExit.fns, fn)
}

// RunAtExit runs every registered cleanup callback in registration order,
// stopping at the first error. Subsequent calls to RegisterAtExit panic.
func RunAtExit() error {
	atomic.StoreUint32(&atExit.closed, 1)
	for _, fn := range atExit.fns {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
