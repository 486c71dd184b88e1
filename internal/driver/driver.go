// Package driver implements the build driver (§4.5): it schedules a Task
// graph over a worker pool bounded to the host's CPU count, memoizing each
// task so duplicated references to the same build join a single execution,
// and reports per-task status as the build progresses.
package driver

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/xerrors"

	"github.com/kilnforge/kiln/internal/storepath"
	"github.com/kilnforge/kiln/internal/task"
)

// Phase is one of a task's observable states (§4.5 state machine).
type Phase string

const (
	PhaseInProgress Phase = "in-progress"
	PhaseSuccess    Phase = "success"
	PhaseFailure    Phase = "failure"
)

// Status is what on_status receives for every task transition (§4.5).
type Status struct {
	Task   *task.Task
	Phase  Phase
	Cached bool
	Forced bool
	TimeMS int64
	Err    error
}

// OnStatus is invoked, possibly concurrently from multiple worker
// goroutines, for every task status transition.
type OnStatus func(Status)

// result is what a task's completed execution leaves behind for its
// dependents to inspect (§4.5 "force propagation").
type result struct {
	cached bool
	forced bool
	err    error
}

// future is the promise-typed memoization cell (§5): "its memoization cell
// stores the in-flight computation, not only the resolved value, so a
// second reference to the same task awaits the same computation rather
// than starting a second one."
type future struct {
	done chan struct{}
	res  result
}

// Driver owns the concurrency-bounded worker pool and the per-task
// memoization map for a single build invocation; neither is exposed beyond
// that invocation's lifetime (§5 "Shared mutable state").
type Driver struct {
	cfg storepath.Config
	sem *semaphore.Weighted

	// LogTail, when nonzero, switches every build to release mode (§4
	// "-release flag"): _esy/log is not written verbosely as the command
	// runs, only the last LogTail lines are persisted, and only if the
	// command fails.
	LogTail int

	mu      sync.Mutex
	futures map[string]*future
}

// New returns a Driver whose worker pool is bounded to runtime.NumCPU().
func New(cfg storepath.Config) *Driver {
	return &Driver{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(runtime.NumCPU())),
		futures: make(map[string]*future),
	}
}

// Build is the public contract: build(root_task, sandbox, config,
// on_status) → (). sandbox's config is threaded in via New; this method
// just needs the root task and a status sink.
func (d *Driver) Build(ctx context.Context, root *task.Task, onStatus OnStatus) error {
	eg, ctx := errgroup.WithContext(ctx)
	f := d.ensure(ctx, eg, root, true, onStatus)
	if err := eg.Wait(); err != nil {
		return err
	}
	return f.res.err
}

// ensure returns the future for t, launching its execution goroutine the
// first time t is referenced; subsequent callers (a shared dependency
// reached through multiple parents) observe the same future.
func (d *Driver) ensure(ctx context.Context, eg *errgroup.Group, t *task.Task, isRoot bool, onStatus OnStatus) *future {
	d.mu.Lock()
	if f, ok := d.futures[t.ID]; ok {
		d.mu.Unlock()
		return f
	}
	f := &future{done: make(chan struct{})}
	d.futures[t.ID] = f
	d.mu.Unlock()

	eg.Go(func() error {
		defer close(f.done)

		depFutures := make([]*future, len(t.Dependencies))
		for i, dep := range t.Dependencies {
			depFutures[i] = d.ensure(ctx, eg, dep, false, onStatus)
		}

		forced := false
		for _, df := range depFutures {
			select {
			case <-df.done:
			case <-ctx.Done():
				f.res = result{err: ctx.Err()}
				return ctx.Err()
			}
			if df.res.err != nil {
				err := xerrors.Errorf("dependencies are not built: %w", df.res.err)
				f.res = result{err: err}
				onStatus(Status{Task: t, Phase: PhaseFailure, Err: err})
				return err
			}
			if df.res.forced || !df.res.cached {
				forced = true
			}
		}

		if err := d.sem.Acquire(ctx, 1); err != nil {
			f.res = result{err: err}
			return err
		}
		defer d.sem.Release(1)

		onStatus(Status{Task: t, Phase: PhaseInProgress})
		start := time.Now()
		cached, err := d.runOne(ctx, t, forced)
		if err != nil {
			f.res = result{err: err}
			onStatus(Status{Task: t, Phase: PhaseFailure, Err: err})
			return err
		}
		f.res = result{cached: cached, forced: forced && !cached}
		onStatus(Status{
			Task:   t,
			Phase:  PhaseSuccess,
			Cached: cached,
			Forced: f.res.forced,
			TimeMS: time.Since(start).Milliseconds(),
		})

		if isRoot {
			if err := d.createConvenienceSymlinks(t); err != nil {
				f.res = result{err: err}
				return err
			}
		}
		return nil
	})
	return f
}
