package dropflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// WorkerState is the worker's lifecycle stage: Ready, Running, and
// terminally either Done or Cancelled. A Worker moves through these exactly
// once; there is no way back. Running covers the close phase too — once
// in-flight units have drained and closeOutputs runs, the worker is still
// Running until it lands on its terminal state.
type WorkerState int

const (
	// WorkerReady is the state from construction until Run is called.
	WorkerReady WorkerState = iota
	// WorkerRunning is the state from Run onward: while work units are
	// being spawned and awaited, and through the close phase that follows.
	WorkerRunning
	// WorkerDone is the terminal state for a worker that ran every unit to
	// natural exhaustion without ever being cancelled.
	WorkerDone
	// WorkerCancelled is the terminal state for a worker that unwound
	// because of Interrupt, Stop, an external context cancellation, or a
	// unit's error (its own or another worker's, via the pipeline's
	// errgroup context).
	WorkerCancelled
)

func (s WorkerState) String() string {
	switch s {
	case WorkerReady:
		return "ready"
	case WorkerRunning:
		return "running"
	case WorkerDone:
		return "done"
	case WorkerCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// role is implemented by each of the seven worker shapes (roles_*.go). work
// performs one unit of execution — typically one pop, one callback
// invocation, and one push — and reports done=true once its upstream
// scope(s) are exhausted and no further units should be spawned. closeOutputs
// propagates end-of-input to every pipe this role writes to; it must be
// idempotent since a Worker may call it after both normal completion and
// cancellation.
type role interface {
	work(ctx context.Context) (done bool, err error)
	closeOutputs()
}

// Worker is the single runtime that drives every role. Concurrency is
// bounded by a semaphore; retries are delegated to a RetryPolicy; the first
// error from any concurrent unit wins and cancels the rest, with later
// errors kept as Suppressed diagnostics.
type Worker struct {
	tags tagSet

	name        string
	concurrency int
	role        role
	retry       *RetryPolicy
	util        *utilTracker

	cancelled uint64 // atomic: tasks that terminated abnormally after submission

	mu      sync.Mutex
	state   WorkerState
	runErr  error
	started bool

	cancel context.CancelCauseFunc
	done   chan struct{}
}

// WorkerOption configures a Worker at construction time.
type WorkerOption func(*workerConfig)

type workerConfig struct {
	concurrency int
	retry       *RetryPolicy
	name        string
}

// WithConcurrency sets how many work units may be in flight at once.
// Defaults to 1 (strictly sequential).
func WithConcurrency(n int) WorkerOption {
	return func(c *workerConfig) { c.concurrency = n }
}

// WithRetryPolicy installs a RetryPolicy for this worker's units. Defaults
// to NoRetry().
func WithRetryPolicy(p *RetryPolicy) WorkerOption {
	return func(c *workerConfig) { c.retry = p }
}

func newWorkerConfig(name string, opts []WorkerOption) workerConfig {
	c := workerConfig{concurrency: 1, retry: NoRetry(), name: name}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func newWorker(name string, r role, opts ...WorkerOption) *Worker {
	cfg := newWorkerConfig(name, opts)
	if cfg.concurrency < 1 {
		panic("dropflow: worker concurrency must be >= 1")
	}
	return &Worker{
		name:        cfg.name,
		concurrency: cfg.concurrency,
		role:        r,
		retry:       cfg.retry,
		util:        newUtilTracker(cfg.concurrency),
		state:       WorkerReady,
		done:        make(chan struct{}),
	}
}

// Name returns the worker's configured name.
func (w *Worker) Name() string { return w.name }

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetRetryPolicy replaces the worker's retry policy. Only legal before Run
// has been called; returns ErrAlreadyStarted otherwise.
func (w *Worker) SetRetryPolicy(p *RetryPolicy) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}
	w.retry = p
	return nil
}

// Run executes the worker to completion: it spawns work units up to the
// configured concurrency, retrying each per the worker's RetryPolicy, until
// the role reports done, an error occurs, or ctx is cancelled. Run may be
// called at most once per worker; subsequent calls return ErrReused.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return ErrReused
	}
	w.started = true
	w.state = WorkerRunning
	w.mu.Unlock()

	ictx, cancel := context.WithCancelCause(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel(nil)
	defer close(w.done)

	sem := semaphore.NewWeighted(int64(w.concurrency))
	var stopSpawning atomic.Bool
	var wg sync.WaitGroup

	var errMu sync.Mutex
	var firstErr *Error
	var suppressed []error
	recordErr := func(err error) {
		if err == nil {
			return
		}
		// A role often notices ictx.Done() and simply returns ctx.Err() as
		// its own error. Once ictx is already cancelled (by Interrupt,
		// Stop, or another unit's error) that's just an echo of the
		// cancellation already in progress, not a new failure; the
		// post-wg.Wait switch below resolves the worker's final error from
		// the cancellation cause instead.
		if (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && context.Cause(ictx) != nil {
			return
		}
		de, ok := err.(*Error)
		if !ok {
			de = &Error{Kind: KindUser, Message: "work unit failed", Cause: err}
		}
		errMu.Lock()
		defer errMu.Unlock()
		if firstErr == nil {
			firstErr = de
			stopSpawning.Store(true)
			cancel(de)
			return
		}
		suppressed = append(suppressed, err)
	}

spawnLoop:
	for {
		if stopSpawning.Load() {
			break spawnLoop
		}
		if err := sem.Acquire(ictx, 1); err != nil {
			break spawnLoop
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			w.util.markBusy()
			defer w.util.markIdle()

			var done bool
			runErr := w.retry.run(ictx, func(c context.Context) error {
				d, e := w.role.work(c)
				done = d
				if e != nil {
					return e
				}
				return nil
			})
			if done {
				stopSpawning.Store(true)
			}
			if runErr != nil {
				atomic.AddUint64(&w.cancelled, 1)
				recordErr(runErr)
			}
		}()
	}

	wg.Wait()

	// Still WorkerRunning through the close phase: Cancelled/Done is only
	// decided once every unit has returned and outputs are closed.
	w.role.closeOutputs()

	w.mu.Lock()
	cause := context.Cause(ictx)
	switch {
	case firstErr != nil:
		if len(suppressed) > 0 {
			firstErr = firstErr.WithSuppressed(suppressed...)
		}
		w.runErr = firstErr
	case IsKind(cause, KindSilentStop):
		// explicit Stop(): not surfaced as a failure
	case ctx.Err() != nil:
		w.runErr = ctx.Err()
	case cause != nil:
		// Cancel(err)/Interrupt(): the cancellation cause becomes the
		// worker's reported error (ErrInterrupted for a plain Interrupt).
		w.runErr = cause
	}
	if cause != nil {
		w.state = WorkerCancelled
	} else {
		w.state = WorkerDone
	}
	err := w.runErr
	w.mu.Unlock()

	return err
}

// Await blocks until the worker reaches its terminal state (Done or
// Cancelled), or ctx is cancelled, and returns the worker's final error, if
// any.
func (w *Worker) Await(ctx context.Context) error {
	select {
	case <-w.done:
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel cancels the worker's internal context with err as the cause,
// defaulting to ErrInterrupted when err is nil. Idempotent: calling it more
// than once, or after the worker has already finished, has no effect. The
// cause becomes the worker's (and, through errgroup, the pipeline's) final
// error once every in-flight unit unwinds.
func (w *Worker) Cancel(err error) {
	if err == nil {
		err = ErrInterrupted
	}
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel(err)
	}
}

// Interrupt is Cancel(ErrInterrupted).
func (w *Worker) Interrupt() {
	w.Cancel(ErrInterrupted)
}

// Stop cancels the worker's internal context with ErrSilentStop as the
// cause: in-flight units unwind but the worker's final error is left nil
// unless something else already failed. Idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.mu.Unlock()
	if cancel != nil {
		cancel(ErrSilentStop)
	}
}

// CurrentUtilization returns busy-units/concurrency right now, in [0,1].
func (w *Worker) CurrentUtilization() float64 { return w.util.current() }

// AverageUtilization returns the time-weighted average utilization since
// Run started.
func (w *Worker) AverageUtilization() float64 { return w.util.average() }

// Concurrency returns the configured maximum number of in-flight work
// units.
func (w *Worker) Concurrency() int { return w.concurrency }

// CancelledWork returns the number of submitted work units that terminated
// abnormally (returned a non-nil error after being spawned), whether or not
// that error ended up as the worker's own reported error.
func (w *Worker) CancelledWork() uint64 { return atomic.LoadUint64(&w.cancelled) }
