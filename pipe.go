package dropflow

import (
	"context"
	"sync"
	"time"
)

// Pipe is a bounded, order-preserving queue of drops of type T. It is the
// runtime's only mutable resource shared between workers: all state is
// guarded by a single mutex per pipe, with two condition variables
// (notFull, notEmpty).
//
// A Pipe does not originate index scopes on its own; see SupplyPipe.
type Pipe[T any] struct {
	tags tagSet

	owner        *Pipeline
	name         string
	baseCapacity int

	mu       sync.Mutex
	notFull  sync.Cond
	notEmpty sync.Cond

	inOrder      []envelope[T]
	outOfOrder   map[scopeID]map[int64]envelope[T]
	outOfOrderN  int
	nextExpected map[scopeID]int64

	scopeLocked bool
	lockedScope scopeID

	endOfInput bool

	inPush      int64 // guarded by mu, read via GetInPushDrops
	dropsPushed uint64

	loadAreaSum float64 // area-under-curve of (inOrder+outOfOrder)/(2*BC)
	loadElapsed time.Duration
	lastSample  time.Time
	sampleInit  bool
}

// PipeOption configures a Pipe or SupplyPipe at construction time.
type PipeOption func(*pipeConfig)

type pipeConfig struct {
	capacity int
}

// WithCapacity sets the pipe's base capacity (both the in-order queue and
// the out-of-order cache share this bound). Defaults to 16.
func WithCapacity(n int) PipeOption {
	return func(c *pipeConfig) { c.capacity = n }
}

func newPipeConfig(opts []PipeOption) pipeConfig {
	c := pipeConfig{capacity: 16}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// NewPipe creates a Pipe with the given name and options. baseCapacity must
// be >= 1; NewPipe panics otherwise (a construction-time programmer error,
// not a runtime Configuration error since it precedes any Pipeline.Build).
func NewPipe[T any](name string, opts ...PipeOption) *Pipe[T] {
	cfg := newPipeConfig(opts)
	if cfg.capacity < 1 {
		panic("dropflow: pipe base capacity must be >= 1")
	}
	p := &Pipe[T]{
		name:         name,
		baseCapacity: cfg.capacity,
		outOfOrder:   make(map[scopeID]map[int64]envelope[T]),
		nextExpected: make(map[scopeID]int64),
	}
	p.notFull.L = &p.mu
	p.notEmpty.L = &p.mu
	return p
}

// Name returns the pipe's configured name.
func (p *Pipe[T]) Name() string { return p.name }

// push places value into the pipe under the given scope/index, blocking
// while the pipe is full, until ctx is cancelled, or until end-of-input has
// already been signalled. A drop enters the in-order queue only when its
// index equals nextExpectedIndex for its scope; otherwise it waits in the
// out-of-order cache.
func (p *Pipe[T]) push(ctx context.Context, scope scopeID, index int64, value T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.endOfInput {
		return ErrClosed
	}
	if err := p.checkScopeLocked(scope); err != nil {
		return err
	}

	p.inPush++
	defer func() { p.inPush-- }()

	for {
		if p.endOfInput {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		expected := p.nextExpected[scope]
		if index == expected {
			if len(p.inOrder) < p.baseCapacity {
				break
			}
		} else if p.outOfOrderN < p.baseCapacity {
			break
		}

		if err := waitCtx(ctx, &p.mu, &p.notFull); err != nil {
			return err
		}
	}

	p.sampleLoad()

	expected := p.nextExpected[scope]
	if index == expected {
		p.enqueueInOrder(scope, index, value)
	} else {
		p.cacheOutOfOrder(scope, index, value)
	}
	p.dropsPushed++
	p.notEmpty.Broadcast()
	return nil
}

func (p *Pipe[T]) checkScopeLocked(scope scopeID) error {
	if !p.scopeLocked {
		p.scopeLocked = true
		p.lockedScope = scope
		return nil
	}
	if p.lockedScope != scope {
		return ErrScopeMismatch
	}
	return nil
}

func (p *Pipe[T]) enqueueInOrder(scope scopeID, index int64, value T) {
	p.inOrder = append(p.inOrder, envelope[T]{value: value, scope: scope, index: index})
	p.nextExpected[scope] = index + 1
	p.drainOutOfOrder(scope)
}

func (p *Pipe[T]) drainOutOfOrder(scope scopeID) {
	cache := p.outOfOrder[scope]
	for len(p.inOrder) < p.baseCapacity && len(cache) > 0 {
		next := p.nextExpected[scope]
		e, ok := cache[next]
		if !ok {
			break
		}
		delete(cache, next)
		p.outOfOrderN--
		p.inOrder = append(p.inOrder, e)
		p.nextExpected[scope] = next + 1
		p.notFull.Broadcast()
	}
}

func (p *Pipe[T]) cacheOutOfOrder(scope scopeID, index int64, value T) {
	m, ok := p.outOfOrder[scope]
	if !ok {
		m = make(map[int64]envelope[T])
		p.outOfOrder[scope] = m
	}
	m[index] = envelope[T]{value: value, scope: scope, index: index}
	p.outOfOrderN++
}

// pop removes and returns the next in-order drop, blocking until one is
// available, until ctx is cancelled, or until end-of-input is set and the
// pipe is empty (in which case closed is true and err is nil). The freed
// in-order slot is refilled from the out-of-order cache when the cached drops
// continue the expected index sequence.
func (p *Pipe[T]) pop(ctx context.Context) (value T, scope scopeID, index int64, closed bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if len(p.inOrder) > 0 {
			e := p.inOrder[0]
			p.inOrder = p.inOrder[1:]
			p.sampleLoad()
			if p.scopeLocked {
				p.drainOutOfOrder(p.lockedScope)
			}
			p.notFull.Broadcast()
			return e.value, e.scope, e.index, false, nil
		}
		if p.endOfInput {
			var zero T
			return zero, nil, 0, true, nil
		}
		if werr := ctx.Err(); werr != nil {
			var zero T
			return zero, nil, 0, false, werr
		}
		if werr := waitCtx(ctx, &p.mu, &p.notEmpty); werr != nil {
			var zero T
			return zero, nil, 0, false, werr
		}
	}
}

// setEndOfInput is idempotent: it marks the pipe closed to further pushes
// and wakes every blocked producer/consumer so they can re-check state.
// Pending correctly-ordered drops already queued are still drained by pop.
func (p *Pipe[T]) setEndOfInput() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.endOfInput {
		return
	}
	p.endOfInput = true
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
}

// IsEndOfInput reports whether end-of-input has been signalled.
func (p *Pipe[T]) IsEndOfInput() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endOfInput
}

// pipeName implements pipeHandle.
func (p *Pipe[T]) pipeName() string { return p.name }

// pipeID implements pipeHandle: the pipe's own pointer serves as a stable
// identity for graph bookkeeping, the same trick envelope scopes use.
func (p *Pipe[T]) pipeID() any { return p }

// pipeEndOfInput implements pipeHandle.
func (p *Pipe[T]) pipeEndOfInput() bool { return p.IsEndOfInput() }

// pipeCapacity implements pipeHandle.
func (p *Pipe[T]) pipeCapacity() int { return p.baseCapacity }

func (p *Pipe[T]) sampleLoad() {
	now := time.Now()
	if p.sampleInit {
		dt := now.Sub(p.lastSample)
		p.loadAreaSum += p.currentLoadLocked() * dt.Seconds()
		p.loadElapsed += dt
	}
	p.lastSample = now
	p.sampleInit = true
}

func (p *Pipe[T]) currentLoadLocked() float64 {
	if p.baseCapacity == 0 {
		return 0
	}
	return float64(len(p.inOrder)+p.outOfOrderN) / float64(2*p.baseCapacity)
}

// GetBaseCapacity returns the configured capacity BC of this pipe.
func (p *Pipe[T]) GetBaseCapacity() int { return p.baseCapacity }

// GetInOrderDrops returns the current length of the in-order queue.
func (p *Pipe[T]) GetInOrderDrops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inOrder)
}

// GetOutOfOrderDrops returns the current size of the out-of-order cache.
func (p *Pipe[T]) GetOutOfOrderDrops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outOfOrderN
}

// GetInPushDrops returns the number of pushers currently admitted but not
// yet enqueued ("in-push").
func (p *Pipe[T]) GetInPushDrops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.inPush)
}

// GetDropsPushed returns the total number of drops successfully enqueued
// since creation. Monotonically increasing.
func (p *Pipe[T]) GetDropsPushed() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropsPushed
}

// GetCurrentLoad returns (inOrder+outOfOrder)/(2*BC), a value in [0,1]
// approximating how full the pipe is right now.
func (p *Pipe[T]) GetCurrentLoad() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLoadLocked()
}

// GetAverageLoad returns the time-weighted average of GetCurrentLoad since
// creation.
func (p *Pipe[T]) GetAverageLoad() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.sampleInit {
		return 0
	}
	now := time.Now()
	dt := now.Sub(p.lastSample)
	area := p.loadAreaSum + p.currentLoadLocked()*dt.Seconds()
	elapsed := p.loadElapsed + dt
	if elapsed <= 0 {
		return 0
	}
	return area / elapsed.Seconds()
}

// waitCtx waits on cond (which must use mu as its Locker) until Broadcast,
// returning early with ctx.Err() if ctx is done first. mu must be held by
// the caller both before and after the call, matching sync.Cond.Wait's
// contract. A small watcher goroutine bridges ctx cancellation into a
// Broadcast so blocked pushers/poppers wake promptly on cancellation.
func waitCtx(ctx context.Context, mu *sync.Mutex, cond *sync.Cond) error {
	if ctx.Done() == nil {
		cond.Wait()
		return nil
	}
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			mu.Lock()
			cond.Broadcast()
			mu.Unlock()
		case <-stop:
		}
	}()
	cond.Wait()
	return ctx.Err()
}
