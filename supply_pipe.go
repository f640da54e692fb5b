package dropflow

import (
	"context"
	"sync/atomic"
)

// SupplyPipe is a Pipe that also originates a fresh index scope: every
// drop accepted through Push is numbered with a monotonically increasing
// index starting at 0, using the SupplyPipe's own pointer as the scope's
// identity. No other Pipe constructor originates a scope; everything
// downstream either preserves the scope it reads from (Function, Action,
// Consumer, Fork) or opens a brand new one (Transform, Join).
type SupplyPipe[T any] struct {
	*Pipe[T]

	nextIndex    int64 // atomic
	accepted     uint64
	rejected     uint64
	usePredicate bool
	predicate    func(T) bool
}

// SupplyPipeOption configures a SupplyPipe at construction time.
type SupplyPipeOption[T any] func(*supplyPipeConfig[T])

type supplyPipeConfig[T any] struct {
	pipeOpts  []PipeOption
	predicate func(T) bool
}

// WithPredicate installs a filter: a pushed value failing pred is silently
// dropped and does NOT consume an index, so the scope's numbering stays
// contiguous across rejected drops.
func WithPredicate[T any](pred func(T) bool) SupplyPipeOption[T] {
	return func(c *supplyPipeConfig[T]) { c.predicate = pred }
}

// WithSupplyCapacity sets the underlying pipe's base capacity.
func WithSupplyCapacity[T any](n int) SupplyPipeOption[T] {
	return func(c *supplyPipeConfig[T]) { c.pipeOpts = append(c.pipeOpts, WithCapacity(n)) }
}

// NewSupplyPipe creates a SupplyPipe with the given name and options.
func NewSupplyPipe[T any](name string, opts ...SupplyPipeOption[T]) *SupplyPipe[T] {
	cfg := supplyPipeConfig[T]{}
	for _, o := range opts {
		o(&cfg)
	}
	sp := &SupplyPipe[T]{
		Pipe:         NewPipe[T](name, cfg.pipeOpts...),
		usePredicate: cfg.predicate != nil,
		predicate:    cfg.predicate,
	}
	return sp
}

// Push offers value to the pipe. If a predicate is configured and value
// fails it, Push returns (false, nil) immediately without consuming an
// index or blocking. Otherwise Push assigns the next index in this
// SupplyPipe's scope and blocks exactly like Pipe.push until there is room,
// ctx is cancelled, or the pipe has already reached end-of-input.
func (sp *SupplyPipe[T]) Push(ctx context.Context, value T) (accepted bool, err error) {
	if sp.usePredicate && !sp.predicate(value) {
		atomic.AddUint64(&sp.rejected, 1)
		return false, nil
	}
	idx := atomic.AddInt64(&sp.nextIndex, 1) - 1
	if err := sp.Pipe.push(ctx, scopeID(sp), idx, value); err != nil {
		return false, err
	}
	atomic.AddUint64(&sp.accepted, 1)
	return true, nil
}

// Close signals end-of-input on the underlying pipe. Idempotent.
func (sp *SupplyPipe[T]) Close() {
	sp.Pipe.setEndOfInput()
}

// GetAcceptedDrops returns the number of drops that passed the predicate
// (or all pushes, if no predicate is configured) and were enqueued.
func (sp *SupplyPipe[T]) GetAcceptedDrops() uint64 {
	return atomic.LoadUint64(&sp.accepted)
}

// GetRejectedDrops returns the number of drops rejected by the predicate.
func (sp *SupplyPipe[T]) GetRejectedDrops() uint64 {
	return atomic.LoadUint64(&sp.rejected)
}

// Scope returns this SupplyPipe's scope identity, mostly useful for tests
// asserting that two pipes downstream of the same supplier observe the
// same scope.
func (sp *SupplyPipe[T]) Scope() scopeID {
	return scopeID(sp)
}
