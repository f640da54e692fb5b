package dropflow

import (
	"context"
	"sync/atomic"
)

// transformerRole maps each input drop to zero or more output drops and
// originates a brand new index scope for them, using its own pointer
// identity as that scope (the same pattern SupplyPipe uses). This is the
// only role besides Join allowed to change cardinality.
type transformerRole[I, O any] struct {
	in  *Pipe[I]
	out *Pipe[O]
	fn  func(I) ([]O, error)

	nextIndex int64
}

func (r *transformerRole[I, O]) work(ctx context.Context) (bool, error) {
	v, _, _, closed, err := r.in.pop(ctx)
	if err != nil {
		return true, err
	}
	if closed {
		return true, nil
	}
	outs, err := r.fn(v)
	if err != nil {
		return true, WrapUserError(err)
	}
	for _, o := range outs {
		idx := atomic.AddInt64(&r.nextIndex, 1) - 1
		if err := r.out.push(ctx, scopeID(r), idx, o); err != nil {
			return true, err
		}
	}
	return false, nil
}

func (r *transformerRole[I, O]) closeOutputs() {
	r.out.setEndOfInput()
}
