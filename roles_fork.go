package dropflow

import "context"

// forkRole broadcasts each input drop to every output pipe unchanged,
// preserving the input's index scope on every branch. Branches are pushed
// sequentially; a slow branch applies backpressure to the fork as a whole,
// same as any other bounded pipe.
type forkRole[T any] struct {
	in   *Pipe[T]
	outs []*Pipe[T]
}

func (r *forkRole[T]) work(ctx context.Context) (bool, error) {
	v, scope, idx, closed, err := r.in.pop(ctx)
	if err != nil {
		return true, err
	}
	if closed {
		return true, nil
	}
	for _, out := range r.outs {
		if err := out.push(ctx, scope, idx, v); err != nil {
			return true, err
		}
	}
	return false, nil
}

func (r *forkRole[T]) closeOutputs() {
	for _, out := range r.outs {
		out.setEndOfInput()
	}
}

// isFork marks forkRole as a fork stage for graph validation (see
// forkRoleIntrospector in chart.go), without the validator needing to know T.
func (r *forkRole[T]) isFork() {}
