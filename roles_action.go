package dropflow

import "context"

// actionRole runs a side-effecting callback against each input drop and
// forwards the drop unchanged, preserving its index scope. Used for effects
// that don't transform the value: logging a line, writing to an external
// system, incrementing a counter.
type actionRole[T any] struct {
	in  *Pipe[T]
	out *Pipe[T]
	fn  func(T) error
}

func (r *actionRole[T]) work(ctx context.Context) (bool, error) {
	v, scope, idx, closed, err := r.in.pop(ctx)
	if err != nil {
		return true, err
	}
	if closed {
		return true, nil
	}
	if err := r.fn(v); err != nil {
		return true, WrapUserError(err)
	}
	if err := r.out.push(ctx, scope, idx, v); err != nil {
		return true, err
	}
	return false, nil
}

func (r *actionRole[T]) closeOutputs() {
	r.out.setEndOfInput()
}
