package dropflow

import "context"

// functionRole maps each input drop to exactly one output drop, preserving
// the input's index scope: a Function never originates a new scope, it
// only ever changes T.
type functionRole[I, O any] struct {
	in  *Pipe[I]
	out *Pipe[O]
	fn  func(I) (O, error)
}

func (r *functionRole[I, O]) work(ctx context.Context) (bool, error) {
	v, scope, idx, closed, err := r.in.pop(ctx)
	if err != nil {
		return true, err
	}
	if closed {
		return true, nil
	}
	out, err := r.fn(v)
	if err != nil {
		return true, WrapUserError(err)
	}
	if err := r.out.push(ctx, scope, idx, out); err != nil {
		return true, err
	}
	return false, nil
}

func (r *functionRole[I, O]) closeOutputs() {
	r.out.setEndOfInput()
}
