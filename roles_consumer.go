package dropflow

import "context"

// consumerRole is a terminal sink: it has no output pipe, so closeOutputs
// is a no-op.
type consumerRole[T any] struct {
	in *Pipe[T]
	fn func(T) error
}

func (r *consumerRole[T]) work(ctx context.Context) (bool, error) {
	v, _, _, closed, err := r.in.pop(ctx)
	if err != nil {
		return true, err
	}
	if closed {
		return true, nil
	}
	if err := r.fn(v); err != nil {
		return true, WrapUserError(err)
	}
	return false, nil
}

func (r *consumerRole[T]) closeOutputs() {}
