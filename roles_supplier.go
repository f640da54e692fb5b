package dropflow

import "context"

// supplierRole drives a SupplyPipe[T] from a user-supplied generator
// callback. Each call to fn either produces one value (ok=true) or signals
// exhaustion (ok=false).
type supplierRole[T any] struct {
	fn  func(context.Context) (T, bool, error)
	out *SupplyPipe[T]
}

func (r *supplierRole[T]) work(ctx context.Context) (bool, error) {
	v, ok, err := r.fn(ctx)
	if err != nil {
		return true, WrapUserError(err)
	}
	if !ok {
		return true, nil
	}
	if _, err := r.out.Push(ctx, v); err != nil {
		return true, err
	}
	return false, nil
}

func (r *supplierRole[T]) closeOutputs() {
	r.out.Close()
}
