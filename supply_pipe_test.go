package dropflow

import (
	"context"
	"testing"
)

func TestSupplyPipePredicateDoesNotConsumeIndex(t *testing.T) {
	sp := NewSupplyPipe[int]("sp", WithPredicate(func(v int) bool { return v%2 == 0 }))
	ctx := context.Background()

	for _, v := range []int{1, 2, 3, 4} {
		if _, err := sp.Push(ctx, v); err != nil {
			t.Fatalf("push %d: %v", v, err)
		}
	}

	if got := sp.GetAcceptedDrops(); got != 2 {
		t.Fatalf("expected 2 accepted drops, got %d", got)
	}
	if got := sp.GetRejectedDrops(); got != 2 {
		t.Fatalf("expected 2 rejected drops, got %d", got)
	}

	// Both accepted drops (2 and 4) must carry contiguous indices 0 and 1:
	// the rejected pushes for 1 and 3 must not have consumed an index.
	_, _, idx0, closed, err := sp.pop(ctx)
	if err != nil || closed {
		t.Fatalf("pop 0: closed=%v err=%v", closed, err)
	}
	if idx0 != 0 {
		t.Fatalf("expected first accepted drop at index 0, got %d", idx0)
	}
	_, _, idx1, closed, err := sp.pop(ctx)
	if err != nil || closed {
		t.Fatalf("pop 1: closed=%v err=%v", closed, err)
	}
	if idx1 != 1 {
		t.Fatalf("expected second accepted drop at index 1, got %d", idx1)
	}
}

func TestSupplyPipeRejectReturnsFalseNotError(t *testing.T) {
	sp := NewSupplyPipe[int]("sp", WithPredicate(func(v int) bool { return false }))
	ctx := context.Background()

	ok, err := sp.Push(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected rejection, got accepted")
	}
}

func TestSupplyPipeCloseRejectsFurtherPushes(t *testing.T) {
	sp := NewSupplyPipe[int]("sp")
	ctx := context.Background()

	if _, err := sp.Push(ctx, 1); err != nil {
		t.Fatalf("push: %v", err)
	}
	sp.Close()
	sp.Close() // idempotent

	if _, err := sp.Push(ctx, 2); !IsKind(err, KindClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestSupplyPipeScopeIdentityStableAcrossPushes(t *testing.T) {
	sp := NewSupplyPipe[int]("sp")
	ctx := context.Background()

	if _, err := sp.Push(ctx, 1); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, err := sp.Push(ctx, 2); err != nil {
		t.Fatalf("push: %v", err)
	}

	_, scope0, _, _, _ := sp.pop(ctx)
	_, scope1, _, _, _ := sp.pop(ctx)
	if scope0 != scope1 {
		t.Fatal("expected both drops to share the same index scope")
	}
	if scope0 != sp.Scope() {
		t.Fatal("expected drop scope to equal SupplyPipe.Scope()")
	}
}
