package dropflow

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPipePushPopOrder(t *testing.T) {
	p := NewPipe[int]("p", WithCapacity(4))
	ctx := context.Background()
	scope := "scope-a"

	if err := p.push(ctx, scope, 0, 10); err != nil {
		t.Fatalf("push 0: %v", err)
	}
	if err := p.push(ctx, scope, 1, 20); err != nil {
		t.Fatalf("push 1: %v", err)
	}

	v, _, idx, closed, err := p.pop(ctx)
	if err != nil || closed {
		t.Fatalf("pop 0: v=%v closed=%v err=%v", v, closed, err)
	}
	if v != 10 || idx != 0 {
		t.Fatalf("expected (10,0), got (%v,%v)", v, idx)
	}

	v, _, idx, closed, err = p.pop(ctx)
	if err != nil || closed {
		t.Fatalf("pop 1: v=%v closed=%v err=%v", v, closed, err)
	}
	if v != 20 || idx != 1 {
		t.Fatalf("expected (20,1), got (%v,%v)", v, idx)
	}
}

func TestPipeOutOfOrderDelivery(t *testing.T) {
	p := NewPipe[string]("p", WithCapacity(8))
	ctx := context.Background()
	scope := "scope-a"

	// Push index 2 before 0 and 1; it must wait in the out-of-order cache.
	if err := p.push(ctx, scope, 2, "c"); err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if got := p.GetOutOfOrderDrops(); got != 1 {
		t.Fatalf("expected 1 out-of-order drop, got %d", got)
	}
	if err := p.push(ctx, scope, 0, "a"); err != nil {
		t.Fatalf("push 0: %v", err)
	}
	if err := p.push(ctx, scope, 1, "b"); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if got := p.GetOutOfOrderDrops(); got != 0 {
		t.Fatalf("expected out-of-order cache drained, got %d", got)
	}

	for i, want := range []string{"a", "b", "c"} {
		v, _, idx, closed, err := p.pop(ctx)
		if err != nil || closed {
			t.Fatalf("pop %d: v=%v closed=%v err=%v", i, v, closed, err)
		}
		if v != want || int(idx) != i {
			t.Fatalf("pop %d: expected (%s,%d), got (%s,%d)", i, want, i, v, idx)
		}
	}
}

func TestPipeScopeMismatch(t *testing.T) {
	p := NewPipe[int]("p", WithCapacity(4))
	ctx := context.Background()

	if err := p.push(ctx, "scope-a", 0, 1); err != nil {
		t.Fatalf("first push: %v", err)
	}
	err := p.push(ctx, "scope-b", 0, 2)
	if !IsKind(err, KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPipeEndOfInputDrainsPending(t *testing.T) {
	p := NewPipe[int]("p", WithCapacity(4))
	ctx := context.Background()
	scope := "scope-a"

	if err := p.push(ctx, scope, 0, 1); err != nil {
		t.Fatalf("push: %v", err)
	}
	p.setEndOfInput()

	v, _, _, closed, err := p.pop(ctx)
	if err != nil || closed || v != 1 {
		t.Fatalf("expected pending drop before closed signal, got v=%v closed=%v err=%v", v, closed, err)
	}

	_, _, _, closed, err = p.pop(ctx)
	if err != nil || !closed {
		t.Fatalf("expected closed=true after drain, got closed=%v err=%v", closed, err)
	}
}

func TestPipeBackpressureBlocksUntilPop(t *testing.T) {
	p := NewPipe[int]("p", WithCapacity(1))
	ctx := context.Background()
	scope := "scope-a"

	if err := p.push(ctx, scope, 0, 1); err != nil {
		t.Fatalf("first push: %v", err)
	}

	pushed := make(chan error, 1)
	go func() {
		pushed <- p.push(ctx, scope, 1, 2)
	}()

	select {
	case <-pushed:
		t.Fatal("second push should have blocked while pipe is full")
	case <-time.After(50 * time.Millisecond):
	}

	if _, _, _, _, err := p.pop(ctx); err != nil {
		t.Fatalf("pop: %v", err)
	}

	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("second push: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second push never unblocked after pop")
	}
}

func TestPipePushCancelledByContext(t *testing.T) {
	p := NewPipe[int]("p", WithCapacity(1))
	ctx, cancel := context.WithCancel(context.Background())
	scope := "scope-a"

	if err := p.push(context.Background(), scope, 0, 1); err != nil {
		t.Fatalf("first push: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.push(ctx, scope, 1, 2)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("push never observed context cancellation")
	}
}

func TestPipeConcurrentPushesPreserveOrderPerScope(t *testing.T) {
	p := NewPipe[int]("p", WithCapacity(32))
	ctx := context.Background()
	scope := "scope-a"

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			if err := p.push(ctx, scope, int64(idx), idx); err != nil {
				t.Errorf("push %d: %v", idx, err)
			}
		}(i)
	}

	// Pop while the pushers run: the pipe holds at most 2*32 drops, so the
	// remaining pushers only make progress as drops are popped.
	for i := 0; i < n; i++ {
		v, _, idx, closed, err := p.pop(ctx)
		if err != nil || closed {
			t.Fatalf("pop %d: closed=%v err=%v", i, closed, err)
		}
		if v != i || int(idx) != i {
			t.Fatalf("expected in-order (%d,%d), got (%d,%d)", i, i, v, idx)
		}
	}
	wg.Wait()
}
