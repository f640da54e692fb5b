package dropflow

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

func TestPipelineEndToEndDoubling(t *testing.T) {
	pl := NewPipeline()

	values := []int{1, 2, 3}
	i := 0
	gen := Supply(pl, "gen", func(ctx context.Context) (int, bool, error) {
		if i >= len(values) {
			return 0, false, nil
		}
		v := values[i]
		i++
		return v, true, nil
	})

	doubled := Through(gen.Pipe, "double", func(v int) (int, error) {
		return v * 2, nil
	})

	var got []int
	Consume(doubled, "collect", func(v int) error {
		got = append(got, v)
		return nil
	})

	if err := pl.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := pl.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []int{2, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPipelineForkJoinMerge(t *testing.T) {
	pl := NewPipeline()

	values := []int{1, 2, 3}
	i := 0
	gen := Supply(pl, "gen", func(ctx context.Context) (int, bool, error) {
		if i >= len(values) {
			return 0, false, nil
		}
		v := values[i]
		i++
		return v, true, nil
	})

	branches := ForkOut(gen.Pipe, "split", 2)
	squared := Through(branches[0], "square", func(v int) (int, error) { return v * v, nil })
	negated := Through(branches[1], "negate", func(v int) (int, error) { return -v, nil })
	merged := JoinIn([]*Pipe[int]{squared, negated}, "merge")

	var got []int
	Consume(merged, "collect", func(v int) error {
		got = append(got, v)
		return nil
	})

	if err := pl.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := pl.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(got) != 6 {
		t.Fatalf("expected 6 merged drops, got %d: %v", len(got), got)
	}
	sort.Ints(got)
	want := []int{-3, -2, -1, 1, 4, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected sorted %v, got %v", want, got)
		}
	}
}

func TestPipelineBuildFlagsIncompleteness(t *testing.T) {
	pl := NewPipeline()
	gen := Supply(pl, "gen", func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})
	// output of "double" is never consumed
	Through(gen.Pipe, "double", func(v int) (int, error) { return v * 2, nil })

	if err := pl.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	found := false
	for _, w := range pl.Warnings() {
		if w.Kind == WarningCompleteness {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a COMPLETENESS warning, got %v", pl.Warnings())
	}
}

func TestPipelineRunBeforeBuildFails(t *testing.T) {
	pl := NewPipeline()
	Supply(pl, "gen", func(ctx context.Context) (int, bool, error) { return 0, false, nil })

	if err := pl.Run(context.Background()); !IsKind(err, KindConfiguration) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
}

func TestPipelineRunTwiceFails(t *testing.T) {
	pl := NewPipeline()
	gen := Supply(pl, "gen", func(ctx context.Context) (int, bool, error) { return 0, false, nil })
	Consume(gen.Pipe, "drain", func(v int) error { return nil })

	if err := pl.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := pl.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := pl.Run(context.Background()); !IsKind(err, KindReused) {
		t.Fatalf("expected ErrPipelineReused, got %v", err)
	}
}

func TestPipelineCancelMidFlightEndsEveryWorkerCancelled(t *testing.T) {
	pl := NewPipeline()

	n := 0
	gen := Supply(pl, "naturals", func(ctx context.Context) (int, bool, error) {
		n++
		return n, true, nil
	})

	// A slow consumer lets the supplier's push back up against the pipe's
	// capacity, so cancellation is observed mid-push as well as mid-pop.
	Consume(gen.Pipe, "sleeper", func(v int) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	if err := pl.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	userErr := errors.New("boom")
	runErr := make(chan error, 1)
	go func() { runErr <- pl.Run(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	pl.Cancel(userErr)

	select {
	case err := <-runErr:
		if !errors.Is(err, userErr) {
			t.Fatalf("expected run() to surface the cancel error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run never returned after Cancel")
	}

	var cancelledWork uint64
	for _, s := range pl.Stages() {
		w := pl.Worker(s.Name)
		if w.State() != WorkerCancelled {
			t.Fatalf("expected worker %q to end Cancelled, got %s", s.Name, w.State())
		}
		cancelledWork += w.CancelledWork()
	}
	if cancelledWork < 1 {
		t.Fatalf("expected cancelledWork >= 1 across workers, got %d", cancelledWork)
	}
}

func TestPipelineDuplicateWorkerNameFailsBuild(t *testing.T) {
	pl := NewPipeline()
	gen := Supply(pl, "gen", func(ctx context.Context) (int, bool, error) { return 0, false, nil })
	Consume(gen.Pipe, "gen", func(v int) error { return nil })

	if err := pl.Build(); !IsKind(err, KindConfiguration) {
		t.Fatalf("expected duplicate-name configuration error, got %v", err)
	}
}
