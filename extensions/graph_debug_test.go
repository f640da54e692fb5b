package extensions

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dropflow/dropflow"
)

func TestGraphDebugExtensionSilentOnSuccessfulRun(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(&buf, slog.LevelError)

	pl := dropflow.NewPipeline(dropflow.WithExtensions(NewGraphDebugExtension(handler)))

	gen := dropflow.Supply(pl, "gen", func(ctx context.Context) (int, bool, error) {
		return 0, false, nil
	})
	dropflow.Consume(gen.Pipe, "explode", func(v int) error {
		return context.DeadlineExceeded
	})

	if err := pl.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	// gen produces nothing (ok=false immediately) so the consumer never
	// actually runs its callback; this test only exercises the logging
	// path wiring, not a forced failure. Run should succeed quietly.
	if err := pl.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no error output for a successful run, got:\n%s", buf.String())
	}
}

func TestGraphDebugExtensionFormatsFailure(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(&buf, slog.LevelError)

	pl := dropflow.NewPipeline(dropflow.WithExtensions(NewGraphDebugExtension(handler)))

	boom := context.Canceled
	gen := dropflow.Supply(pl, "gen", func(ctx context.Context) (int, bool, error) {
		return 0, false, boom
	})
	dropflow.Consume(gen.Pipe, "print", func(v int) error { return nil })

	if err := pl.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := pl.Run(context.Background()); err == nil {
		t.Fatal("expected the supplier's error to surface")
	}

	out := buf.String()
	if !strings.Contains(out, "Pipeline Run Error") {
		t.Fatalf("expected formatted run-error output, got:\n%s", out)
	}
	if !strings.Contains(out, "gen") {
		t.Fatalf("expected graph output to mention stage %q, got:\n%s", "gen", out)
	}
}

func TestSilentHandlerDiscardsEverything(t *testing.T) {
	h := NewSilentHandler()
	if h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("silent handler must never be enabled")
	}
}
