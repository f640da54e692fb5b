// Package dropflow provides a staged dataflow runtime for Go.
//
// # Overview
//
// dropflow organizes work around three coupled ideas:
//
//  1. Pipes: bounded, order-preserving queues of "drops" (arbitrary user
//     values).
//  2. Workers: one-shot, cancellable units of concurrent execution that pull
//     from input pipes and push to output pipes.
//  3. Pipelines: a builder that wires workers and pipes into a graph, plus a
//     runner that starts every worker, aggregates errors, and exposes a
//     structural chart of the assembled graph.
//
// # Basic usage
//
//	pl := dropflow.NewPipeline()
//
//	gen := dropflow.Supply(pl, "gen", func(ctx context.Context) (int, bool, error) {
//	    ...
//	})
//
//	doubled := dropflow.Through(gen.Pipe, "double", func(v int) (int, error) {
//	    return v * 2, nil
//	})
//
//	dropflow.Consume(doubled, "print", func(v int) error {
//	    fmt.Println(v)
//	    return nil
//	})
//
//	if err := pl.Build(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := pl.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Index scopes
//
// Every SupplyPipe originates a new index scope: drops pushed through it are
// numbered 0, 1, 2, ... and every downstream Pipe that does not itself
// originate a new scope preserves that order, even when multiple goroutines
// populate the pipe concurrently. Transform and Join stages open new scopes;
// Function, Action, Consumer and Fork stages preserve the scope they read.
//
// # Worker roles
//
// Supply, Through, Transform, Do, Consume, ForkOut and JoinIn build the
// seven worker shapes (Supplier, Function, Transformer, Action, Consumer,
// Fork, Join). Each is a thin struct holding callbacks and pipe references,
// dispatched by the single worker runtime in worker.go — there is no class
// hierarchy.
//
// # Structural validation
//
// Pipeline.Build walks the assembled graph and reports non-fatal Warnings
// (DISCOVERY, COMPLETENESS, MULTIPLE_INPUTS, UNBALANCED_FORK) plus a fatal
// CYCLE error. Pipeline.Chart renders the walk as a stable-token ASCII
// diagram; the extensions package adds an optional tree-based renderer for
// interactive debugging.
//
// # Extensions
//
// The extensions subpackage provides opt-in cross-cutting behavior
// (structured logging, graph-on-error dumps) via the Extension hook
// interface in extension.go. The core packages never log on their own —
// observability is always opt-in.
package dropflow
