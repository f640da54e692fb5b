package dropflow

import (
	"context"
	"sync"

	"github.com/dropflow/dropflow/internal/validate"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// pipeHandle is the non-generic view of a Pipe[T] that Pipeline needs for
// bookkeeping and graph validation, independent of T.
type pipeHandle interface {
	pipeName() string
	pipeID() any
	pipeEndOfInput() bool
	pipeCapacity() int
}

// workerNode records one worker's place in the graph: the pipes it reads
// from and the pipes it writes to, by identity.
type workerNode struct {
	w       *Worker
	name    string
	inputs  []any
	outputs []any
}

// Pipeline assembles pipes and workers into a graph, validates the graph's
// structure, and runs every worker to completion with first-error-wins
// semantics via errgroup.
type Pipeline struct {
	id uuid.UUID

	mu       sync.Mutex
	pipes    []pipeHandle
	workers  []*workerNode
	built    bool
	started  bool
	warnings []Warning
	ext      []Extension
}

// PipelineOption configures a Pipeline at construction time.
type PipelineOption func(*Pipeline)

// WithExtensions attaches Extensions whose hooks fire around worker and
// pipeline lifecycle events.
func WithExtensions(exts ...Extension) PipelineOption {
	return func(pl *Pipeline) { pl.ext = append(pl.ext, exts...) }
}

// NewPipeline creates an empty Pipeline identified by a fresh correlation
// ID, used by extensions (e.g. logging) to tag every event from one run.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	pl := &Pipeline{id: uuid.New()}
	for _, o := range opts {
		o(pl)
	}
	return pl
}

// ID returns the pipeline's correlation ID.
func (pl *Pipeline) ID() uuid.UUID { return pl.id }

func (pl *Pipeline) addPipe(p pipeHandle) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.pipes = append(pl.pipes, p)
}

func (pl *Pipeline) addWorker(n *workerNode) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pl.workers = append(pl.workers, n)
}

func ids(handles ...pipeHandle) []any {
	out := make([]any, len(handles))
	for i, h := range handles {
		out[i] = h.pipeID()
	}
	return out
}

// Supply registers a new SupplyPipe[T] driven by fn, running under pl.
func Supply[T any](pl *Pipeline, name string, fn func(context.Context) (T, bool, error), opts ...SupplyPipeOption[T]) *SupplyPipe[T] {
	sp := NewSupplyPipe[T](name, opts...)
	sp.Pipe.owner = pl
	pl.addPipe(sp.Pipe)
	w := newWorker(name, &supplierRole[T]{fn: fn, out: sp})
	pl.addWorker(&workerNode{w: w, name: name, outputs: ids(sp.Pipe)})
	return sp
}

// Through registers a Function stage mapping one drop to one drop,
// preserving the input's index scope.
func Through[I, O any](in *Pipe[I], name string, fn func(I) (O, error), opts ...StageOption) *Pipe[O] {
	cfg := newStageConfig(name, opts)
	out := NewPipe[O](name, cfg.pipeOpts...)
	out.owner = in.owner
	in.owner.addPipe(out)
	w := newWorker(name, &functionRole[I, O]{in: in, out: out, fn: fn}, cfg.workerOpts...)
	in.owner.addWorker(&workerNode{w: w, name: name, inputs: ids(in), outputs: ids(out)})
	return out
}

// Transform registers a Transformer stage mapping one drop to zero or more
// drops, opening a fresh index scope for its output.
func Transform[I, O any](in *Pipe[I], name string, fn func(I) ([]O, error), opts ...StageOption) *Pipe[O] {
	cfg := newStageConfig(name, opts)
	out := NewPipe[O](name, cfg.pipeOpts...)
	out.owner = in.owner
	in.owner.addPipe(out)
	w := newWorker(name, &transformerRole[I, O]{in: in, out: out, fn: fn}, cfg.workerOpts...)
	in.owner.addWorker(&workerNode{w: w, name: name, inputs: ids(in), outputs: ids(out)})
	return out
}

// Do registers an Action stage: a side-effecting callback applied to each
// drop, which is then forwarded unchanged.
func Do[T any](in *Pipe[T], name string, fn func(T) error, opts ...StageOption) *Pipe[T] {
	cfg := newStageConfig(name, opts)
	out := NewPipe[T](name, cfg.pipeOpts...)
	out.owner = in.owner
	in.owner.addPipe(out)
	w := newWorker(name, &actionRole[T]{in: in, out: out, fn: fn}, cfg.workerOpts...)
	in.owner.addWorker(&workerNode{w: w, name: name, inputs: ids(in), outputs: ids(out)})
	return out
}

// Consume registers a terminal Consumer stage. It returns no pipe: nothing
// downstream can read from a consumer.
func Consume[T any](in *Pipe[T], name string, fn func(T) error, opts ...StageOption) {
	cfg := newStageConfig(name, opts)
	w := newWorker(name, &consumerRole[T]{in: in, fn: fn}, cfg.workerOpts...)
	in.owner.addWorker(&workerNode{w: w, name: name, inputs: ids(in)})
}

// ForkOut registers a Fork stage broadcasting each drop to n output pipes,
// each preserving the input's index scope.
func ForkOut[T any](in *Pipe[T], name string, n int, opts ...StageOption) []*Pipe[T] {
	cfg := newStageConfig(name, opts)
	outs := make([]*Pipe[T], n)
	handles := make([]pipeHandle, n)
	for i := range outs {
		p := NewPipe[T](name, cfg.pipeOpts...)
		p.owner = in.owner
		in.owner.addPipe(p)
		outs[i] = p
		handles[i] = p
	}
	w := newWorker(name, &forkRole[T]{in: in, outs: outs}, cfg.workerOpts...)
	in.owner.addWorker(&workerNode{w: w, name: name, inputs: ids(in), outputs: ids(handles...)})
	return outs
}

// JoinIn registers a Join stage merging several input pipes into one
// output pipe, opening a fresh index scope. Each input is drained
// independently: one input reaching end-of-input ends only that input.
func JoinIn[T any](ins []*Pipe[T], name string, opts ...StageOption) *Pipe[T] {
	cfg := newStageConfig(name, opts)
	out := NewPipe[T](name, cfg.pipeOpts...)
	owner := ins[0].owner
	out.owner = owner
	owner.addPipe(out)
	handles := make([]pipeHandle, len(ins))
	for i, in := range ins {
		handles[i] = in
	}
	w := newWorker(name, &joinRole[T]{ins: ins, out: out}, cfg.workerOpts...)
	owner.addWorker(&workerNode{w: w, name: name, inputs: ids(handles...), outputs: ids(out)})
	return out
}

// Build validates the assembled graph, populating Warnings() with any
// non-fatal structural issues and returning a *Error of KindConfiguration
// if a cycle is detected. Build must succeed before Run.
func (pl *Pipeline) Build() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.built {
		return nil
	}

	names := make([]string, 0, len(pl.workers))
	for _, n := range pl.workers {
		if err := validate.Name("worker", n.name); err != nil {
			return ConfigError("%v", err)
		}
		names = append(names, n.name)
	}
	if err := validate.Unique("worker", names); err != nil {
		return ConfigError("%v", err)
	}

	warnings, err := validateGraph(pl.pipes, pl.workers)
	if err != nil {
		return err
	}
	pl.warnings = warnings
	pl.built = true
	return nil
}

// Warnings returns the non-fatal structural warnings found by Build.
// Calling it before Build returns an empty slice.
func (pl *Pipeline) Warnings() []Warning {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return append([]Warning{}, pl.warnings...)
}

// Chart renders the assembled graph as a stable-token ASCII diagram.
func (pl *Pipeline) Chart() string {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return renderChart(pl.pipes, pl.workers)
}

// Run starts every registered worker concurrently and blocks until they all
// finish, returning the first error any of them produced (errgroup's
// first-error-wins semantics, cancelling every other worker's context). Run
// must be called at most once per pipeline and only after a successful
// Build.
func (pl *Pipeline) Run(ctx context.Context) error {
	pl.mu.Lock()
	if !pl.built {
		pl.mu.Unlock()
		return ErrNotBuilt
	}
	if pl.started {
		pl.mu.Unlock()
		return ErrPipelineReused
	}
	pl.started = true
	workers := append([]*workerNode{}, pl.workers...)
	exts := append([]Extension{}, pl.ext...)
	pl.mu.Unlock()

	for _, e := range exts {
		e.OnPipelineStart(pl)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, node := range workers {
		node := node
		g.Go(func() error {
			for _, e := range exts {
				e.OnWorkerStart(pl, node.name)
			}
			err := node.w.Run(gctx)
			for _, e := range exts {
				e.OnWorkerDone(pl, node.name, err)
			}
			return err
		})
	}
	err := g.Wait()

	for _, e := range exts {
		e.OnPipelineDone(pl, err)
	}
	return err
}

// Cancel cancels every worker in the pipeline with err as the cause (or
// ErrInterrupted if err is nil), causing Run to surface err once every
// worker unwinds (or whatever error first occurred, if one already had).
func (pl *Pipeline) Cancel(err error) {
	pl.mu.Lock()
	workers := append([]*workerNode{}, pl.workers...)
	pl.mu.Unlock()
	for _, n := range workers {
		n.w.Cancel(err)
	}
}

// Stop gracefully cancels every worker with ErrSilentStop as the cause, so
// Run returns nil unless some other error already occurred.
func (pl *Pipeline) Stop() {
	pl.mu.Lock()
	workers := append([]*workerNode{}, pl.workers...)
	pl.mu.Unlock()
	for _, n := range workers {
		n.w.Stop()
	}
}

// StageInfo describes one worker's place in the graph for external
// renderers (see extensions.GraphDebugExtension), using pipe names rather
// than internal identities.
type StageInfo struct {
	Name    string
	Inputs  []string
	Outputs []string
}

// Stages returns a StageInfo for every worker, in registration order.
func (pl *Pipeline) Stages() []StageInfo {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	pipeName := make(map[any]string, len(pl.pipes))
	for _, p := range pl.pipes {
		pipeName[p.pipeID()] = p.pipeName()
	}
	out := make([]StageInfo, 0, len(pl.workers))
	for _, n := range pl.workers {
		info := StageInfo{Name: n.name}
		for _, id := range n.inputs {
			info.Inputs = append(info.Inputs, pipeName[id])
		}
		for _, id := range n.outputs {
			info.Outputs = append(info.Outputs, pipeName[id])
		}
		out = append(out, info)
	}
	return out
}

// Worker returns the named worker's handle for direct inspection
// (Worker.State, Worker.CurrentUtilization), or nil if no worker by that
// name was registered.
func (pl *Pipeline) Worker(name string) *Worker {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	for _, n := range pl.workers {
		if n.name == name {
			return n.w
		}
	}
	return nil
}
