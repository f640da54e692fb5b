package dropflow

// PipeSnapshot is an immutable, approximate point-in-time view of a Pipe's
// internal queues and load, sampled under a brief lock. Approximate because
// concurrent pushes/pops may change the underlying state the instant after
// the snapshot is taken.
type PipeSnapshot struct {
	Name            string
	BaseCapacity    int
	InOrderDrops    int
	OutOfOrderDrops int
	InPushDrops     int
	DropsPushed     uint64
	CurrentLoad     float64
	AverageLoad     float64
	EndOfInput      bool
}

// Snapshot captures a PipeSnapshot of p.
func Snapshot[T any](p *Pipe[T]) PipeSnapshot {
	return PipeSnapshot{
		Name:            p.Name(),
		BaseCapacity:    p.GetBaseCapacity(),
		InOrderDrops:    p.GetInOrderDrops(),
		OutOfOrderDrops: p.GetOutOfOrderDrops(),
		InPushDrops:     p.GetInPushDrops(),
		DropsPushed:     p.GetDropsPushed(),
		CurrentLoad:     p.GetCurrentLoad(),
		AverageLoad:     p.GetAverageLoad(),
		EndOfInput:      p.IsEndOfInput(),
	}
}

// WorkerSnapshot is an immutable, approximate point-in-time view of a
// Worker's lifecycle state and utilization.
type WorkerSnapshot struct {
	Name               string
	State              WorkerState
	Concurrency        int
	CancelledWork      uint64
	CurrentUtilization float64
	AverageUtilization float64
}

// SnapshotWorker captures a WorkerSnapshot of w.
func SnapshotWorker(w *Worker) WorkerSnapshot {
	return WorkerSnapshot{
		Name:               w.Name(),
		State:              w.State(),
		Concurrency:        w.Concurrency(),
		CancelledWork:      w.CancelledWork(),
		CurrentUtilization: w.CurrentUtilization(),
		AverageUtilization: w.AverageUtilization(),
	}
}

// PipelineSnapshot bundles the snapshot of every worker registered on a
// Pipeline, in registration order. It holds no pipe snapshots.
type PipelineSnapshot struct {
	Workers []WorkerSnapshot
}

// SnapshotPipeline captures a WorkerSnapshot for every worker registered on
// pl, in registration order. Pipe snapshots are not included here since
// Pipe[T] is generic and Pipeline only holds its non-generic pipeHandle
// view; call Snapshot directly on a *Pipe[T] you still have a typed
// reference to.
func SnapshotPipeline(pl *Pipeline) PipelineSnapshot {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	snaps := make([]WorkerSnapshot, 0, len(pl.workers))
	for _, n := range pl.workers {
		snaps = append(snaps, SnapshotWorker(n.w))
	}
	return PipelineSnapshot{Workers: snaps}
}
