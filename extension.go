package dropflow

// Extension provides opt-in hooks into pipeline and worker lifecycle
// events. Core packages never log or record metrics directly; any
// observability comes from Extensions registered via WithExtensions.
type Extension interface {
	// OnPipelineStart fires once, right before any worker is started.
	OnPipelineStart(pl *Pipeline)
	// OnWorkerStart fires once per worker, right before its Run loop begins.
	OnWorkerStart(pl *Pipeline, workerName string)
	// OnWorkerDone fires once per worker, right after its Run loop returns.
	// err is the worker's final error, or nil.
	OnWorkerDone(pl *Pipeline, workerName string, err error)
	// OnPipelineDone fires once, after every worker has finished. err is the
	// pipeline's final error, or nil.
	OnPipelineDone(pl *Pipeline, err error)
}

// BaseExtension is a no-op Extension embeddable by extensions that only
// care about a subset of lifecycle events.
type BaseExtension struct{}

func (BaseExtension) OnPipelineStart(*Pipeline)                {}
func (BaseExtension) OnWorkerStart(*Pipeline, string)           {}
func (BaseExtension) OnWorkerDone(*Pipeline, string, error)     {}
func (BaseExtension) OnPipelineDone(*Pipeline, error)           {}
