package dropflow

// StageOption configures the worker and output pipe created by a builder
// function (Through, Transform, Do, Consume, ForkOut, JoinIn). It unifies
// what would otherwise be separate WorkerOption/PipeOption variadics into
// one parameter list per stage.
type StageOption func(*stageConfig)

type stageConfig struct {
	workerOpts []WorkerOption
	pipeOpts   []PipeOption
	name       string
}

func newStageConfig(name string, opts []StageOption) stageConfig {
	c := stageConfig{name: name}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// WithStageConcurrency sets how many work units the stage's worker may run
// concurrently.
func WithStageConcurrency(n int) StageOption {
	return func(c *stageConfig) { c.workerOpts = append(c.workerOpts, WithConcurrency(n)) }
}

// WithStageRetry installs a RetryPolicy on the stage's worker.
func WithStageRetry(p *RetryPolicy) StageOption {
	return func(c *stageConfig) { c.workerOpts = append(c.workerOpts, WithRetryPolicy(p)) }
}

// WithStageCapacity sets the base capacity of the stage's output pipe.
func WithStageCapacity(n int) StageOption {
	return func(c *stageConfig) { c.pipeOpts = append(c.pipeOpts, WithCapacity(n)) }
}
