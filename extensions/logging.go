package extensions

import (
	"log/slog"

	"github.com/dropflow/dropflow"
)

// LoggingExtension logs pipeline and worker lifecycle events through
// log/slog. It is entirely opt-in: core dropflow packages never log on
// their own, so attaching this is the only way to see these events.
type LoggingExtension struct {
	dropflow.BaseExtension
	log *slog.Logger
}

// NewLoggingExtension builds a LoggingExtension writing through logger. A
// nil logger falls back to slog.Default().
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{log: logger}
}

func (e *LoggingExtension) OnPipelineStart(pl *dropflow.Pipeline) {
	e.log.Info("pipeline starting", "pipeline_id", pl.ID())
}

func (e *LoggingExtension) OnWorkerStart(pl *dropflow.Pipeline, workerName string) {
	e.log.Debug("worker starting", "pipeline_id", pl.ID(), "worker", workerName)
}

func (e *LoggingExtension) OnWorkerDone(pl *dropflow.Pipeline, workerName string, err error) {
	if err != nil {
		e.log.Error("worker failed", "pipeline_id", pl.ID(), "worker", workerName, "error", err)
		return
	}
	e.log.Debug("worker done", "pipeline_id", pl.ID(), "worker", workerName)
}

func (e *LoggingExtension) OnPipelineDone(pl *dropflow.Pipeline, err error) {
	if err != nil {
		e.log.Error("pipeline failed", "pipeline_id", pl.ID(), "error", err)
		return
	}
	e.log.Info("pipeline done", "pipeline_id", pl.ID())
}
