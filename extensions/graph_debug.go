package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dropflow/dropflow"
	"github.com/m1gwings/treedrawer/tree"
)

// GraphDebugExtension logs a tree rendering of the pipeline's graph
// whenever Run finishes with an error. Pipeline.Chart already produces a
// stable-token diagram; this extension is for interactive debugging where a
// visual tree is more useful than a flat listing.
type GraphDebugExtension struct {
	dropflow.BaseExtension
	logger *slog.Logger
}

// NewGraphDebugExtension creates a GraphDebugExtension writing through
// logHandler.
//
//	ext := extensions.NewGraphDebugExtension(extensions.NewHumanHandler(os.Stdout, slog.LevelError))
//	ext := extensions.NewGraphDebugExtension(slog.NewJSONHandler(os.Stdout, nil))
//	ext := extensions.NewGraphDebugExtension(extensions.NewSilentHandler())
func NewGraphDebugExtension(logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{logger: slog.New(logHandler)}
}

func (e *GraphDebugExtension) OnPipelineDone(pl *dropflow.Pipeline, err error) {
	if err == nil {
		return
	}
	e.logger.Error("Pipeline Run Error",
		"pipeline_id", pl.ID(),
		"error", err.Error(),
		"graph", e.formatGraph(pl),
	)
}

// formatGraph renders pl.Stages() as a horizontal tree rooted at every
// stage with no inputs (the pipeline's suppliers).
func (e *GraphDebugExtension) formatGraph(pl *dropflow.Pipeline) string {
	stages := pl.Stages()
	if len(stages) == 0 {
		return "\n(empty - no stages registered)"
	}

	byInput := make(map[string][]dropflow.StageInfo) // pipe name -> stages reading it
	byName := make(map[string]dropflow.StageInfo)
	var roots []dropflow.StageInfo
	for _, s := range stages {
		byName[s.Name] = s
		if len(s.Inputs) == 0 {
			roots = append(roots, s)
		}
		for _, in := range s.Inputs {
			byInput[in] = append(byInput[in], s)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })

	var root *tree.Tree
	if len(roots) == 1 {
		root = e.buildTree(roots[0], byInput, make(map[string]bool))
	} else {
		root = tree.NewTree(tree.NodeString("pipeline"))
		for _, r := range roots {
			if child := e.buildTree(r, byInput, make(map[string]bool)); child != nil {
				addTreeAsChild(root, child)
			}
		}
	}
	if root == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(root.String())
	return sb.String()
}

func (e *GraphDebugExtension) buildTree(s dropflow.StageInfo, byInput map[string][]dropflow.StageInfo, visited map[string]bool) *tree.Tree {
	if visited[s.Name] {
		return nil
	}
	visited[s.Name] = true

	node := tree.NewTree(tree.NodeString(s.Name))

	var next []dropflow.StageInfo
	for _, out := range s.Outputs {
		next = append(next, byInput[out]...)
	}
	sort.Slice(next, func(i, j int) bool { return next[i].Name < next[j].Name })

	for _, child := range next {
		if childTree := e.buildTree(child, byInput, visited); childTree != nil {
			addTreeAsChild(node, childTree)
		}
	}
	return node
}

func addTreeAsChild(parent *tree.Tree, child *tree.Tree) {
	newChild := parent.AddChild(child.Val())
	for _, grandchild := range child.Children() {
		addTreeAsChild(newChild, grandchild)
	}
}

// SilentHandler is a slog.Handler that discards all log output. Useful in
// tests that attach GraphDebugExtension only to exercise the code path.
type SilentHandler struct{}

func NewSilentHandler() *SilentHandler { return &SilentHandler{} }

func (h *SilentHandler) Enabled(context.Context, slog.Level) bool   { return false }
func (h *SilentHandler) Handle(context.Context, slog.Record) error  { return nil }
func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler   { return h }
func (h *SilentHandler) WithGroup(name string) slog.Handler        { return h }

// HumanHandler formats log records for human readability, with special
// casing for the "Pipeline Run Error" record this package emits.
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{writer: writer, level: level}
}

func (h *HumanHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Message == "Pipeline Run Error" {
		return h.handleRunError(record)
	}
	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleRunError(record slog.Record) error {
	var pipelineID, errorMsg, graph string
	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "pipeline_id":
			pipelineID = a.Value.String()
		case "error":
			errorMsg = a.Value.String()
		case "graph":
			graph = a.Value.String()
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer, "[GraphDebug] Pipeline Run Error"); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nPipeline: %s\n", pipelineID); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Error: %s\n", errorMsg); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nGraph:%s\n", graph); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer); return err },
	}
	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *HumanHandler) WithGroup(name string) slog.Handler       { return h }
