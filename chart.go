package dropflow

import (
	"fmt"
	"sort"
	"strings"
)

// WarningKind classifies a non-fatal structural issue Build found in the
// assembled graph.
type WarningKind int

const (
	// WarningDiscovery marks a pipe or worker with no path back to any
	// SupplyPipe: nothing will ever feed it.
	WarningDiscovery WarningKind = iota
	// WarningCompleteness marks a pipe nothing reads from: a dead end.
	WarningCompleteness
	// WarningMultipleInputs marks a pipe written to by more than one
	// worker, which will fail at runtime with ErrScopeMismatch unless every
	// writer happens to share the same index scope.
	WarningMultipleInputs
	// WarningUnbalancedFork marks a Fork stage where some output branches
	// are read downstream and others are not.
	WarningUnbalancedFork
)

func (k WarningKind) String() string {
	switch k {
	case WarningDiscovery:
		return "DISCOVERY"
	case WarningCompleteness:
		return "COMPLETENESS"
	case WarningMultipleInputs:
		return "MULTIPLE_INPUTS"
	case WarningUnbalancedFork:
		return "UNBALANCED_FORK"
	default:
		return "UNKNOWN"
	}
}

// Warning is one non-fatal structural finding from Pipeline.Build.
type Warning struct {
	Kind    WarningKind
	Node    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s[%s]: %s", w.Kind, w.Node, w.Message)
}

const (
	colorWhite = 0
	colorGray  = 1
	colorBlack = 2
)

// forkRoleIntrospector is implemented by forkRole[T] so validateGraph can
// recognize fork workers without depending on T.
type forkRoleIntrospector interface {
	isFork()
}

// validateGraph walks the assembled pipes and workers, returning every
// non-fatal Warning found and a *Error (KindConfiguration) if a cycle
// exists. The walk is iterative (stack-based), not recursive, so pipeline
// size is never limited by Go's goroutine stack growth behavior.
func validateGraph(pipes []pipeHandle, workers []*workerNode) ([]Warning, error) {
	readers := make(map[any][]*workerNode) // pipe id -> workers reading it
	writers := make(map[any][]*workerNode) // pipe id -> workers writing it
	for _, w := range workers {
		for _, in := range w.inputs {
			readers[in] = append(readers[in], w)
		}
		for _, out := range w.outputs {
			writers[out] = append(writers[out], w)
		}
	}

	if err := detectCycle(pipes, workers, readers); err != nil {
		return nil, err
	}

	var warnings []Warning

	reachable := reachableFromSuppliers(pipes, workers, readers)
	for _, p := range pipes {
		if !reachable[nodeKey("pipe", p.pipeID())] {
			warnings = append(warnings, Warning{Kind: WarningDiscovery, Node: p.pipeName(), Message: "pipe has no path back to any supply pipe"})
		}
	}
	for _, w := range workers {
		if !reachable[nodeKey("worker", w.name)] {
			warnings = append(warnings, Warning{Kind: WarningDiscovery, Node: w.name, Message: "worker has no path back to any supply pipe"})
		}
	}

	for _, p := range pipes {
		if len(readers[p.pipeID()]) == 0 {
			warnings = append(warnings, Warning{Kind: WarningCompleteness, Node: p.pipeName(), Message: "pipe is never read by any worker"})
		}
	}

	for _, p := range pipes {
		if len(writers[p.pipeID()]) > 1 {
			names := make([]string, 0, len(writers[p.pipeID()]))
			for _, w := range writers[p.pipeID()] {
				names = append(names, w.name)
			}
			sort.Strings(names)
			warnings = append(warnings, Warning{Kind: WarningMultipleInputs, Node: p.pipeName(), Message: "written by multiple workers: " + strings.Join(names, ", ")})
		}
	}

	warnings = append(warnings, unbalancedForkWarnings(workers, readers)...)

	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Kind != warnings[j].Kind {
			return warnings[i].Kind < warnings[j].Kind
		}
		return warnings[i].Node < warnings[j].Node
	})
	return warnings, nil
}

func unbalancedForkWarnings(workers []*workerNode, readers map[any][]*workerNode) []Warning {
	var out []Warning
	for _, w := range workers {
		if _, ok := w.w.role.(forkRoleIntrospector); !ok || len(w.outputs) < 2 {
			continue
		}
		used, unused := 0, 0
		for _, id := range w.outputs {
			if len(readers[id]) > 0 {
				used++
			} else {
				unused++
			}
		}
		if used > 0 && unused > 0 {
			out = append(out, Warning{Kind: WarningUnbalancedFork, Node: w.name, Message: "some fork branches are consumed and others are not"})
		}
	}
	return out
}

func nodeKey(kind string, id any) string {
	return fmt.Sprintf("%s:%v", kind, id)
}

// detectCycle performs an iterative (stack-based) DFS over the bipartite
// pipe/worker graph, colouring nodes white/gray/black. A gray node reached
// again indicates a cycle.
func detectCycle(pipes []pipeHandle, workers []*workerNode, readers map[any][]*workerNode) error {
	color := make(map[string]int)

	type frame struct {
		key      string
		children []string
		i        int
	}

	childrenOf := func(key string) []string {
		var kids []string
		if strings.HasPrefix(key, "pipe:") {
			id := keyToPipeID(pipes, key)
			for _, w := range readers[id] {
				kids = append(kids, "worker:"+w.name)
			}
			return kids
		}
		name := strings.TrimPrefix(key, "worker:")
		for _, w := range workers {
			if w.name != name {
				continue
			}
			for _, out := range w.outputs {
				kids = append(kids, nodeKey("pipe", out))
			}
		}
		return kids
	}

	var allKeys []string
	for _, p := range pipes {
		allKeys = append(allKeys, nodeKey("pipe", p.pipeID()))
	}
	for _, w := range workers {
		allKeys = append(allKeys, "worker:"+w.name)
	}

	for _, start := range allKeys {
		if color[start] != colorWhite {
			continue
		}
		stack := []*frame{{key: start, children: childrenOf(start)}}
		color[start] = colorGray
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.i >= len(top.children) {
				color[top.key] = colorBlack
				stack = stack[:len(stack)-1]
				continue
			}
			child := top.children[top.i]
			top.i++
			switch color[child] {
			case colorWhite:
				color[child] = colorGray
				stack = append(stack, &frame{key: child, children: childrenOf(child)})
			case colorGray:
				return ConfigError("cycle detected involving %s", child)
			case colorBlack:
				// already fully explored, safe to skip
			}
		}
	}
	return nil
}

func keyToPipeID(pipes []pipeHandle, key string) any {
	for _, p := range pipes {
		if nodeKey("pipe", p.pipeID()) == key {
			return p.pipeID()
		}
	}
	return nil
}

// reachableFromSuppliers marks every pipe/worker node reachable from a
// worker with no inputs (a Supplier), used to flag orphaned subgraphs.
func reachableFromSuppliers(pipes []pipeHandle, workers []*workerNode, readers map[any][]*workerNode) map[string]bool {
	reached := make(map[string]bool)
	var queue []string
	for _, w := range workers {
		if len(w.inputs) == 0 {
			queue = append(queue, "worker:"+w.name)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if reached[cur] {
			continue
		}
		reached[cur] = true
		if strings.HasPrefix(cur, "worker:") {
			name := strings.TrimPrefix(cur, "worker:")
			for _, w := range workers {
				if w.name != name {
					continue
				}
				for _, out := range w.outputs {
					queue = append(queue, nodeKey("pipe", out))
				}
			}
		} else {
			id := keyToPipeID(pipes, cur)
			for _, w := range readers[id] {
				queue = append(queue, "worker:"+w.name)
			}
		}
	}
	return reached
}

// renderChart draws the graph as a stable-token ASCII diagram: one line per
// worker, naming its input pipes and output pipes, in registration order so
// the same graph always renders identically.
func renderChart(pipes []pipeHandle, workers []*workerNode) string {
	pipeName := make(map[any]string, len(pipes))
	for _, p := range pipes {
		pipeName[p.pipeID()] = p.pipeName()
	}

	var b strings.Builder
	for _, w := range workers {
		ins := make([]string, 0, len(w.inputs))
		for _, id := range w.inputs {
			ins = append(ins, pipeName[id])
		}
		outs := make([]string, 0, len(w.outputs))
		for _, id := range w.outputs {
			outs = append(outs, pipeName[id])
		}
		fmt.Fprintf(&b, "[%s] -> (%s) -> [%s]\n", strings.Join(ins, ", "), w.name, strings.Join(outs, ", "))
	}
	return b.String()
}
