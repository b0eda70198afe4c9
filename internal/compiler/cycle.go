package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/txflow/internal/ir"
)

// CycleWarning describes one cycle in a process state graph.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["state/a", "state/b", "state/a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // always "error" for state graphs
}

// AnalyzeCycles performs static cycle analysis on a process state graph.
//
// The reducer derives state from the last transition only, so a cycle would
// let "current state" move backwards. Validate therefore reports every
// warning returned here as E205.
//
// The algorithm:
//  1. Build state → state edges from each transition's from/to
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// A DAG returns an empty list.
func AnalyzeCycles(spec *ir.ProcessSpec) []CycleWarning {
	if spec == nil || len(spec.Transitions) == 0 {
		return []CycleWarning{}
	}

	graph, order := buildStateGraph(spec)
	sccs := tarjanSCC(graph, order)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// stateGraph maps state → states reachable in one transition.
type stateGraph map[string][]string

// buildStateGraph constructs the edge list and a deterministic visit order
// (declared states first, then any undeclared endpoints in transition order).
func buildStateGraph(spec *ir.ProcessSpec) (stateGraph, []string) {
	graph := make(stateGraph)
	var order []string
	seen := make(map[string]bool)

	addNode := func(s string) {
		if !seen[s] {
			seen[s] = true
			order = append(order, s)
			graph[s] = []string{}
		}
	}
	for _, s := range spec.States {
		addNode(string(s))
	}

	for _, t := range spec.Transitions {
		to := string(t.To)
		addNode(to)
		for _, from := range t.From {
			addNode(string(from))
			if !containsString(graph[string(from)], to) {
				graph[string(from)] = append(graph[string(from)], to)
			}
		}
	}
	return graph, order
}

func hasSelfLoop(node string, graph stateGraph) bool {
	return containsString(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph stateGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph stateGraph) CycleWarning {
	if len(scc) == 1 {
		state := scc[0]
		return CycleWarning{
			Path:    []string{state, state},
			Message: fmt.Sprintf("state %s transitions to itself", state),
			Level:   "error",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("cycle in state graph: %s", strings.Join(path, " → ")),
		Level:   "error",
	}
}

// reconstructCyclePath walks SCC members from the first node until it
// returns to the start.
func reconstructCyclePath(scc []string, graph stateGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool)
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
