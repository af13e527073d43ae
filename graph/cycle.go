package graph

import (
	"slices"
)

// dependencies maps a resolution stage to the stages it waits for.
type dependencies map[string][]string

// findCycle returns a cycle among the given stages as a path that starts
// and ends with the same stage, or nil if there is none. Stages are visited
// in the given order, so the result is deterministic.
func findCycle(stages []string, deps dependencies) []string {
	for _, scc := range tarjanSCC(stages, deps) {
		if len(scc) > 1 || slices.Contains(deps[scc[0]], scc[0]) {
			return cyclePath(scc, deps)
		}
	}
	return nil
}

// tarjanSCC finds the strongly connected components of the graph induced
// by stages using Tarjan's algorithm.
func tarjanSCC(stages []string, deps dependencies) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		member  = make(map[string]bool, len(stages))
		sccs    [][]string
	)
	for _, s := range stages {
		member[s] = true
	}

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if !member[w] {
				continue
			}
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of a component: pop it.
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
			slices.Reverse(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, s := range stages {
		if _, visited := indices[s]; !visited {
			strongConnect(s)
		}
	}
	return sccs
}

// cyclePath walks the component from its first stage back to itself.
func cyclePath(scc []string, deps dependencies) []string {
	in := make(map[string]bool, len(scc))
	for _, s := range scc {
		in[s] = true
	}
	start := scc[0]
	path := []string{start}
	seen := map[string]bool{start: true}
	var walk func(string) bool
	walk = func(v string) bool {
		for _, w := range deps[v] {
			if w == start {
				path = append(path, w)
				return true
			}
			if !in[w] || seen[w] {
				continue
			}
			seen[w] = true
			path = append(path, w)
			if walk(w) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if !walk(start) {
		return append(scc, start)
	}
	return path
}
