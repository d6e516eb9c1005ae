package types

import (
	"fmt"
	"sort"
	"strings"
)

// ServiceDependencyGraph builds the adjacency list of service dependency edges
// from catalog definitions.
func ServiceDependencyGraph(services []*ServiceDefinition) map[string][]string {
	adj := make(map[string][]string, len(services))
	for _, svc := range services {
		adj[svc.Name] = append([]string(nil), svc.Dependencies...)
	}
	return adj
}

// DetectDependencyCycles runs cycle detection on an adjacency list of service
// dependency edges. It returns one error per cycle found, with the cycle path.
// Nodes are visited in name order so the result is stable.
func DetectDependencyCycles(adj map[string][]string) []error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(adj))
	stack := make([]string, 0, len(adj))
	var cycleErrs []error

	var visit func(u string)
	visit = func(u string) {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range adj[u] {
			switch color[v] {
			case gray:
				start := 0
				for i := range stack {
					if stack[i] == v {
						start = i
						break
					}
				}
				path := append(append([]string(nil), stack[start:]...), v)
				cycleErrs = append(cycleErrs, fmt.Errorf("dependency cycle detected: %s", strings.Join(path, " -> ")))
			case white:
				visit(v)
			}
		}
		color[u] = black
		stack = stack[:len(stack)-1]
	}

	nodes := make([]string, 0, len(adj))
	for u := range adj {
		nodes = append(nodes, u)
	}
	sort.Strings(nodes)
	for _, u := range nodes {
		if color[u] == white {
			visit(u)
		}
	}
	return cycleErrs
}
