package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/noalloc/internal/ir"
)

// InheritanceCycle is a set of types that inherit from each other.
//
// Unlike most validation failures a cycle makes override resolution
// ill-defined, so it is reported as an error (E105) by Validate.
type InheritanceCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeInheritance finds inheritance cycles in p.
//
// The algorithm:
//  1. Build a type -> supertype graph from extends and implements edges,
//     keeping only supertypes declared in the program
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// An acyclic hierarchy returns an empty list.
func AnalyzeInheritance(p *ir.Program) []InheritanceCycle {
	if p == nil || len(p.Types) == 0 {
		return []InheritanceCycle{}
	}

	graph := buildInheritanceGraph(p)
	sccs := tarjanSCC(graph)

	cycles := []InheritanceCycle{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// inheritanceGraph maps type name -> direct supertypes.
type inheritanceGraph struct {
	order []string
	edges map[string][]string
}

func buildInheritanceGraph(p *ir.Program) inheritanceGraph {
	g := inheritanceGraph{edges: make(map[string][]string)}
	declared := make(map[string]bool, len(p.Types))
	for _, t := range p.Types {
		declared[t.Name] = true
	}
	for _, t := range p.Types {
		if _, seen := g.edges[t.Name]; seen {
			continue
		}
		g.order = append(g.order, t.Name)
		supers := []string{}
		if t.Extends != "" && declared[t.Extends] {
			supers = append(supers, t.Extends)
		}
		for _, name := range t.Implements {
			if declared[name] {
				supers = append(supers, name)
			}
		}
		g.edges[t.Name] = supers
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, g inheritanceGraph) bool {
	return slices.Contains(g.edges[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in declaration order so results are deterministic.
func tarjanSCC(g inheritanceGraph) [][]string {
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

		for _, w := range g.edges[v] {
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

	for _, node := range g.order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, g inheritanceGraph) InheritanceCycle {
	if len(scc) == 1 {
		name := scc[0]
		return InheritanceCycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("type %s inherits from itself", name),
		}
	}
	path := reconstructCyclePath(scc, g)
	return InheritanceCycle{
		Path:    path,
		Message: fmt.Sprintf("inheritance cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath follows edges inside the SCC from its
// first-declared member until it returns to the start.
func reconstructCyclePath(scc []string, g inheritanceGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}
	start := scc[0]
	for _, name := range g.order {
		if members[name] {
			start = name
			break
		}
	}

	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.edges[current] {
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
