// Package dag builds and validates the dependency graph that backs the
// Workflow Engine (C9): topological layering of a WorkflowTemplate's tasks,
// with cycle rejection per spec.md §4.9 step 2. Pure and side-effect-free;
// grounded on the teacher's registry package's read-mostly arena style
// (stable indices, no mutation after construction) rather than any one
// teacher scheduler, since the teacher has no DAG scheduler of its own.
package dag

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned by Build when the dependency graph contains a cycle.
var ErrCycle = errors.New("dag: dependency graph contains a cycle")

// Node is one schedulable unit: a name and the names of the tasks it
// depends on.
type Node struct {
	Name         string
	Dependencies []string
}

// Graph is a validated, acyclic dependency graph over a fixed node set.
type Graph struct {
	nodes   map[string]Node
	order   []string // insertion order, for deterministic iteration
	layers  [][]string
}

// Build constructs a Graph from nodes, rejecting unknown dependency
// references and cycles. The returned Graph's Layers are topologically
// sorted: every node in layer i depends only on nodes in layers < i.
func Build(nodes []Node) (*Graph, error) {
	g := &Graph{nodes: make(map[string]Node, len(nodes))}
	for _, n := range nodes {
		if _, dup := g.nodes[n.Name]; dup {
			return nil, fmt.Errorf("dag: duplicate task name %q", n.Name)
		}
		g.nodes[n.Name] = n
		g.order = append(g.order, n.Name)
	}
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("dag: task %q depends on unknown task %q", n.Name, dep)
			}
		}
	}

	layers, err := layer(g.nodes, g.order)
	if err != nil {
		return nil, err
	}
	g.layers = layers
	return g, nil
}

// layer computes Kahn's-algorithm topological layers: each pass peels off
// every node whose dependencies have already been assigned a layer. A pass
// that peels off nothing while nodes remain means a cycle.
func layer(nodes map[string]Node, order []string) ([][]string, error) {
	remaining := make(map[string]bool, len(nodes))
	for name := range nodes {
		remaining[name] = true
	}

	var layers [][]string
	for len(remaining) > 0 {
		var ready []string
		for _, name := range order {
			if !remaining[name] {
				continue
			}
			if allSatisfied(nodes[name].Dependencies, remaining) {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			return nil, ErrCycle
		}
		sort.Strings(ready)
		for _, name := range ready {
			delete(remaining, name)
		}
		layers = append(layers, ready)
	}
	return layers, nil
}

func allSatisfied(deps []string, remaining map[string]bool) bool {
	for _, d := range deps {
		if remaining[d] {
			return false
		}
	}
	return true
}

// Layers returns the topologically sorted layers: tasks within a layer have
// no dependency relationship between them and may run concurrently; a
// layer never starts before every task in every prior layer has reached a
// terminal state (spec.md §8 P4).
func (g *Graph) Layers() [][]string {
	out := make([][]string, len(g.layers))
	for i, l := range g.layers {
		out[i] = append([]string(nil), l...)
	}
	return out
}

// Dependencies returns the declared dependency names for a task.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.nodes[name].Dependencies...)
}

// Dependents returns every task name that directly depends on name.
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, n := range g.order {
		for _, d := range g.nodes[n].Dependencies {
			if d == name {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// Names returns every node name in insertion order.
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// Len reports the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }
