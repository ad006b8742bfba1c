/*
 * Copyright 2025 The TempoQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package planner

import (
	"fmt"
	"sort"

	"github.com/tempoql/tempoql/condition"
	"github.com/tempoql/tempoql/types"
)

// DAG is a compiled, immutable operator graph. Construction validates the
// structural invariants (acyclicity, no dangling references, parameter
// sanity) and compiles filter predicates; afterwards the graph only offers
// traversal.
type DAG struct {
	nodes    map[string]*Node
	order    []string
	children map[string][]string
}

// NewDAG validates the node set and builds the graph. Violations return a
// fatal CompileError: the engine refuses to execute a graph failing the
// sanity check.
func NewDAG(nodes []*Node) (*DAG, error) {
	if len(nodes) == 0 {
		return nil, types.NewCompileError("", "empty operator graph")
	}

	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, types.NewCompileError("", "node with empty identifier")
		}
		if _, dup := byID[n.ID]; dup {
			return nil, types.NewCompileError(n.ID, "duplicate node identifier")
		}
		byID[n.ID] = n
	}

	children := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		for _, in := range n.Inputs {
			if _, ok := byID[in]; !ok {
				return nil, types.NewCompileError(n.ID, fmt.Sprintf("dangling input reference %q", in))
			}
			children[in] = append(children[in], n.ID)
		}
	}
	// Deterministic downstream order regardless of node list order.
	for _, out := range children {
		sort.Strings(out)
	}

	for _, n := range nodes {
		if err := validateNode(n); err != nil {
			return nil, err
		}
	}

	order, err := topologicalOrder(byID, children)
	if err != nil {
		return nil, err
	}

	return &DAG{nodes: byID, order: order, children: children}, nil
}

// validateNode checks variant-specific parameters and compiles predicates.
func validateNode(n *Node) error {
	switch n.Kind {
	case KindSource:
		if len(n.Inputs) != 0 {
			return types.NewCompileError(n.ID, "source node must not have inputs")
		}
		if n.Source == nil || n.Source.StreamID == "" {
			return types.NewCompileError(n.ID, "source node requires a stream identity")
		}
		if n.Source.Mode != ModeBatch && n.Source.Mode != ModeStream {
			return types.NewCompileError(n.ID, fmt.Sprintf("unknown source mode %q", n.Source.Mode))
		}
		if r := n.Source.Range; r != nil && !r.Start.Before(r.End) {
			return types.NewCompileError(n.ID, "source range start must precede end")
		}
	case KindFilter:
		if len(n.Inputs) != 1 {
			return types.NewCompileError(n.ID, "filter node requires exactly one input")
		}
		if n.Filter == nil || n.Filter.Predicate == "" {
			return types.NewCompileError(n.ID, "filter node requires a predicate")
		}
		compiled, err := condition.New(n.Filter.Predicate)
		if err != nil {
			return types.NewCompileError(n.ID, fmt.Sprintf("invalid predicate: %v", err))
		}
		n.Filter.compiled = compiled
	case KindWindow:
		if len(n.Inputs) != 1 {
			return types.NewCompileError(n.ID, "window node requires exactly one input")
		}
		w := n.Window
		if w == nil {
			return types.NewCompileError(n.ID, "window node requires parameters")
		}
		switch w.Kind {
		case WindowTumbling:
			if w.Size <= 0 {
				return types.NewCompileError(n.ID, "tumbling window size must be positive")
			}
		case WindowSliding:
			if w.Size <= 0 {
				return types.NewCompileError(n.ID, "sliding window size must be positive")
			}
			if w.Slide <= 0 || w.Slide > w.Size {
				return types.NewCompileError(n.ID, "sliding window requires 0 < slide <= size")
			}
		case WindowSession:
			if w.Gap <= 0 {
				return types.NewCompileError(n.ID, "session window gap must be positive")
			}
		default:
			return types.NewCompileError(n.ID, fmt.Sprintf("unknown window kind %q", w.Kind))
		}
	case KindAggregate:
		if len(n.Inputs) != 1 {
			return types.NewCompileError(n.ID, "aggregate node requires exactly one input")
		}
		if n.Aggregate == nil || n.Aggregate.Type == "" {
			return types.NewCompileError(n.ID, "aggregate node requires an aggregate type")
		}
	case KindTrend, KindForecast:
		if len(n.Inputs) != 1 {
			return types.NewCompileError(n.ID, "forecast node requires exactly one input")
		}
		if n.Forecast == nil || n.Forecast.ModelKind == "" {
			return types.NewCompileError(n.ID, "forecast node requires a model kind")
		}
		if n.Kind == KindForecast && n.Forecast.Horizon <= 0 {
			return types.NewCompileError(n.ID, "forecast horizon must be positive")
		}
	case KindSink:
		if len(n.Inputs) == 0 {
			return types.NewCompileError(n.ID, "sink node requires at least one input")
		}
	default:
		return types.NewCompileError(n.ID, "unknown operator kind")
	}
	return nil
}

// topologicalOrder runs Kahn's algorithm; a leftover node means a cycle.
func topologicalOrder(nodes map[string]*Node, children map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		indegree[n.ID] = len(n.Inputs)
	}

	var frontier []string
	for id, d := range indegree {
		if d == 0 {
			frontier = append(frontier, id)
		}
	}
	sort.Strings(frontier)

	order := make([]string, 0, len(nodes))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		order = append(order, id)

		next := make([]string, 0)
		for _, child := range children[id] {
			indegree[child]--
			if indegree[child] == 0 {
				next = append(next, child)
			}
		}
		sort.Strings(next)
		frontier = append(frontier, next...)
	}

	if len(order) != len(nodes) {
		for id, d := range indegree {
			if d > 0 {
				return nil, types.NewCompileError(id, "cycle detected in operator graph")
			}
		}
		return nil, types.NewCompileError("", "cycle detected in operator graph")
	}
	return order, nil
}

// Node returns the node with the given identifier.
func (d *DAG) Node(id string) (*Node, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// Order returns node identifiers in topological order.
func (d *DAG) Order() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Nodes returns the nodes in topological order.
func (d *DAG) Nodes() []*Node {
	out := make([]*Node, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id])
	}
	return out
}

// Downstream returns the identifiers of nodes consuming id's output, in
// deterministic order.
func (d *DAG) Downstream(id string) []string {
	out := make([]string, len(d.children[id]))
	copy(out, d.children[id])
	return out
}

// Sources returns the Source nodes in topological order.
func (d *DAG) Sources() []*Node {
	var out []*Node
	for _, id := range d.order {
		if n := d.nodes[id]; n.Kind == KindSource {
			out = append(out, n)
		}
	}
	return out
}

// SourceFor resolves the Source node feeding the given stream identity.
func (d *DAG) SourceFor(streamID string) (*Node, bool) {
	for _, n := range d.Sources() {
		if n.Source.StreamID == streamID {
			return n, true
		}
	}
	return nil, false
}

// Len returns the node count.
func (d *DAG) Len() int {
	return len(d.nodes)
}
