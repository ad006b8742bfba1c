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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoql/tempoql/aggregator"
	"github.com/tempoql/tempoql/types"
)

func validNodes() []*Node {
	return []*Node{
		NewSourceNode("src", "metrics", ModeBatch),
		NewFilterNode("flt", "src", "value > 0"),
		NewTumblingWindowNode("win", "flt", 5*time.Minute),
		NewAggregateNode("agg", "win", aggregator.Avg),
		NewForecastNode("fc", "win", "naive", 7),
		NewSinkNode("out", "agg", "fc"),
	}
}

func TestNewDAGValid(t *testing.T) {
	dag, err := NewDAG(validNodes())
	require.NoError(t, err)
	assert.Equal(t, 6, dag.Len())

	order := dag.Order()
	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}
	// Every edge goes forward in topological order.
	for _, n := range dag.Nodes() {
		for _, in := range n.Inputs {
			assert.Less(t, position[in], position[n.ID], "%s must precede %s", in, n.ID)
		}
	}
}

func TestNewDAGCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		nodes []*Node
	}{
		{"empty graph", nil},
		{"duplicate id", []*Node{
			NewSourceNode("a", "s", ModeBatch),
			NewSourceNode("a", "s2", ModeBatch),
		}},
		{"dangling input", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			NewFilterNode("flt", "ghost", "value > 0"),
		}},
		{"cycle", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			{ID: "a", Kind: KindFilter, Inputs: []string{"b"}, Filter: &FilterSpec{Predicate: "value > 0"}},
			{ID: "b", Kind: KindFilter, Inputs: []string{"a"}, Filter: &FilterSpec{Predicate: "value > 0"}},
		}},
		{"zero window size", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			NewTumblingWindowNode("win", "src", 0),
		}},
		{"slide exceeds size", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			NewSlidingWindowNode("win", "src", time.Minute, 2*time.Minute),
		}},
		{"zero session gap", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			NewSessionWindowNode("win", "src", 0),
		}},
		{"bad predicate", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			NewFilterNode("flt", "src", "((("),
		}},
		{"zero horizon", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			NewTumblingWindowNode("win", "src", time.Minute),
			NewForecastNode("fc", "win", "naive", 0),
		}},
		{"sink without inputs", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			NewSinkNode("out"),
		}},
		{"source with input", []*Node{
			NewSourceNode("src", "s", ModeBatch),
			{ID: "src2", Kind: KindSource, Inputs: []string{"src"}, Source: &SourceSpec{StreamID: "s2", Mode: ModeBatch}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDAG(tt.nodes)
			require.Error(t, err)
			ee, ok := types.AsEngineError(err)
			require.True(t, ok, "expected a structured engine error")
			assert.Equal(t, types.KindCompile, ee.Kind)
			assert.True(t, ee.Fatal())
		})
	}
}

func TestFilterPredicateCompiledOnce(t *testing.T) {
	dag, err := NewDAG(validNodes())
	require.NoError(t, err)

	n, ok := dag.Node("flt")
	require.True(t, ok)
	cond := n.Filter.Condition()
	require.NotNil(t, cond)
	assert.True(t, cond.Evaluate(map[string]interface{}{"value": 1.0}))
	assert.False(t, cond.Evaluate(map[string]interface{}{"value": -1.0}))
}

func TestDownstreamDeterministic(t *testing.T) {
	dag, err := NewDAG(validNodes())
	require.NoError(t, err)

	assert.Equal(t, []string{"agg", "fc"}, dag.Downstream("win"))
	assert.Empty(t, dag.Downstream("out"))
}

func TestSourceLookup(t *testing.T) {
	dag, err := NewDAG(validNodes())
	require.NoError(t, err)

	sources := dag.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, "src", sources[0].ID)

	n, ok := dag.SourceFor("metrics")
	require.True(t, ok)
	assert.Equal(t, "src", n.ID)

	_, ok = dag.SourceFor("nope")
	assert.False(t, ok)
}
