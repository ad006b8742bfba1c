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

package window

import (
	"fmt"
	"time"

	"github.com/tempoql/tempoql/aggregator"
	"github.com/tempoql/tempoql/planner"
	"github.com/tempoql/tempoql/types"
)

// AggregateBinding ties a downstream Aggregate node to the running state
// maintained inside each window instance of its input Window node.
type AggregateBinding struct {
	NodeID string
	Spec   planner.AggregateSpec
}

// Instance is the ephemeral state of one window, keyed by
// (operator id, window start, window end). It is created on first
// assignment, owned exclusively by the executor driving its operator, and
// discarded after emission. Its aggregate state always equals the aggregate
// of exactly the points currently assigned and not yet retracted.
type Instance struct {
	node       string
	slot       types.TimeSlot
	points     []types.DataPoint
	funcs      map[string]aggregator.Function
	lastActive time.Time
	evicted    int64
}

func newInstance(node string, slot types.TimeSlot, bindings []AggregateBinding) (*Instance, error) {
	funcs := make(map[string]aggregator.Function, len(bindings))
	for _, b := range bindings {
		fn, err := aggregator.Create(b.Spec.Type, b.Spec.Percentile)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", b.NodeID, err)
		}
		funcs[b.NodeID] = fn
	}
	return &Instance{
		node:  node,
		slot:  slot,
		funcs: funcs,
	}, nil
}

// add incorporates a point into the buffered contents and every running
// aggregate.
func (in *Instance) add(p types.DataPoint) {
	in.points = append(in.points, p)
	for _, fn := range in.funcs {
		fn.Add(p.Value)
	}
	if p.Timestamp.After(in.lastActive) {
		in.lastActive = p.Timestamp
	}
}

// evictOldest retracts the contribution of the oldest buffered point,
// symmetrically to how it was added.
func (in *Instance) evictOldest() error {
	if len(in.points) == 0 {
		return fmt.Errorf("evict on empty window %s", in.slot)
	}
	oldest := in.points[0]
	for id, fn := range in.funcs {
		if err := fn.Retract(oldest.Value); err != nil {
			return fmt.Errorf("retract from aggregate %s: %w", id, err)
		}
	}
	in.points = in.points[1:]
	in.evicted++
	return nil
}

// Len returns the number of buffered points.
func (in *Instance) Len() int {
	return len(in.points)
}

// Slot returns the instance's half-open interval.
func (in *Instance) Slot() types.TimeSlot {
	return in.slot
}

// Closed is the finalized output of a window instance handed to downstream
// operators on closure. Once produced it is immutable.
type Closed struct {
	// Node is the window operator that owned the instance
	Node string
	// Slot is the window's half-open interval
	Slot types.TimeSlot
	// Points are the buffered contents, in arrival order
	Points []types.DataPoint
	// Aggregates maps downstream aggregate node IDs to finalized values
	Aggregates map[string]float64
	// Evicted counts points removed by the window memory bound
	Evicted int64
	// Partial marks a window flushed by cancellation before its natural
	// closure
	Partial bool
}

// finalize snapshots the instance into an immutable closure record.
func (in *Instance) finalize(partial bool) Closed {
	aggregates := make(map[string]float64, len(in.funcs))
	for id, fn := range in.funcs {
		aggregates[id] = fn.Result()
	}
	return Closed{
		Node:       in.node,
		Slot:       in.slot,
		Points:     in.points,
		Aggregates: aggregates,
		Evicted:    in.evicted,
		Partial:    partial,
	}
}
