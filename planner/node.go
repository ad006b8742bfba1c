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

// Package planner holds the operator DAG: the compiled, type-checked,
// immutable intermediate representation every other component operates on.
// The engine receives an already-validated graph from the (external)
// compiler; this package re-checks structural invariants defensively and
// exposes traversal only, never mutation.
package planner

import (
	"time"

	"github.com/tempoql/tempoql/aggregator"
	"github.com/tempoql/tempoql/condition"
)

// Kind is the operator variant of a node.
type Kind int

const (
	KindSource Kind = iota
	KindFilter
	KindWindow
	KindAggregate
	KindTrend
	KindForecast
	KindSink
)

// String returns the operator name.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindFilter:
		return "filter"
	case KindWindow:
		return "window"
	case KindAggregate:
		return "aggregate"
	case KindTrend:
		return "trend"
	case KindForecast:
		return "forecast"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// SourceMode distinguishes finite and unbounded sources.
type SourceMode string

const (
	ModeBatch  SourceMode = "batch"
	ModeStream SourceMode = "stream"
)

// WindowKind selects the windowing discipline.
type WindowKind string

const (
	WindowTumbling WindowKind = "tumbling"
	WindowSliding  WindowKind = "sliding"
	WindowSession  WindowKind = "session"
)

// SourceSpec parameterizes a Source node.
type SourceSpec struct {
	// StreamID ties the node to an ingestion stream identity
	StreamID string
	Mode     SourceMode
	// Range restricts batch evaluation to a resolved interval; zero means
	// the whole dataset (streams ignore it)
	Range *RangeSpec
}

// RangeSpec is the resolved-time-range parameter of a batch source.
type RangeSpec struct {
	Start time.Time
	End   time.Time
	Unit  time.Duration
}

// FilterSpec parameterizes a Filter node. The predicate is compiled once
// when the DAG is built.
type FilterSpec struct {
	Predicate string
	// compiled is populated by NewDAG
	compiled condition.Condition
}

// Condition returns the compiled predicate.
func (f *FilterSpec) Condition() condition.Condition {
	return f.compiled
}

// WindowSpec parameterizes a Window node. Size must be positive; sliding
// windows require 0 < Slide <= Size; session windows require a positive Gap.
type WindowSpec struct {
	Kind  WindowKind
	Size  time.Duration
	Slide time.Duration
	Gap   time.Duration
}

// AggregateSpec parameterizes an Aggregate node.
type AggregateSpec struct {
	Type aggregator.AggregateType
	// Percentile is only consulted for the percentile aggregate
	Percentile float64
	// OutputName labels the value in emitted results; defaults to the
	// aggregate type name
	OutputName string
}

// ForecastSpec parameterizes Trend and Forecast nodes. The model kind is
// resolved against the forecaster registry when execution starts, never by
// runtime type inspection.
type ForecastSpec struct {
	ModelKind string
	Horizon   int
	Params    map[string]interface{}
	// MinRetrainInterval throttles model refits during streaming; zero
	// retrains on every window closure
	MinRetrainInterval time.Duration
}

// Node is one typed operator in the DAG. Nodes are immutable once the DAG
// is built; all mutable state lives in window instances and stream cursors.
type Node struct {
	ID     string
	Kind   Kind
	Inputs []string

	Source    *SourceSpec
	Filter    *FilterSpec
	Window    *WindowSpec
	Aggregate *AggregateSpec
	Forecast  *ForecastSpec
}

// NewSourceNode builds a Source node.
func NewSourceNode(id, streamID string, mode SourceMode) *Node {
	return &Node{ID: id, Kind: KindSource, Source: &SourceSpec{StreamID: streamID, Mode: mode}}
}

// NewFilterNode builds a Filter node over one input.
func NewFilterNode(id, input, predicate string) *Node {
	return &Node{ID: id, Kind: KindFilter, Inputs: []string{input}, Filter: &FilterSpec{Predicate: predicate}}
}

// NewTumblingWindowNode builds a tumbling Window node.
func NewTumblingWindowNode(id, input string, size time.Duration) *Node {
	return &Node{ID: id, Kind: KindWindow, Inputs: []string{input},
		Window: &WindowSpec{Kind: WindowTumbling, Size: size}}
}

// NewSlidingWindowNode builds a sliding Window node.
func NewSlidingWindowNode(id, input string, size, slide time.Duration) *Node {
	return &Node{ID: id, Kind: KindWindow, Inputs: []string{input},
		Window: &WindowSpec{Kind: WindowSliding, Size: size, Slide: slide}}
}

// NewSessionWindowNode builds a gap-based session Window node.
func NewSessionWindowNode(id, input string, gap time.Duration) *Node {
	return &Node{ID: id, Kind: KindWindow, Inputs: []string{input},
		Window: &WindowSpec{Kind: WindowSession, Gap: gap}}
}

// NewAggregateNode builds an Aggregate node over a window input.
func NewAggregateNode(id, input string, aggType aggregator.AggregateType) *Node {
	return &Node{ID: id, Kind: KindAggregate, Inputs: []string{input},
		Aggregate: &AggregateSpec{Type: aggType, OutputName: string(aggType)}}
}

// NewPercentileNode builds a percentile Aggregate node.
func NewPercentileNode(id, input string, p float64) *Node {
	return &Node{ID: id, Kind: KindAggregate, Inputs: []string{input},
		Aggregate: &AggregateSpec{Type: aggregator.Percentile, Percentile: p, OutputName: "percentile"}}
}

// NewTrendNode builds a Trend node over a window input.
func NewTrendNode(id, input string) *Node {
	return &Node{ID: id, Kind: KindTrend, Inputs: []string{input},
		Forecast: &ForecastSpec{ModelKind: "linear"}}
}

// NewForecastNode builds a Forecast node over a window input.
func NewForecastNode(id, input, modelKind string, horizon int) *Node {
	return &Node{ID: id, Kind: KindForecast, Inputs: []string{input},
		Forecast: &ForecastSpec{ModelKind: modelKind, Horizon: horizon}}
}

// NewSinkNode builds a Sink node collecting one or more result inputs.
func NewSinkNode(id string, inputs ...string) *Node {
	return &Node{ID: id, Kind: KindSink, Inputs: inputs}
}
