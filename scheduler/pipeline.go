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

// Package scheduler drives query execution: batch pulls a finite source to
// exhaustion, streaming merges producer buffers and reacts to watermark
// ticks. Both modes share one Pipeline so window, aggregate, trend and
// forecast semantics are identical between them.
package scheduler

import (
	"context"
	"time"

	"github.com/tempoql/tempoql/collector"
	"github.com/tempoql/tempoql/condition"
	"github.com/tempoql/tempoql/forecast"
	"github.com/tempoql/tempoql/logger"
	"github.com/tempoql/tempoql/metrics"
	"github.com/tempoql/tempoql/planner"
	"github.com/tempoql/tempoql/types"
	"github.com/tempoql/tempoql/window"
)

// LateSink receives points diverted by the side-output late-data policy.
type LateSink func(types.DataPoint, *types.EngineError)

// route is the precomputed path from a stream to one window operator: the
// filter chain in front of it and the trend/forecast nodes behind it.
type route struct {
	manager   *window.Manager
	filters   []condition.Condition
	outputs   map[string]string // aggregate node ID -> output name
	trends    []*planner.Node
	forecasts []*planner.Node
	// clip suppresses windows not fully inside the resolved batch range
	clip *types.TimeRange
}

// Pipeline owns the window state of one query run. It is driven by a
// single executor at a time; only the collector side is safe to consume
// concurrently.
type Pipeline struct {
	dag     *planner.DAG
	cfg     types.Config
	log     logger.Logger
	met     *metrics.Metrics
	adapter *forecast.Adapter
	tracker *window.Tracker
	coll    *collector.Collector

	routes map[string][]*route
	late   LateSink
}

// NewPipeline compiles the execution plan for a validated DAG. Unknown
// forecast model kinds and unroutable windows are rejected here, before
// any point flows.
func NewPipeline(dag *planner.DAG, cfg types.Config, log logger.Logger, met *metrics.Metrics, adapter *forecast.Adapter, coll *collector.Collector, late LateSink) (*Pipeline, error) {
	if log == nil {
		log = logger.GetDefault()
	}
	if met == nil {
		met = metrics.New(nil, "default")
	}
	p := &Pipeline{
		dag:     dag,
		cfg:     cfg,
		log:     log,
		met:     met,
		adapter: adapter,
		tracker: window.NewTracker(cfg.LatenessTolerance, cfg.IdleTimeout),
		coll:    coll,
		routes:  make(map[string][]*route),
		late:    late,
	}
	if err := p.buildRoutes(); err != nil {
		return nil, err
	}
	// Every stream is declared before the first point flows, so a fast
	// stream cannot advance the watermark past a slower one that has not
	// produced yet.
	now := time.Now()
	for streamID := range p.routes {
		p.tracker.Register(streamID, now)
	}
	return p, nil
}

// buildRoutes walks every window operator back to its source and forward
// to its aggregate, trend and forecast consumers.
func (p *Pipeline) buildRoutes() error {
	for _, node := range p.dag.Nodes() {
		if node.Kind != planner.KindWindow {
			continue
		}

		rt := &route{outputs: make(map[string]string)}

		// Upstream: a chain of filters ending at a source.
		var bindings []window.AggregateBinding
		input := node.Inputs[0]
		for {
			upstream, ok := p.dag.Node(input)
			if !ok {
				return types.NewCompileError(node.ID, "dangling input "+input)
			}
			if upstream.Kind == planner.KindFilter {
				rt.filters = append([]condition.Condition{upstream.Filter.Condition()}, rt.filters...)
				input = upstream.Inputs[0]
				continue
			}
			if upstream.Kind != planner.KindSource {
				return types.NewCompileError(node.ID,
					"window must be fed by a source, optionally through filters, got "+upstream.Kind.String())
			}
			if upstream.Source.Range != nil {
				rt.clip = &types.TimeRange{
					Start: upstream.Source.Range.Start,
					End:   upstream.Source.Range.End,
					Unit:  upstream.Source.Range.Unit,
				}
			}
			p.routes[upstream.Source.StreamID] = append(p.routes[upstream.Source.StreamID], rt)
			break
		}

		// Downstream: consumers firing on closure.
		for _, id := range p.dag.Downstream(node.ID) {
			downstream, _ := p.dag.Node(id)
			switch downstream.Kind {
			case planner.KindAggregate:
				bindings = append(bindings, window.AggregateBinding{
					NodeID: downstream.ID,
					Spec:   *downstream.Aggregate,
				})
				name := downstream.Aggregate.OutputName
				if name == "" {
					name = string(downstream.Aggregate.Type)
				}
				rt.outputs[downstream.ID] = name
			case planner.KindTrend:
				rt.trends = append(rt.trends, downstream)
			case planner.KindForecast:
				rt.forecasts = append(rt.forecasts, downstream)
				if err := p.adapter.ResolveKind(downstream.ID, downstream.Forecast.ModelKind); err != nil {
					return err
				}
			}
		}

		rt.manager = window.NewManager(node, window.ManagerOptions{
			Bindings:       bindings,
			MaxPoints:      p.cfg.MaxWindowPoints,
			OverflowPolicy: p.cfg.WindowOverflowPolicy,
			LatePolicy:     types.LateSideOutput,
			OnLate:         p.onLate,
			OnOverflow:     p.onOverflow,
		})
	}
	return nil
}

// onLate applies the configured late-data policy. The managers always
// divert through here so every late point is counted.
func (p *Pipeline) onLate(pt types.DataPoint, err *types.EngineError) {
	p.met.LateDropped.Inc()
	p.log.Debug("%s", err.Error())
	if p.cfg.LatePolicy == types.LateSideOutput && p.late != nil {
		p.late(pt, err)
	}
}

func (p *Pipeline) onOverflow(err *types.EngineError) {
	p.met.WindowEvictions.Inc()
	p.log.Warn("%s", err.Error())
}

// Ingest routes one point through its filters into every open window it
// belongs to, then closes whatever the advanced watermark allows. The
// returned error is fatal for the query.
func (p *Pipeline) Ingest(ctx context.Context, pt types.DataPoint) error {
	p.met.PointsIngested.Inc()
	watermark := p.tracker.Observe(pt.StreamID, pt.Timestamp, time.Now())

	env := pt.Env()
	for _, rt := range p.routes[pt.StreamID] {
		accepted := true
		for _, cond := range rt.filters {
			if !cond.Evaluate(env) {
				accepted = false
				break
			}
		}
		if !accepted {
			p.met.PointsFiltered.Inc()
			continue
		}
		if err := rt.manager.Add(pt, watermark); err != nil {
			return err
		}
	}

	p.closeDue(ctx, watermark)
	return nil
}

// Tick advances time-driven closure: idle streams are excluded from the
// merged watermark so a stalled source cannot hold windows open forever.
func (p *Pipeline) Tick(ctx context.Context, now time.Time) {
	p.closeDue(ctx, p.tracker.AdvanceIdle(now))
}

// RemoveStream drops a finished stream from watermark tracking and closes
// whatever its absence unblocks.
func (p *Pipeline) RemoveStream(ctx context.Context, id string, now time.Time) {
	p.closeDue(ctx, p.tracker.Remove(id, now))
}

// closeDue finalizes every window the watermark has passed and releases
// results in window-end order.
func (p *Pipeline) closeDue(ctx context.Context, watermark time.Time) {
	if watermark.IsZero() {
		return
	}
	for _, routes := range p.routes {
		for _, rt := range routes {
			for _, closed := range rt.manager.OnWatermark(watermark) {
				p.emit(ctx, rt, closed)
			}
		}
	}
	p.coll.Flush(watermark)
	p.met.OpenWindows.Set(float64(p.openWindows()))
}

// CloseAll finalizes every open window: end-of-batch closure, or a
// cancellation flush when partial is true.
func (p *Pipeline) CloseAll(ctx context.Context, partial bool) {
	for _, routes := range p.routes {
		for _, rt := range routes {
			for _, closed := range rt.manager.CloseAll(partial) {
				p.emit(ctx, rt, closed)
			}
		}
	}
	p.coll.FlushAll()
	p.met.OpenWindows.Set(0)
}

// Discard drops all open window state without emission.
func (p *Pipeline) Discard() {
	discarded := 0
	for _, routes := range p.routes {
		for _, rt := range routes {
			discarded += rt.manager.Discard()
		}
	}
	if discarded > 0 {
		p.log.Info("discarded %d open windows on shutdown", discarded)
	}
	p.met.OpenWindows.Set(0)
}

// emit turns one closed window into a collector result, firing the trend
// and forecast consumers bound to its operator.
func (p *Pipeline) emit(ctx context.Context, rt *route, closed window.Closed) {
	if rt.clip != nil && !p.insideClip(rt.clip, closed.Slot) {
		// Batch evaluation over a resolved range emits only windows fully
		// inside it; edge windows are incomplete by construction.
		return
	}

	result := collector.Result{
		Node:    closed.Node,
		Window:  closed.Slot,
		Points:  len(closed.Points),
		Evicted: closed.Evicted,
		Partial: closed.Partial,
	}

	if len(closed.Aggregates) > 0 {
		result.Values = make(map[string]float64, len(closed.Aggregates))
		for nodeID, value := range closed.Aggregates {
			result.Values[rt.outputs[nodeID]] = value
		}
	}

	for _, node := range rt.trends {
		if result.Trends == nil {
			result.Trends = make(map[string]forecast.TrendResult, len(rt.trends))
		}
		tr := p.adapter.FitTrend(node.ID, closed.Points)
		if tr.Unavailable() {
			p.met.ForecastFailures.Inc()
			p.log.Warn("%s", tr.Err.Error())
		}
		result.Trends[node.ID] = tr
	}

	for _, node := range rt.forecasts {
		if result.Forecasts == nil {
			result.Forecasts = make(map[string]forecast.Result, len(rt.forecasts))
		}
		fr := p.adapter.Invoke(ctx, node.ID, node.Forecast, closed.Points, time.Now())
		if fr.Unavailable() {
			p.met.ForecastFailures.Inc()
			p.log.Warn("%s", fr.Err.Error())
		}
		result.Forecasts[node.ID] = fr
	}

	p.met.WindowsClosed.Inc()
	p.coll.Emit(result)
}

func (p *Pipeline) insideClip(clip *types.TimeRange, slot types.TimeSlot) bool {
	if !clip.Start.IsZero() && slot.Start.Before(clip.Start) {
		return false
	}
	if !clip.End.IsZero() && slot.End.After(clip.End) {
		return false
	}
	return true
}

func (p *Pipeline) openWindows() int {
	n := 0
	for _, routes := range p.routes {
		for _, rt := range routes {
			n += rt.manager.OpenWindows()
		}
	}
	return n
}

// Watermark returns the current merged watermark.
func (p *Pipeline) Watermark() time.Time {
	return p.tracker.Current()
}

// Stats aggregates runtime counters across all window operators.
func (p *Pipeline) Stats() map[string]int64 {
	stats := map[string]int64{}
	for _, routes := range p.routes {
		for _, rt := range routes {
			for k, v := range rt.manager.Stats() {
				stats[k] += v
			}
		}
	}
	for k, v := range p.coll.Stats() {
		stats["results_"+k] += v
	}
	return stats
}
