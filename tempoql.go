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

// Package tempoql is the execution engine of the TempoQL time-series
// query language. It takes a compiled operator DAG, runs it over batch or
// streaming sources, and emits (window, aggregate, trend, forecast)
// results in window-end order.
//
// Usage:
//
//	dag, _ := planner.NewDAG([]*planner.Node{
//		planner.NewSourceNode("src", "cpu", planner.ModeStream),
//		planner.NewTumblingWindowNode("win", "src", 5*time.Minute),
//		planner.NewAggregateNode("avg", "win", aggregator.Avg),
//		planner.NewSinkNode("out", "avg"),
//	})
//	engine, _ := tempoql.New(dag)
//	engine.AddSink(func(r collector.Result) { fmt.Println(r.Values["avg"]) })
//	err := engine.RunStream(ctx, source.NewChannelSource("cpu", points))
package tempoql

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tempoql/tempoql/collector"
	"github.com/tempoql/tempoql/forecast"
	"github.com/tempoql/tempoql/logger"
	"github.com/tempoql/tempoql/metrics"
	"github.com/tempoql/tempoql/planner"
	"github.com/tempoql/tempoql/scheduler"
	"github.com/tempoql/tempoql/source"
	"github.com/tempoql/tempoql/types"
)

// ErrAlreadyRun is returned when an engine is run a second time. Window
// state is per-run; compile a new engine per query execution.
var ErrAlreadyRun = errors.New("engine already run")

// Engine executes one compiled query. It owns the query context (config),
// the window state and the result fan-out of a single run.
type Engine struct {
	dag      *planner.DAG
	cfg      types.Config
	log      logger.Logger
	registry *forecast.Registry
	promReg  prometheus.Registerer
	lateSink scheduler.LateSink

	run  string
	met  *metrics.Metrics
	coll *collector.Collector
	pipe *scheduler.Pipeline

	started atomic.Bool
}

// New compiles an engine for a validated DAG. Configuration follows the
// functional options pattern; the defaults are types.DefaultConfig.
func New(dag *planner.DAG, options ...Option) (*Engine, error) {
	if dag == nil {
		return nil, types.NewCompileError("", "nil operator graph")
	}

	e := &Engine{
		dag:      dag,
		cfg:      types.DefaultConfig(),
		log:      logger.GetDefault(),
		registry: forecast.NewRegistry(),
	}
	for _, option := range options {
		option(e)
	}

	if err := e.cfg.Validate(); err != nil {
		return nil, types.NewCompileError("", err.Error())
	}

	e.run = uuid.NewString()
	e.met = metrics.New(e.promReg, e.run)
	e.coll = collector.NewCollector(e.cfg.ResultBufferSize)

	pipe, err := scheduler.NewPipeline(dag, e.cfg, e.log, e.met,
		forecast.NewAdapter(e.registry), e.coll, e.lateSink)
	if err != nil {
		return nil, err
	}
	e.pipe = pipe
	return e, nil
}

// RunID returns the unique identifier of this engine run, also used as
// the metrics label.
func (e *Engine) RunID() string {
	return e.run
}

// AddSink registers a callback receiving every finalized result. Sinks
// must be registered before Run.
func (e *Engine) AddSink(sink collector.Sink) {
	e.coll.AddSink(sink)
}

// Results returns the channel carrying finalized results. Consume it from
// another goroutine while Run blocks; it is closed when the run ends.
func (e *Engine) Results() <-chan collector.Result {
	return e.coll.Results()
}

// RunBatch evaluates the query over finite sources to exhaustion and
// blocks until every window has been emitted.
func (e *Engine) RunBatch(ctx context.Context, sources ...source.BatchSource) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer e.coll.Close()

	runner := scheduler.NewBatchRunner(e.run, e.pipe, e.cfg, e.log)
	e.log.Info("query %s: batch run over %d sources", e.run, len(sources))
	return runner.Run(ctx, sources...)
}

// RunStream evaluates the query over unbounded sources until they end or
// the context is cancelled. Cancellation is cooperative: in-flight windows
// are flushed as partial results or discarded per configuration.
func (e *Engine) RunStream(ctx context.Context, sources ...source.StreamSource) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer e.coll.Close()

	runner := scheduler.NewStreamRunner(e.run, e.pipe, e.cfg, e.log, e.met)
	e.log.Info("query %s: streaming run over %d sources", e.run, len(sources))
	return runner.Run(ctx, sources...)
}

// Watermark returns the current merged watermark of the run.
func (e *Engine) Watermark() time.Time {
	return e.pipe.Watermark()
}

// Stats returns aggregated runtime counters of the run.
func (e *Engine) Stats() map[string]int64 {
	return e.pipe.Stats()
}
