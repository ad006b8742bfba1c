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

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoql/tempoql/aggregator"
	"github.com/tempoql/tempoql/collector"
	"github.com/tempoql/tempoql/forecast"
	"github.com/tempoql/tempoql/logger"
	"github.com/tempoql/tempoql/metrics"
	"github.com/tempoql/tempoql/planner"
	"github.com/tempoql/tempoql/types"
)

type capture struct {
	results []collector.Result
	late    []types.DataPoint
}

func (c *capture) sink(r collector.Result) {
	c.results = append(c.results, r)
}

func (c *capture) lateSink(p types.DataPoint, _ *types.EngineError) {
	c.late = append(c.late, p)
}

func newTestPipeline(t *testing.T, nodes []*planner.Node, cfg types.Config) (*Pipeline, *capture) {
	t.Helper()
	dag, err := planner.NewDAG(nodes)
	require.NoError(t, err)

	cap := &capture{}
	coll := collector.NewCollector(cfg.ResultBufferSize)
	coll.AddSink(cap.sink)

	pipe, err := NewPipeline(dag, cfg, logger.NewDiscardLogger(),
		metrics.New(nil, "test"), forecast.NewAdapter(forecast.NewRegistry()), coll, cap.lateSink)
	require.NoError(t, err)
	return pipe, cap
}

func metricsForTest() *metrics.Metrics {
	return metrics.New(nil, "test")
}

func streamPoint(sec int64, value float64) types.DataPoint {
	return types.DataPoint{Timestamp: time.Unix(sec, 0).UTC(), Value: value, StreamID: "s1"}
}

func TestPipelineFilterGatesWindowInput(t *testing.T) {
	nodes := []*planner.Node{
		planner.NewSourceNode("src", "s1", planner.ModeStream),
		planner.NewFilterNode("flt", "src", "value > 10"),
		planner.NewTumblingWindowNode("win", "flt", time.Minute),
		planner.NewAggregateNode("agg", "win", aggregator.Avg),
		planner.NewSinkNode("out", "agg"),
	}
	pipe, cap := newTestPipeline(t, nodes, types.DefaultConfig())
	ctx := context.Background()

	require.NoError(t, pipe.Ingest(ctx, streamPoint(5, 3)))   // filtered out
	require.NoError(t, pipe.Ingest(ctx, streamPoint(10, 20))) // accepted
	require.NoError(t, pipe.Ingest(ctx, streamPoint(20, 40))) // accepted

	// A point past the window end advances the watermark and closes it.
	require.NoError(t, pipe.Ingest(ctx, streamPoint(120, 50)))

	require.Len(t, cap.results, 1)
	r := cap.results[0]
	assert.Equal(t, time.Unix(0, 0).UTC(), r.Window.Start)
	assert.Equal(t, time.Unix(60, 0).UTC(), r.Window.End)
	assert.Equal(t, 2, r.Points)
	assert.InDelta(t, 30.0, r.Values["avg"], 1e-9)
}

func TestPipelineTrendAndForecastFireOnClosure(t *testing.T) {
	win := planner.NewTumblingWindowNode("win", "src", time.Minute)
	nodes := []*planner.Node{
		planner.NewSourceNode("src", "s1", planner.ModeStream),
		win,
		planner.NewTrendNode("trend", "win"),
		planner.NewForecastNode("fc", "win", "naive", 3),
		planner.NewSinkNode("out", "trend", "fc"),
	}
	pipe, cap := newTestPipeline(t, nodes, types.DefaultConfig())
	ctx := context.Background()

	// value = timestamp / 10 inside [0, 60).
	for i := int64(0); i < 6; i++ {
		require.NoError(t, pipe.Ingest(ctx, streamPoint(i*10, float64(i))))
	}
	require.NoError(t, pipe.Ingest(ctx, streamPoint(120, 0)))

	require.Len(t, cap.results, 1)
	r := cap.results[0]

	tr, ok := r.Trends["trend"]
	require.True(t, ok)
	require.False(t, tr.Unavailable())
	assert.InDelta(t, 0.1, tr.Trend.Slope, 1e-9)

	fr, ok := r.Forecasts["fc"]
	require.True(t, ok)
	require.False(t, fr.Unavailable())
	require.Len(t, fr.Points, 3)
	for _, p := range fr.Points {
		assert.Equal(t, 5.0, p.Value)
	}
}

func TestPipelineSlowStreamBoundsClosure(t *testing.T) {
	pipe, cap := newTestPipeline(t, twoStreamNodes(), types.DefaultConfig())
	ctx := context.Background()

	// The fast stream races far ahead before the slow one produces at all;
	// the slow stream's earliest points must still build their windows.
	fast := types.DataPoint{Timestamp: time.Unix(1000, 0).UTC(), Value: 1, StreamID: "s1"}
	require.NoError(t, pipe.Ingest(ctx, fast))
	require.Empty(t, cap.results, "watermark holds until every stream produces")

	slow := types.DataPoint{Timestamp: time.Unix(5, 0).UTC(), Value: 7, StreamID: "s2"}
	require.NoError(t, pipe.Ingest(ctx, slow))
	require.Empty(t, cap.late)

	pipe.CloseAll(ctx, false)
	sums := map[string]float64{}
	for _, r := range cap.results {
		sums[r.Node] = r.Values["sum"]
	}
	assert.Equal(t, 1.0, sums["win1"])
	assert.Equal(t, 7.0, sums["win2"])
}

func TestPipelineLatePointSideOutput(t *testing.T) {
	nodes := []*planner.Node{
		planner.NewSourceNode("src", "s1", planner.ModeStream),
		planner.NewTumblingWindowNode("win", "src", time.Minute),
		planner.NewAggregateNode("agg", "win", aggregator.Sum),
		planner.NewSinkNode("out", "agg"),
	}
	cfg := types.DefaultConfig()
	cfg.LatePolicy = types.LateSideOutput
	pipe, cap := newTestPipeline(t, nodes, cfg)
	ctx := context.Background()

	require.NoError(t, pipe.Ingest(ctx, streamPoint(10, 1)))
	require.NoError(t, pipe.Ingest(ctx, streamPoint(120, 1)))
	require.Len(t, cap.results, 1)
	closedSum := cap.results[0].Values["sum"]

	// Arrives for the already closed window.
	require.NoError(t, pipe.Ingest(ctx, streamPoint(30, 99)))
	require.Len(t, cap.late, 1)
	assert.Equal(t, 99.0, cap.late[0].Value)
	assert.Equal(t, closedSum, cap.results[0].Values["sum"])
}

func TestPipelineClipEmitsOnlyCompleteWindows(t *testing.T) {
	src := planner.NewSourceNode("src", "s1", planner.ModeBatch)
	src.Source.Range = &planner.RangeSpec{
		Start: time.Unix(0, 0).UTC(),
		End:   time.Unix(3600, 0).UTC(),
		Unit:  time.Minute,
	}
	nodes := []*planner.Node{
		src,
		planner.NewSlidingWindowNode("win", "src", 10*time.Minute, 5*time.Minute),
		planner.NewAggregateNode("agg", "win", aggregator.Avg),
		planner.NewSinkNode("out", "agg"),
	}
	pipe, cap := newTestPipeline(t, nodes, types.DefaultConfig())
	ctx := context.Background()

	// One hour of one-per-minute points.
	for i := int64(0); i < 60; i++ {
		require.NoError(t, pipe.Ingest(ctx, streamPoint(i*60, float64(i))))
	}
	pipe.CloseAll(ctx, false)

	// Windows overlapping the range edges are suppressed; 11 full windows
	// remain, overlapping their neighbors by five minutes.
	require.Len(t, cap.results, 11)
	for i, r := range cap.results {
		assert.Equal(t, time.Duration(i)*5*time.Minute,
			r.Window.Start.Sub(time.Unix(0, 0).UTC()))
		assert.Equal(t, 10, r.Points)
	}
}

func TestPipelineRejectsUnknownModelKind(t *testing.T) {
	nodes := []*planner.Node{
		planner.NewSourceNode("src", "s1", planner.ModeStream),
		planner.NewTumblingWindowNode("win", "src", time.Minute),
		planner.NewForecastNode("fc", "win", "prophet", 3),
		planner.NewSinkNode("out", "fc"),
	}
	dag, err := planner.NewDAG(nodes)
	require.NoError(t, err)

	_, err = NewPipeline(dag, types.DefaultConfig(), logger.NewDiscardLogger(),
		metrics.New(nil, "test"), forecast.NewAdapter(forecast.NewRegistry()),
		collector.NewCollector(8), nil)
	require.Error(t, err)
	ee, ok := types.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, types.KindCompile, ee.Kind)
}

func TestPipelineWindowOverflowFatal(t *testing.T) {
	nodes := []*planner.Node{
		planner.NewSourceNode("src", "s1", planner.ModeStream),
		planner.NewTumblingWindowNode("win", "src", time.Minute),
		planner.NewAggregateNode("agg", "win", aggregator.Count),
		planner.NewSinkNode("out", "agg"),
	}
	cfg := types.DefaultConfig()
	cfg.MaxWindowPoints = 2
	cfg.WindowOverflowPolicy = types.WindowFail
	pipe, _ := newTestPipeline(t, nodes, cfg)
	ctx := context.Background()

	require.NoError(t, pipe.Ingest(ctx, streamPoint(1, 1)))
	require.NoError(t, pipe.Ingest(ctx, streamPoint(2, 1)))
	err := pipe.Ingest(ctx, streamPoint(3, 1))
	require.Error(t, err)
	ee, ok := types.AsEngineError(err)
	require.True(t, ok)
	assert.Equal(t, types.KindWindowOverflow, ee.Kind)
}

func TestPipelineTickClosesIdleStreams(t *testing.T) {
	nodes := []*planner.Node{
		planner.NewSourceNode("src", "s1", planner.ModeStream),
		planner.NewTumblingWindowNode("win", "src", time.Minute),
		planner.NewAggregateNode("agg", "win", aggregator.Max),
		planner.NewSinkNode("out", "agg"),
	}
	cfg := types.DefaultConfig()
	cfg.IdleTimeout = time.Nanosecond
	pipe, cap := newTestPipeline(t, nodes, cfg)
	ctx := context.Background()

	require.NoError(t, pipe.Ingest(ctx, streamPoint(10, 7)))
	require.Empty(t, cap.results)

	// Removing the only stream lets everything close on the next tick.
	pipe.RemoveStream(ctx, "s1", time.Now())
	pipe.CloseAll(ctx, false)
	require.Len(t, cap.results, 1)
	assert.Equal(t, 7.0, cap.results[0].Values["max"])
}
