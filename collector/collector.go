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

// Package collector hands finalized window results to the sink boundary.
// Results are held back until flushed so emission happens in window-end
// order even when operators close windows at different moments.
package collector

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tempoql/tempoql/forecast"
	"github.com/tempoql/tempoql/types"
)

// Result is one finalized (window, aggregates, trend/forecast) tuple.
type Result struct {
	// Node is the window operator the result originated from
	Node string `json:"node"`
	// Window is the closed half-open interval
	Window types.TimeSlot `json:"window"`
	// Values maps aggregate output names to finalized values
	Values map[string]float64 `json:"values,omitempty"`
	// Trends maps trend node IDs to fitted lines or failure markers
	Trends map[string]forecast.TrendResult `json:"trends,omitempty"`
	// Forecasts maps forecast node IDs to predictions or failure markers
	Forecasts map[string]forecast.Result `json:"forecasts,omitempty"`
	// Points is the number of points the window held at closure
	Points int `json:"points"`
	// Evicted counts points removed by the window memory bound
	Evicted int64 `json:"evicted,omitempty"`
	// Partial marks a window flushed by cancellation
	Partial bool `json:"partial,omitempty"`
}

// Sink receives finalized results. Sinks run on the executor goroutine and
// must not block.
type Sink func(Result)

// Collector buffers finalized results and releases them in window-end
// order to registered sinks and the results channel.
type Collector struct {
	mu      sync.Mutex
	sinks   []Sink
	pending []Result

	results chan Result

	emitted int64
	dropped int64
}

// NewCollector builds a collector whose results channel holds up to
// bufferSize undelivered results.
func NewCollector(bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Collector{
		results: make(chan Result, bufferSize),
	}
}

// AddSink registers a callback invoked for every released result.
func (c *Collector) AddSink(sink Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, sink)
}

// Results returns the channel carrying released results. When no reader
// keeps up the channel overflows and results are counted as dropped;
// registered sinks always see every result.
func (c *Collector) Results() <-chan Result {
	return c.results
}

// Emit holds a finalized result until the next flush.
func (c *Collector) Emit(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, r)
}

// Flush releases every pending result whose window end is at or before
// upTo, in ascending end order. Returns the number released.
func (c *Collector) Flush(upTo time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var release, keep []Result
	for _, r := range c.pending {
		if !r.Window.End.After(upTo) {
			release = append(release, r)
		} else {
			keep = append(keep, r)
		}
	}
	c.pending = keep
	c.dispatch(release)
	return len(release)
}

// FlushAll releases every pending result in ascending end order.
func (c *Collector) FlushAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	release := c.pending
	c.pending = nil
	c.dispatch(release)
	return len(release)
}

// dispatch releases results in window-end order. Callers hold c.mu.
func (c *Collector) dispatch(release []Result) {
	sort.SliceStable(release, func(i, j int) bool {
		if !release[i].Window.End.Equal(release[j].Window.End) {
			return release[i].Window.End.Before(release[j].Window.End)
		}
		return release[i].Window.Start.Before(release[j].Window.Start)
	})

	for _, r := range release {
		for _, sink := range c.sinks {
			sink(r)
		}
		select {
		case c.results <- r:
		default:
			atomic.AddInt64(&c.dropped, 1)
		}
		atomic.AddInt64(&c.emitted, 1)
	}
}

// Close closes the results channel. Pending results not yet flushed are
// discarded.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	close(c.results)
}

// Stats returns emission counters.
func (c *Collector) Stats() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int64{
		"emitted": atomic.LoadInt64(&c.emitted),
		"dropped": atomic.LoadInt64(&c.dropped),
		"pending": int64(len(c.pending)),
	}
}
