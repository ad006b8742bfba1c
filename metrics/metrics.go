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

// Package metrics exposes the engine's runtime counters as Prometheus
// collectors. Each query run registers its own set, labelled with the run
// identifier, so concurrent queries stay distinguishable on one registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the per-run collectors.
type Metrics struct {
	PointsIngested       prometheus.Counter
	PointsFiltered       prometheus.Counter
	LateDropped          prometheus.Counter
	BufferDropped        prometheus.Counter
	WindowEvictions      prometheus.Counter
	WindowsClosed        prometheus.Counter
	ForecastFailures     prometheus.Counter
	BackpressureTimeouts prometheus.Counter
	SourceReconnects     prometheus.Counter
	OpenWindows          prometheus.Gauge
}

// New registers a fresh collector set on reg, labelled by run. A nil reg
// keeps the collectors on a private registry so they still count without
// being exported.
func New(reg prometheus.Registerer, run string) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"run": run}

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "tempoql",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	return &Metrics{
		PointsIngested:       counter("points_ingested_total", "Points accepted from sources."),
		PointsFiltered:       counter("points_filtered_total", "Points rejected by filter predicates."),
		LateDropped:          counter("late_points_total", "Points diverted to the late-data path."),
		BufferDropped:        counter("buffer_dropped_total", "Points dropped by source buffer overflow."),
		WindowEvictions:      counter("window_evictions_total", "Points evicted by the window memory bound."),
		WindowsClosed:        counter("windows_closed_total", "Windows finalized and emitted."),
		ForecastFailures:     counter("forecast_failures_total", "Forecast invocations returning unavailable."),
		BackpressureTimeouts: counter("backpressure_timeouts_total", "Producers blocked past the configured timeout."),
		SourceReconnects:     counter("source_reconnects_total", "Reconnect attempts across all streams."),
		OpenWindows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "tempoql",
			Name:        "open_windows",
			Help:        "Currently open window instances.",
			ConstLabels: labels,
		}),
	}
}
