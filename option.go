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

package tempoql

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tempoql/tempoql/forecast"
	"github.com/tempoql/tempoql/logger"
	"github.com/tempoql/tempoql/scheduler"
	"github.com/tempoql/tempoql/types"
)

// Option modifies the engine's default behavior.
type Option func(*Engine)

// WithConfig replaces the whole query context. Apply it first when
// combining with finer-grained options.
func WithConfig(cfg types.Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithLowLatency applies the low-latency preset: small buffers,
// drop-oldest overflow, fast watermark ticks.
func WithLowLatency() Option {
	return func(e *Engine) {
		e.cfg = types.LowLatencyConfig()
	}
}

// WithLossless applies the lossless preset: producers block without
// timeout and window state is unbounded.
func WithLossless() Option {
	return func(e *Engine) {
		e.cfg = types.LosslessConfig()
	}
}

// WithLatenessTolerance bounds how far out of order points may arrive
// before they are diverted to the late-data path.
func WithLatenessTolerance(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.LatenessTolerance = d
	}
}

// WithBufferCapacity sets the bounded per-source buffer size.
func WithBufferCapacity(n int) Option {
	return func(e *Engine) {
		e.cfg.BufferCapacity = n
	}
}

// WithOverflowPolicy selects producer behavior on a full source buffer.
func WithOverflowPolicy(p types.OverflowPolicy) Option {
	return func(e *Engine) {
		e.cfg.OverflowPolicy = p
	}
}

// WithLatePolicy selects what happens to points arriving for closed
// windows: drop with a metric, or divert to the late sink.
func WithLatePolicy(p types.LatePolicy) Option {
	return func(e *Engine) {
		e.cfg.LatePolicy = p
	}
}

// WithLateSink registers the side output receiving diverted late points
// under the side-output policy.
func WithLateSink(sink scheduler.LateSink) Option {
	return func(e *Engine) {
		e.lateSink = sink
	}
}

// WithWindowMemoryBound caps buffered points per window instance. The
// policy decides between evicting the oldest point and failing the query.
func WithWindowMemoryBound(maxPoints int, policy types.WindowOverflowPolicy) Option {
	return func(e *Engine) {
		e.cfg.MaxWindowPoints = maxPoints
		e.cfg.WindowOverflowPolicy = policy
	}
}

// WithTickInterval sets the period of the time-driven watermark advance.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.TickInterval = d
	}
}

// WithIdleTimeout excludes streams silent for longer than d from the
// merged watermark.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.cfg.IdleTimeout = d
	}
}

// WithFlushOnCancel controls whether cancellation flushes in-flight
// windows as partial results (true) or discards them (false).
func WithFlushOnCancel(flush bool) Option {
	return func(e *Engine) {
		e.cfg.FlushOnCancel = flush
	}
}

// WithForecaster registers an additional forecasting model, selectable by
// its name in Forecast nodes.
func WithForecaster(f forecast.Forecaster) Option {
	return func(e *Engine) {
		e.registry.Register(f)
	}
}

// WithMetricsRegistry exports the run's counters on a Prometheus
// registry. Without it the counters stay on a private registry.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.promReg = reg
	}
}

// WithLogger sets a custom logger for this engine and as the process
// default.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
		logger.SetDefault(log)
	}
}

// WithLogLevel sets the level of the default logger.
func WithLogLevel(level logger.Level) Option {
	return func(e *Engine) {
		logger.GetDefault().SetLevel(level)
	}
}

// WithLogOutput directs engine logs to output at the given level.
func WithLogOutput(output io.Writer, level logger.Level) Option {
	return func(e *Engine) {
		e.log = logger.NewLogger(level, output)
	}
}

// WithDiscardLog disables all log output for this engine.
func WithDiscardLog() Option {
	return func(e *Engine) {
		e.log = logger.NewDiscardLogger()
	}
}
