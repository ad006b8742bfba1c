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

package types

import (
	"fmt"
	"time"
)

// OverflowPolicy governs producer behavior when a per-source buffer is full.
type OverflowPolicy string

const (
	// OverflowBlock blocks the producer until space is available or the
	// block timeout elapses
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropOldest evicts the oldest buffered point to make room
	OverflowDropOldest OverflowPolicy = "drop_oldest"
	// OverflowDropNewest discards the incoming point
	OverflowDropNewest OverflowPolicy = "drop_newest"
)

// LatePolicy governs what happens to a point whose window already closed.
type LatePolicy string

const (
	// LateDrop discards late points, recording a metric
	LateDrop LatePolicy = "drop"
	// LateSideOutput diverts late points to the side-output callback
	LateSideOutput LatePolicy = "side_output"
)

// WindowOverflowPolicy governs window state exceeding the memory bound.
type WindowOverflowPolicy string

const (
	// WindowEvictOldest retracts the oldest point from the open window
	WindowEvictOldest WindowOverflowPolicy = "evict_oldest"
	// WindowFail treats the overflow as fatal for the query
	WindowFail WindowOverflowPolicy = "fail"
)

// Config is the query context threaded through every component of one
// query. It replaces any notion of global state; cancellation travels on
// the context.Context passed to Run.
type Config struct {
	// LatenessTolerance bounds how far out of order a point may arrive
	// before it is considered late. It also sizes the reorder buffer used
	// when merging streams by timestamp.
	LatenessTolerance time.Duration `json:"latenessTolerance"`
	// BufferCapacity is the bounded per-source buffer size
	BufferCapacity int `json:"bufferCapacity"`
	// OverflowPolicy applies when a per-source buffer is full
	OverflowPolicy OverflowPolicy `json:"overflowPolicy"`
	// BlockTimeout bounds producer blocking under OverflowBlock;
	// zero blocks until cancellation
	BlockTimeout time.Duration `json:"blockTimeout"`
	// LatePolicy applies to points arriving for closed windows
	LatePolicy LatePolicy `json:"latePolicy"`
	// MaxWindowPoints bounds buffered state per window instance;
	// zero means unbounded
	MaxWindowPoints int `json:"maxWindowPoints"`
	// WindowOverflowPolicy applies when MaxWindowPoints is exceeded
	WindowOverflowPolicy WindowOverflowPolicy `json:"windowOverflowPolicy"`
	// TickInterval is the period of the time-driven watermark advance used
	// to close windows even when no new points arrive
	TickInterval time.Duration `json:"tickInterval"`
	// IdleTimeout marks a stream idle when no point arrives within it,
	// letting the merged watermark advance past the silent stream;
	// zero disables idle detection
	IdleTimeout time.Duration `json:"idleTimeout"`
	// WorkerPoolSize bounds parallel evaluation of independent DAG
	// branches in batch mode
	WorkerPoolSize int `json:"workerPoolSize"`
	// MaxRetries bounds reconnection attempts per stream
	MaxRetries int `json:"maxRetries"`
	// RetryBackoff is the initial reconnect backoff, doubled per attempt
	RetryBackoff time.Duration `json:"retryBackoff"`
	// MaxRetryBackoff caps the exponential backoff
	MaxRetryBackoff time.Duration `json:"maxRetryBackoff"`
	// FlushOnCancel emits in-flight windows as partial results during a
	// cooperative shutdown instead of discarding them
	FlushOnCancel bool `json:"flushOnCancel"`
	// ResultBufferSize is the capacity of the collector output channel
	ResultBufferSize int `json:"resultBufferSize"`
}

// DefaultConfig returns the standard query context.
func DefaultConfig() Config {
	return Config{
		LatenessTolerance:    0,
		BufferCapacity:       1024,
		OverflowPolicy:       OverflowBlock,
		BlockTimeout:         30 * time.Second,
		LatePolicy:           LateDrop,
		MaxWindowPoints:      0,
		WindowOverflowPolicy: WindowEvictOldest,
		TickInterval:         200 * time.Millisecond,
		IdleTimeout:          0,
		WorkerPoolSize:       4,
		MaxRetries:           3,
		RetryBackoff:         500 * time.Millisecond,
		MaxRetryBackoff:      30 * time.Second,
		FlushOnCancel:        true,
		ResultBufferSize:     1024,
	}
}

// LowLatencyConfig trades completeness for latency: small buffers,
// drop-oldest overflow, fast ticks.
func LowLatencyConfig() Config {
	config := DefaultConfig()
	config.BufferCapacity = 128
	config.OverflowPolicy = OverflowDropOldest
	config.TickInterval = 50 * time.Millisecond
	config.ResultBufferSize = 128
	return config
}

// LosslessConfig never drops data: producers block without timeout and
// window state is unbounded.
func LosslessConfig() Config {
	config := DefaultConfig()
	config.BufferCapacity = 8192
	config.OverflowPolicy = OverflowBlock
	config.BlockTimeout = 0
	config.MaxWindowPoints = 0
	config.ResultBufferSize = 8192
	return config
}

// Validate checks the configuration is executable.
func (c Config) Validate() error {
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("buffer capacity must be positive, got %d", c.BufferCapacity)
	}
	switch c.OverflowPolicy {
	case OverflowBlock, OverflowDropOldest, OverflowDropNewest:
	default:
		return fmt.Errorf("unknown overflow policy: %s", c.OverflowPolicy)
	}
	switch c.LatePolicy {
	case LateDrop, LateSideOutput:
	default:
		return fmt.Errorf("unknown late-data policy: %s", c.LatePolicy)
	}
	switch c.WindowOverflowPolicy {
	case WindowEvictOldest, WindowFail:
	default:
		return fmt.Errorf("unknown window overflow policy: %s", c.WindowOverflowPolicy)
	}
	if c.LatenessTolerance < 0 {
		return fmt.Errorf("lateness tolerance must not be negative")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker pool size must be positive, got %d", c.WorkerPoolSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}
