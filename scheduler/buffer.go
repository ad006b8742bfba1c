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
	"errors"
	"sync"
	"time"

	"github.com/tempoql/tempoql/types"
)

// ErrBufferClosed is returned by Push after the buffer has been closed.
var ErrBufferClosed = errors.New("buffer closed")

// Buffer is the bounded per-source buffer between a producer and the
// executor. A full buffer applies the configured overflow policy: block
// the producer (optionally bounded by a timeout), evict the oldest point,
// or discard the incoming one. Overflow is always counted, never silent.
type Buffer struct {
	stream   string
	capacity int
	policy   types.OverflowPolicy
	timeout  time.Duration

	mu     sync.Mutex
	items  []types.DataPoint
	closed bool

	// notFull wakes one blocked producer; wake nudges the executor
	notFull chan struct{}
	wake    chan<- struct{}

	pushed        int64
	droppedOldest int64
	droppedNewest int64
	timeouts      int64
}

// NewBuffer builds a buffer for one stream. wake receives a non-blocking
// signal whenever the buffer turns non-empty; all buffers of a query share
// one wake channel.
func NewBuffer(stream string, capacity int, policy types.OverflowPolicy, timeout time.Duration, wake chan<- struct{}) *Buffer {
	return &Buffer{
		stream:   stream,
		capacity: capacity,
		policy:   policy,
		timeout:  timeout,
		notFull:  make(chan struct{}, 1),
		wake:     wake,
	}
}

// Push adds a point, applying the overflow policy when full. Under the
// block policy it waits for space until the context is cancelled or the
// block timeout elapses; the timeout surfaces as a BackpressureTimeout.
func (b *Buffer) Push(ctx context.Context, p types.DataPoint) error {
	var timer *time.Timer
	var deadline <-chan time.Time
	if b.policy == types.OverflowBlock && b.timeout > 0 {
		timer = time.NewTimer(b.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return ErrBufferClosed
		}
		if len(b.items) < b.capacity {
			b.items = append(b.items, p)
			b.pushed++
			b.mu.Unlock()
			b.signal()
			return nil
		}

		switch b.policy {
		case types.OverflowDropOldest:
			b.items = append(b.items[1:], p)
			b.pushed++
			b.droppedOldest++
			b.mu.Unlock()
			b.signal()
			return nil
		case types.OverflowDropNewest:
			b.droppedNewest++
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			b.mu.Lock()
			b.timeouts++
			b.mu.Unlock()
			return types.NewBackpressureError(b.stream, b.timeout)
		case <-b.notFull:
		}
	}
}

// TryPop removes and returns the oldest buffered point.
func (b *Buffer) TryPop() (types.DataPoint, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return types.DataPoint{}, false
	}
	p := b.items[0]
	b.items = b.items[1:]
	select {
	case b.notFull <- struct{}{}:
	default:
	}
	return p, true
}

// Head returns the timestamp of the oldest buffered point without
// removing it.
func (b *Buffer) Head() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return time.Time{}, false
	}
	return b.items[0].Timestamp, true
}

// Close marks the producer finished. Buffered points remain poppable.
func (b *Buffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

// Drained reports whether the producer finished and no points remain.
func (b *Buffer) Drained() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed && len(b.items) == 0
}

// Len returns the number of buffered points.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stream returns the stream identity this buffer serves.
func (b *Buffer) Stream() string {
	return b.stream
}

// Stats returns buffer counters.
func (b *Buffer) Stats() map[string]int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return map[string]int64{
		"pushed":        b.pushed,
		"droppedOldest": b.droppedOldest,
		"droppedNewest": b.droppedNewest,
		"timeouts":      b.timeouts,
		"buffered":      int64(len(b.items)),
	}
}

func (b *Buffer) signal() {
	if b.wake == nil {
		return
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}
