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

	"github.com/tempoql/tempoql/logger"
	"github.com/tempoql/tempoql/metrics"
	"github.com/tempoql/tempoql/source"
	"github.com/tempoql/tempoql/types"
)

// StreamRunner evaluates a query over unbounded sources. Each source runs
// as one producer goroutine pushing into a bounded buffer; a single
// executor merges the buffers by timestamp, routes points through the
// shared pipeline, and reacts to the periodic tick so windows close even
// when no new points arrive.
type StreamRunner struct {
	pipe *Pipeline
	cfg  types.Config
	log  logger.Logger
	met  *metrics.Metrics
	life *Lifecycle
}

// NewStreamRunner builds a streaming runner over a compiled pipeline.
func NewStreamRunner(run string, pipe *Pipeline, cfg types.Config, log logger.Logger, met *metrics.Metrics) *StreamRunner {
	if log == nil {
		log = logger.GetDefault()
	}
	if met == nil {
		met = metrics.New(nil, run)
	}
	return &StreamRunner{
		pipe: pipe,
		cfg:  cfg,
		log:  log,
		met:  met,
		life: NewLifecycle(run, log),
	}
}

// Lifecycle exposes the runner's state machine.
func (r *StreamRunner) Lifecycle() *Lifecycle {
	return r.life
}

// Run executes the query until every source ends, the context is
// cancelled, or a fatal error occurs. A stream that exhausts its reconnect
// budget fails alone; Run returns an error only when the query itself
// cannot continue.
func (r *StreamRunner) Run(ctx context.Context, sources ...source.StreamSource) error {
	r.life.To(StateConnecting)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wake := make(chan struct{}, 1)
	buffers := make([]*Buffer, len(sources))
	for i, src := range sources {
		buffers[i] = NewBuffer(src.ID(), r.cfg.BufferCapacity, r.cfg.OverflowPolicy, r.cfg.BlockTimeout, wake)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	streamErrs := make(map[string]error)

	for i, src := range sources {
		wg.Add(1)
		go func(src source.StreamSource, buf *Buffer) {
			defer wg.Done()
			err := r.produce(runCtx, src, buf)
			buf.Close()
			select {
			case wake <- struct{}{}:
			default:
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				mu.Lock()
				streamErrs[src.ID()] = err
				mu.Unlock()
				r.log.Error("stream %s failed: %v", src.ID(), err)
			}
		}(src, buffers[i])
	}

	r.life.To(StateRunning)
	fatal := r.consume(runCtx, buffers, wake)

	r.life.To(StateClosing)
	cancel()
	wg.Wait()

	for _, buf := range buffers {
		stats := buf.Stats()
		r.met.BufferDropped.Add(float64(stats["droppedOldest"] + stats["droppedNewest"]))
	}

	cancelled := ctx.Err() != nil
	switch {
	case fatal != nil:
		r.pipe.Discard()
	case cancelled && !r.cfg.FlushOnCancel:
		r.pipe.Discard()
	default:
		r.pipe.CloseAll(context.Background(), cancelled)
	}
	r.life.To(StateTerminated)

	if fatal != nil {
		return fatal
	}
	if cancelled {
		return ctx.Err()
	}
	mu.Lock()
	defer mu.Unlock()
	if len(streamErrs) == len(sources) && len(sources) > 0 {
		for _, err := range streamErrs {
			return err
		}
	}
	return nil
}

// consume is the executor loop: drain available points in timestamp order
// across buffers, suspend when all are empty, resume on new data or on the
// watermark tick. Returns the fatal error that stopped the query, if any.
func (r *StreamRunner) consume(ctx context.Context, buffers []*Buffer, wake <-chan struct{}) error {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	removed := make(map[string]bool)

	for {
		// Drain whatever is available, earliest timestamp first.
		for {
			if ctx.Err() != nil {
				return nil
			}
			next := earliest(buffers)
			if next < 0 {
				break
			}
			p, ok := buffers[next].TryPop()
			if !ok {
				continue
			}
			if err := r.pipe.Ingest(ctx, p); err != nil {
				r.log.Error("fatal: %v", err)
				r.life.To(StateError)
				return err
			}
		}

		// Finished streams stop bounding the watermark.
		done := 0
		for _, buf := range buffers {
			if buf.Drained() {
				done++
				if !removed[buf.Stream()] {
					removed[buf.Stream()] = true
					r.pipe.RemoveStream(ctx, buf.Stream(), time.Now())
				}
			}
		}
		if done == len(buffers) {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-wake:
		case now := <-ticker.C:
			r.pipe.Tick(ctx, now)
		}
	}
}

// produce subscribes to one source, reconnecting with bounded exponential
// backoff. A backpressure timeout is not retried: the buffer is full, not
// the source broken.
func (r *StreamRunner) produce(ctx context.Context, src source.StreamSource, buf *Buffer) error {
	backoff := r.cfg.RetryBackoff
	attempts := 0

	for {
		err := src.Subscribe(ctx, func(p types.DataPoint) error {
			return buf.Push(ctx, p)
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if ee, ok := types.AsEngineError(err); ok && ee.Kind == types.KindBackpressureTimeout {
			r.met.BackpressureTimeouts.Inc()
			return err
		}

		attempts++
		if attempts > r.cfg.MaxRetries {
			return types.NewSourceUnavailableError(src.ID(), err)
		}

		r.life.To(StateError)
		r.life.To(StateReconnecting)
		r.met.SourceReconnects.Inc()
		r.log.Warn("stream %s: reconnect %d/%d in %s after: %v",
			src.ID(), attempts, r.cfg.MaxRetries, backoff, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if r.cfg.MaxRetryBackoff > 0 && backoff > r.cfg.MaxRetryBackoff {
			backoff = r.cfg.MaxRetryBackoff
		}
		r.life.To(StateRunning)
	}
}

// earliest returns the index of the buffer holding the oldest head
// timestamp, or -1 when all buffers are empty.
func earliest(buffers []*Buffer) int {
	next := -1
	var nextTS time.Time
	for i, buf := range buffers {
		ts, ok := buf.Head()
		if !ok {
			continue
		}
		if next < 0 || ts.Before(nextTS) {
			next = i
			nextTS = ts
		}
	}
	return next
}
