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
	"sync"

	"github.com/tempoql/tempoql/logger"
	"github.com/tempoql/tempoql/source"
	"github.com/tempoql/tempoql/types"
)

// BatchRunner evaluates a query over finite sources: pull every source to
// exhaustion, merge by timestamp, route through the shared pipeline and
// close all remaining windows at the end.
type BatchRunner struct {
	pipe *Pipeline
	cfg  types.Config
	log  logger.Logger
	life *Lifecycle
}

// NewBatchRunner builds a batch runner over a compiled pipeline.
func NewBatchRunner(run string, pipe *Pipeline, cfg types.Config, log logger.Logger) *BatchRunner {
	if log == nil {
		log = logger.GetDefault()
	}
	return &BatchRunner{
		pipe: pipe,
		cfg:  cfg,
		log:  log,
		life: NewLifecycle(run, log),
	}
}

// Lifecycle exposes the runner's state machine.
func (r *BatchRunner) Lifecycle() *Lifecycle {
	return r.life
}

// Run executes the query to completion. Sources are pulled concurrently by
// a bounded worker pool; window state stays single-threaded by merging the
// pulled points by timestamp before ingestion.
func (r *BatchRunner) Run(ctx context.Context, sources ...source.BatchSource) error {
	r.life.To(StateConnecting)
	r.life.To(StateRunning)

	pulled, err := r.pull(ctx, sources)
	if err != nil {
		r.life.To(StateError)
		r.life.To(StateClosing)
		r.shutdown()
		r.life.To(StateTerminated)
		return err
	}

	heads := make([]int, len(pulled))
	for {
		if ctx.Err() != nil {
			r.life.To(StateClosing)
			r.shutdown()
			r.life.To(StateTerminated)
			return ctx.Err()
		}

		next := -1
		for i := range pulled {
			if heads[i] >= len(pulled[i]) {
				continue
			}
			if next < 0 || pulled[i][heads[i]].Timestamp.Before(pulled[next][heads[next]].Timestamp) {
				next = i
			}
		}
		if next < 0 {
			break
		}

		p := pulled[next][heads[next]]
		heads[next]++
		if err := r.pipe.Ingest(ctx, p); err != nil {
			r.log.Error("fatal: %v", err)
			r.life.To(StateError)
			r.life.To(StateClosing)
			r.pipe.Discard()
			r.life.To(StateTerminated)
			return err
		}
	}

	r.life.To(StateClosing)
	r.pipe.CloseAll(context.Background(), false)
	r.life.To(StateTerminated)
	return nil
}

// pull drains every source, bounded by the worker pool size.
func (r *BatchRunner) pull(ctx context.Context, sources []source.BatchSource) ([][]types.DataPoint, error) {
	pulled := make([][]types.DataPoint, len(sources))
	errs := make([]error, len(sources))

	workers := r.cfg.WorkerPoolSize
	if workers > len(sources) {
		workers = len(sources)
	}
	sem := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src source.BatchSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			pulled[i], errs[i] = drain(ctx, src)
		}(i, src)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, types.NewSourceUnavailableError(sources[i].ID(), err)
		}
	}
	return pulled, nil
}

func drain(ctx context.Context, src source.BatchSource) ([]types.DataPoint, error) {
	var points []types.DataPoint
	for {
		p, ok, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return points, nil
		}
		points = append(points, p)
	}
}

// shutdown applies the cancellation policy to in-flight windows.
func (r *BatchRunner) shutdown() {
	if r.cfg.FlushOnCancel {
		r.pipe.CloseAll(context.Background(), true)
	} else {
		r.pipe.Discard()
	}
}
