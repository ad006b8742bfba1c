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

// Package source defines the ingestion boundary: pull-based adapters for
// batch evaluation and push-based adapters for streaming. Every point a
// source yields carries the stream identity used for watermark tracking.
package source

import (
	"context"

	"github.com/tempoql/tempoql/types"
)

// BatchSource is a finite, pull-based source. Next returns points in
// non-decreasing timestamp order; ok is false at end of stream.
type BatchSource interface {
	ID() string
	Next(ctx context.Context) (p types.DataPoint, ok bool, err error)
}

// StreamSource is a push-based source. Subscribe delivers points to emit
// until the context is cancelled or the source fails; a nil return means
// the source ended cleanly. emit returning an error stops delivery.
type StreamSource interface {
	ID() string
	Subscribe(ctx context.Context, emit func(types.DataPoint) error) error
}

// SliceSource serves a fixed set of points as a batch source. Points are
// delivered in the order given; callers wanting timestamp order sort
// beforehand.
type SliceSource struct {
	id     string
	points []types.DataPoint
	pos    int
}

var _ BatchSource = (*SliceSource)(nil)

// NewSliceSource builds a batch source over points, stamping each with the
// stream identity.
func NewSliceSource(id string, points []types.DataPoint) *SliceSource {
	stamped := make([]types.DataPoint, len(points))
	for i, p := range points {
		p.StreamID = id
		stamped[i] = p
	}
	return &SliceSource{id: id, points: stamped}
}

func (s *SliceSource) ID() string {
	return s.id
}

func (s *SliceSource) Next(ctx context.Context) (types.DataPoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return types.DataPoint{}, false, err
	}
	if s.pos >= len(s.points) {
		return types.DataPoint{}, false, nil
	}
	p := s.points[s.pos]
	s.pos++
	return p, true, nil
}

// ChannelSource adapts a Go channel into a streaming source. The producer
// owns the channel and signals end of stream by closing it.
type ChannelSource struct {
	id string
	ch <-chan types.DataPoint
}

var _ StreamSource = (*ChannelSource)(nil)

// NewChannelSource builds a streaming source draining ch.
func NewChannelSource(id string, ch <-chan types.DataPoint) *ChannelSource {
	return &ChannelSource{id: id, ch: ch}
}

func (s *ChannelSource) ID() string {
	return s.id
}

func (s *ChannelSource) Subscribe(ctx context.Context, emit func(types.DataPoint) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-s.ch:
			if !ok {
				return nil
			}
			p.StreamID = s.id
			if err := emit(p); err != nil {
				return err
			}
		}
	}
}
