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

package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempoql/tempoql/types"
)

func TestSliceSourceDrainsInOrder(t *testing.T) {
	points := []types.DataPoint{
		{Timestamp: time.Unix(1, 0).UTC(), Value: 1},
		{Timestamp: time.Unix(2, 0).UTC(), Value: 2},
	}
	src := NewSliceSource("cpu", points)
	assert.Equal(t, "cpu", src.ID())

	ctx := context.Background()
	var got []types.DataPoint
	for {
		p, ok, err := src.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, "cpu", p.StreamID)
		got = append(got, p)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Value)
	assert.Equal(t, 2.0, got[1].Value)
}

func TestSliceSourceHonorsCancellation(t *testing.T) {
	src := NewSliceSource("cpu", []types.DataPoint{{Value: 1}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelSourceDeliversUntilClose(t *testing.T) {
	ch := make(chan types.DataPoint, 3)
	for i := 0; i < 3; i++ {
		ch <- types.DataPoint{Timestamp: time.Unix(int64(i), 0).UTC(), Value: float64(i)}
	}
	close(ch)

	src := NewChannelSource("mem", ch)
	var got []types.DataPoint
	err := src.Subscribe(context.Background(), func(p types.DataPoint) error {
		got = append(got, p)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, p := range got {
		assert.Equal(t, "mem", p.StreamID)
	}
}

func TestChannelSourceStopsOnEmitError(t *testing.T) {
	ch := make(chan types.DataPoint, 2)
	ch <- types.DataPoint{Value: 1}
	ch <- types.DataPoint{Value: 2}
	close(ch)

	stop := errors.New("stop")
	src := NewChannelSource("mem", ch)
	count := 0
	err := src.Subscribe(context.Background(), func(types.DataPoint) error {
		count++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, count)
}

func TestChannelSourceHonorsCancellation(t *testing.T) {
	ch := make(chan types.DataPoint)
	src := NewChannelSource("mem", ch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := src.Subscribe(ctx, func(types.DataPoint) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
