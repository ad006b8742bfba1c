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

package window

import (
	"time"

	"github.com/tempoql/tempoql/types"
)

// Assigner maps an event timestamp to the time slots of every window the
// point belongs to. Assigners are stateless; session windows are stateful
// and handled by the Manager directly.
type Assigner interface {
	Assign(ts time.Time) []types.TimeSlot
}

// TumblingAssigner maps a point to exactly one window,
// start = floor((timestamp - epoch) / size) * size.
type TumblingAssigner struct {
	Size time.Duration
}

func (a TumblingAssigner) Assign(ts time.Time) []types.TimeSlot {
	start := alignWindowStart(ts, a.Size)
	return []types.TimeSlot{types.NewTimeSlot(start, start.Add(a.Size))}
}

// SlidingAssigner maps a point to every window whose
// start <= timestamp < start+size among starts spaced by slide. A point
// belongs to ceil(size/slide) concurrently open windows.
type SlidingAssigner struct {
	Size  time.Duration
	Slide time.Duration
}

func (a SlidingAssigner) Assign(ts time.Time) []types.TimeSlot {
	latest := alignWindowStart(ts, a.Slide)
	count := int((a.Size + a.Slide - 1) / a.Slide)

	slots := make([]types.TimeSlot, 0, count)
	// Emit in ascending start order: oldest window containing ts first.
	for i := count - 1; i >= 0; i-- {
		start := latest.Add(-time.Duration(i) * a.Slide)
		end := start.Add(a.Size)
		if !ts.Before(start) && ts.Before(end) {
			slots = append(slots, types.NewTimeSlot(start, end))
		}
	}
	return slots
}

// alignWindowStart aligns a timestamp downward to the nearest boundary from
// epoch, so window boundaries are consistent across data sources. The
// alignment granularity equals the window size itself.
func alignWindowStart(ts time.Time, size time.Duration) time.Time {
	unixNano := ts.UnixNano()
	sizeNano := size.Nanoseconds()
	alignedNano := (unixNano / sizeNano) * sizeNano
	if unixNano < 0 && unixNano%sizeNano != 0 {
		// Truncation rounds toward zero; pre-epoch timestamps align down.
		alignedNano -= sizeNano
	}
	return time.Unix(0, alignedNano).UTC()
}
