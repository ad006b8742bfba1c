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

// TimeSlot is the half-open interval [Start, End) a window instance covers.
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

func NewTimeSlot(start, end time.Time) TimeSlot {
	return TimeSlot{Start: start, End: end}
}

// Contains reports whether t belongs to the slot. A point belongs to a
// window iff start <= timestamp < end.
func (ts TimeSlot) Contains(t time.Time) bool {
	return !t.Before(ts.Start) && t.Before(ts.End)
}

// Hash combines both boundaries into a key suitable for window-instance maps.
func (ts TimeSlot) Hash() uint64 {
	startNano := uint64(ts.Start.UnixNano())
	endNano := uint64(ts.End.UnixNano())
	hash := (startNano << 32) | (startNano >> 32)
	return hash ^ endNano
}

// WindowStart returns the slot start as Unix nanoseconds.
func (ts TimeSlot) WindowStart() int64 {
	return ts.Start.UnixNano()
}

// WindowEnd returns the slot end as Unix nanoseconds.
func (ts TimeSlot) WindowEnd() int64 {
	return ts.End.UnixNano()
}

func (ts TimeSlot) String() string {
	return fmt.Sprintf("[%s, %s)", ts.Start.Format(time.RFC3339Nano), ts.End.Format(time.RFC3339Nano))
}
